package storage

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
)

// Document is the YAML form of a stored rule set. Condition values are written in the
// attribute's own vocabulary so that documents stay readable and editable.
type Document struct {
	CreatedAt    time.Time               `yaml:"created_at"`
	ID           string                  `yaml:"id"`
	Name         string                  `yaml:"name"`
	Kind         model.RuleSetKind       `yaml:"kind"`
	Relation     string                  `yaml:"relation"`
	Heuristic    string                  `yaml:"heuristic,omitempty"`
	Class        string                  `yaml:"class,omitempty"`
	Labels       []string                `yaml:"labels,omitempty"`
	Attributes   []dataset.AttributeSpec `yaml:"attributes"`
	Rules        []RuleDocument          `yaml:"rules"`
	Default      *RuleDocument           `yaml:"default,omitempty"`
	DecisionList bool                    `yaml:"decision_list,omitempty"`
}

// RuleDocument is the YAML form of one rule.
type RuleDocument struct {
	Text  string              `yaml:"text"`
	Head  []ConditionDocument `yaml:"head,omitempty"`
	Body  []ConditionDocument `yaml:"body,omitempty"`
	Value *float64            `yaml:"value,omitempty"`
	TP    float64             `yaml:"tp"`
	FP    float64             `yaml:"fp"`
	TN    float64             `yaml:"tn"`
	FN    float64             `yaml:"fn"`
	Skip  bool                `yaml:"skip,omitempty"`
}

// ConditionDocument is the YAML form of a condition.
type ConditionDocument struct {
	Attribute string `yaml:"attribute"`
	Operator  string `yaml:"op"`
	Value     string `yaml:"value"`
}

// NewDocument converts a stored rule set to its YAML form.
func NewDocument(rs *model.StoredRuleSet) (*Document, error) {
	if err := validateRuleSet(rs); err != nil {
		return nil, err
	}
	doc := &Document{
		CreatedAt:    rs.CreatedAt,
		ID:           rs.ID,
		Name:         rs.Name,
		Kind:         rs.Kind,
		Relation:     rs.Relation(),
		Heuristic:    rs.Heuristic,
		Labels:       rs.Labels,
		DecisionList: rs.DecisionList,
	}
	if class, err := rs.Schema.ClassAttribute(); err == nil {
		doc.Class = class.Name()
	}
	for _, a := range rs.Schema.Attributes() {
		doc.Attributes = append(doc.Attributes, a.Spec())
	}
	for _, r := range rs.Rules.Rules() {
		doc.Rules = append(doc.Rules, newRuleDocument(r))
	}
	if def := rs.Rules.Default(); def != nil {
		d := newRuleDocument(def)
		doc.Default = &d
	}
	return doc, nil
}

func newRuleDocument(r *model.Rule) RuleDocument {
	stats := r.Stats()
	d := RuleDocument{
		Text: r.String(),
		Skip: r.Head().IsSkip(),
		TP:   stats.TP,
		FP:   stats.FP,
		TN:   stats.TN,
		FN:   stats.FN,
	}
	if v := r.Value(); !math.IsNaN(v) && !math.IsInf(v, 0) {
		d.Value = &v
	}
	for _, c := range r.Head().Conditions() {
		d.Head = append(d.Head, newConditionDocument(c))
	}
	for _, c := range r.Body() {
		d.Body = append(d.Body, newConditionDocument(c))
	}
	return d
}

func newConditionDocument(c model.Condition) ConditionDocument {
	return ConditionDocument{Attribute: c.Attr.Name(), Operator: c.Operator(), Value: c.Attr.Format(c.Value)}
}

// RuleSet rebuilds the stored rule set described by the document.
func (d *Document) RuleSet() (*model.StoredRuleSet, error) {
	schema, err := dataset.NewFromSpecs(d.Relation, d.Attributes, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild schema: %w", err)
	}
	if d.Class != "" {
		if err := schema.SetClass(d.Class); err != nil {
			return nil, fmt.Errorf("failed to set class: %w", err)
		}
	}
	rs := &model.StoredRuleSet{
		CreatedAt:    d.CreatedAt,
		Schema:       schema,
		Rules:        model.NewRuleSet(),
		ID:           d.ID,
		Name:         d.Name,
		Kind:         d.Kind,
		Heuristic:    d.Heuristic,
		Labels:       d.Labels,
		DecisionList: d.DecisionList,
	}
	for i := range d.Rules {
		r, err := d.Rules[i].rule(schema, d.Kind)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rs.Rules.Add(r)
	}
	if d.Default != nil {
		r, err := d.Default.rule(schema, d.Kind)
		if err != nil {
			return nil, fmt.Errorf("default rule: %w", err)
		}
		rs.Rules.SetDefault(r)
	}
	if err := validateRuleSet(rs); err != nil {
		return nil, err
	}
	return rs, nil
}

func (d *RuleDocument) rule(schema *dataset.Instances, kind model.RuleSetKind) (*model.Rule, error) {
	head, err := conditions(schema, d.Head)
	if err != nil {
		return nil, err
	}
	body, err := conditions(schema, d.Body)
	if err != nil {
		return nil, err
	}
	r := &storedRule{
		stats: model.ConfusionMatrix{TP: d.TP, FP: d.FP, TN: d.TN, FN: d.FN},
		kind:  model.HeadNormal.String(),
		head:  head,
		body:  body,
	}
	if d.Skip {
		r.kind = model.HeadSkip.String()
	}
	if d.Value != nil {
		r.value.Float64, r.value.Valid = *d.Value, true
	}
	return r.build(kind)
}

func conditions(schema *dataset.Instances, docs []ConditionDocument) ([]model.Condition, error) {
	out := make([]model.Condition, 0, len(docs))
	for _, cd := range docs {
		c, err := cd.condition(schema)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (cd ConditionDocument) condition(schema *dataset.Instances) (model.Condition, error) {
	attr, err := schema.AttributeByName(cd.Attribute)
	if err != nil {
		return model.Condition{}, err
	}
	if attr.IsNominal() {
		idx, ok := attr.IndexOfValue(cd.Value)
		if !ok {
			return model.Condition{}, fmt.Errorf("%w: %s has no value %q", ErrInvalidRuleSet, attr.Name(), cd.Value)
		}
		switch cd.Operator {
		case "=":
			return model.NewNominalCondition(attr, idx, true), nil
		case "!=":
			return model.NewNominalCondition(attr, idx, false), nil
		}
		return model.Condition{}, fmt.Errorf("%w: operator %q on nominal %s", ErrInvalidRuleSet, cd.Operator, attr.Name())
	}
	v, err := strconv.ParseFloat(cd.Value, 64)
	if err != nil {
		return model.Condition{}, fmt.Errorf("%w: threshold %q of %s", ErrInvalidRuleSet, cd.Value, attr.Name())
	}
	switch cd.Operator {
	case "<=":
		return model.NewNumericCondition(attr, v, true), nil
	case ">=":
		return model.NewNumericCondition(attr, v, false), nil
	}
	return model.Condition{}, fmt.Errorf("%w: operator %q on numeric %s", ErrInvalidRuleSet, cd.Operator, attr.Name())
}

// ExportYAML writes rs as a YAML document.
func ExportYAML(w io.Writer, rs *model.StoredRuleSet) error {
	doc, err := NewDocument(rs)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode rule set: %w", err)
	}
	return enc.Close()
}

// ImportYAML reads a rule set written by ExportYAML.
func ImportYAML(r io.Reader) (*model.StoredRuleSet, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode rule set: %w", err)
	}
	return doc.RuleSet()
}
