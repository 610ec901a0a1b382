package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/Veraticus/seco/internal/common"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/service"
)

// defaultPosition is the rules.position of a rule set's default rule.
const defaultPosition = -1

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveRuleSet stores a rule set, replacing any rule set with the same ID. A missing ID
// is generated and a zero CreatedAt set to the current time.
func (s *SQLiteStorage) SaveRuleSet(ctx context.Context, rs *model.StoredRuleSet) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRuleSet(rs); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveRuleSetTx(ctx, tx, rs); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) saveRuleSetTx(ctx context.Context, q queryable, rs *model.StoredRuleSet) error {
	if rs.ID == "" {
		rs.ID = uuid.NewString()
	}
	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = time.Now().UTC()
	}
	labels, err := json.Marshal(rs.Labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}

	if err := deleteChildren(ctx, q, rs.ID); err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO rule_sets (id, name, kind, relation, class_index, heuristic, labels, decision_list, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			relation = excluded.relation,
			class_index = excluded.class_index,
			heuristic = excluded.heuristic,
			labels = excluded.labels,
			decision_list = excluded.decision_list,
			created_at = excluded.created_at
	`, rs.ID, rs.Name, string(rs.Kind), rs.Relation(), rs.Schema.ClassIndex(), rs.Heuristic,
		string(labels), rs.DecisionList, rs.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: rule set %q", common.ErrDuplicateEntry, rs.Name)
		}
		return fmt.Errorf("failed to save rule set: %w", err)
	}

	for i, a := range rs.Schema.Attributes() {
		values, err := json.Marshal(a.Values())
		if err != nil {
			return fmt.Errorf("failed to marshal values of %s: %w", a.Name(), err)
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO attributes (rule_set_id, position, name, type, nominal_values)
			VALUES (?, ?, ?, ?, ?)
		`, rs.ID, i, a.Name(), a.Type().String(), string(values)); err != nil {
			return fmt.Errorf("failed to save attribute %s: %w", a.Name(), err)
		}
	}

	for i, r := range rs.Rules.Rules() {
		if err := saveRule(ctx, q, rs.ID, i, r); err != nil {
			return err
		}
	}
	if def := rs.Rules.Default(); def != nil {
		if err := saveRule(ctx, q, rs.ID, defaultPosition, def); err != nil {
			return err
		}
	}

	s.evictRuleSet(rs.ID)
	return nil
}

func saveRule(ctx context.Context, q queryable, id string, pos int, r *model.Rule) error {
	stats := r.Stats()
	var value sql.NullFloat64
	if v := r.Value(); !math.IsNaN(v) && !math.IsInf(v, 0) {
		value = sql.NullFloat64{Float64: v, Valid: true}
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO rules (rule_set_id, position, head_kind, tp, fp, tn, fn, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, pos, r.Head().Kind().String(), stats.TP, stats.FP, stats.TN, stats.FN, value); err != nil {
		return fmt.Errorf("failed to save rule %d: %w", pos, err)
	}

	parts := []struct {
		name  string
		conds []model.Condition
	}{
		{"head", r.Head().Conditions()},
		{"body", r.Body()},
	}
	for _, part := range parts {
		for j, c := range part.conds {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO conditions (rule_set_id, rule_position, part, position, attr_index, value, polarity)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, id, pos, part.name, j, c.AttrIndex(), c.Value, c.Polarity); err != nil {
				return fmt.Errorf("failed to save condition %s of rule %d: %w", c, pos, err)
			}
		}
	}
	return nil
}

func deleteChildren(ctx context.Context, q queryable, id string) error {
	for _, table := range []string{"conditions", "rules", "attributes"} {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE rule_set_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// GetRuleSet loads a rule set by ID. It returns an error wrapping common.ErrNotFound
// when no such rule set exists.
func (s *SQLiteStorage) GetRuleSet(ctx context.Context, id string) (*model.StoredRuleSet, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	if rs := s.getCachedRuleSet(id); rs != nil {
		return rs, nil
	}
	rs, err := s.getRuleSetTx(ctx, s.db, "id", id)
	if err != nil {
		return nil, err
	}
	s.cacheRuleSet(rs)
	return rs, nil
}

// GetRuleSetByName loads a rule set by its unique name.
func (s *SQLiteStorage) GetRuleSetByName(ctx context.Context, name string) (*model.StoredRuleSet, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.getRuleSetTx(ctx, s.db, "name", name)
}

func (s *SQLiteStorage) getRuleSetTx(ctx context.Context, q queryable, column, key string) (*model.StoredRuleSet, error) {
	var (
		rs         model.StoredRuleSet
		kind       string
		relation   string
		classIndex int
		labels     sql.NullString
	)
	query := fmt.Sprintf(`
		SELECT id, name, kind, relation, class_index, heuristic, labels, decision_list, created_at
		FROM rule_sets
		WHERE %s = ?
	`, column)
	err := q.QueryRowContext(ctx, query, key).Scan(
		&rs.ID,
		&rs.Name,
		&kind,
		&relation,
		&classIndex,
		&rs.Heuristic,
		&labels,
		&rs.DecisionList,
		&rs.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule set %q: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule set: %w", err)
	}
	rs.Kind = model.RuleSetKind(kind)
	if labels.Valid && labels.String != "" {
		if err := json.Unmarshal([]byte(labels.String), &rs.Labels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
		}
	}

	specs, err := loadAttributes(ctx, q, rs.ID)
	if err != nil {
		return nil, err
	}
	rs.Schema, err = dataset.NewFromSpecs(relation, specs, classIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild schema of %s: %w", rs.Name, err)
	}
	rs.Rules, err = loadRules(ctx, q, &rs)
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

func loadAttributes(ctx context.Context, q queryable, id string) ([]dataset.AttributeSpec, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name, type, nominal_values
		FROM attributes
		WHERE rule_set_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query attributes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var specs []dataset.AttributeSpec
	for rows.Next() {
		var (
			spec   dataset.AttributeSpec
			values sql.NullString
		)
		if err := rows.Scan(&spec.Name, &spec.Type, &values); err != nil {
			return nil, fmt.Errorf("failed to scan attribute: %w", err)
		}
		if values.Valid && values.String != "" {
			if err := json.Unmarshal([]byte(values.String), &spec.Values); err != nil {
				return nil, fmt.Errorf("failed to unmarshal values of %s: %w", spec.Name, err)
			}
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

type storedRule struct {
	stats model.ConfusionMatrix
	value sql.NullFloat64
	kind  string
	head  []model.Condition
	body  []model.Condition
}

func loadRules(ctx context.Context, q queryable, rs *model.StoredRuleSet) (*model.RuleSet, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT position, head_kind, tp, fp, tn, fn, value
		FROM rules
		WHERE rule_set_id = ?
		ORDER BY position
	`, rs.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	byPos := make(map[int]*storedRule)
	var order []int
	for rows.Next() {
		var (
			pos int
			r   storedRule
		)
		if err := rows.Scan(&pos, &r.kind, &r.stats.TP, &r.stats.FP, &r.stats.TN, &r.stats.FN, &r.value); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		byPos[pos] = &r
		order = append(order, pos)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}

	if err := loadConditions(ctx, q, rs, byPos); err != nil {
		return nil, err
	}

	out := model.NewRuleSet()
	for _, pos := range order {
		r, err := byPos[pos].build(rs.Kind)
		if err != nil {
			return nil, fmt.Errorf("rule %d of %s: %w", pos, rs.Name, err)
		}
		if pos == defaultPosition {
			out.SetDefault(r)
			continue
		}
		out.Add(r)
	}
	return out, nil
}

func loadConditions(ctx context.Context, q queryable, rs *model.StoredRuleSet, byPos map[int]*storedRule) error {
	rows, err := q.QueryContext(ctx, `
		SELECT rule_position, part, attr_index, value, polarity
		FROM conditions
		WHERE rule_set_id = ?
		ORDER BY rule_position, part, position
	`, rs.ID)
	if err != nil {
		return fmt.Errorf("failed to query conditions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			pos, attr int
			part      string
			c         model.Condition
		)
		if err := rows.Scan(&pos, &part, &attr, &c.Value, &c.Polarity); err != nil {
			return fmt.Errorf("failed to scan condition: %w", err)
		}
		r, ok := byPos[pos]
		if !ok {
			return fmt.Errorf("%w: condition of unknown rule %d", ErrInvalidRuleSet, pos)
		}
		if attr < 0 || attr >= rs.Schema.NumAttributes() {
			return fmt.Errorf("%w: attribute index %d out of range", ErrInvalidRuleSet, attr)
		}
		c.Attr = rs.Schema.Attribute(attr)
		if part == "head" {
			r.head = append(r.head, c)
		} else {
			r.body = append(r.body, c)
		}
	}
	return rows.Err()
}

func (r *storedRule) build(kind model.RuleSetKind) (*model.Rule, error) {
	var head model.Head
	switch {
	case r.kind == model.HeadSkip.String():
		head = model.SkipHead()
	case kind == model.RuleSetSingle:
		if len(r.head) != 1 {
			return nil, fmt.Errorf("%w: single-label rule with %d head conditions", ErrInvalidRuleSet, len(r.head))
		}
		head = model.SingleHead(r.head[0])
	default:
		head = model.MultiHead(r.head...)
	}
	rule := model.NewRuleWithBody(head, r.body, nil)
	value := math.NaN()
	if r.value.Valid {
		value = r.value.Float64
	}
	if r.value.Valid || r.stats != (model.ConfusionMatrix{}) {
		rule.SetEvaluation(r.stats, value)
	}
	return rule, nil
}

// ListRuleSets returns summaries of the stored rule sets, newest first.
func (s *SQLiteStorage) ListRuleSets(ctx context.Context, filter service.RuleSetFilter) ([]model.RuleSetSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listRuleSetsTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) listRuleSetsTx(ctx context.Context, q queryable, filter service.RuleSetFilter) ([]model.RuleSetSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := q.QueryContext(ctx, `
		SELECT s.id, s.name, s.kind, s.relation, s.heuristic, s.created_at,
			(SELECT COUNT(*) FROM rules r WHERE r.rule_set_id = s.id AND r.position >= 0)
		FROM rule_sets s
		WHERE (? = '' OR s.kind = ?) AND (? = '' OR s.relation = ?)
		ORDER BY s.created_at DESC, s.name
		LIMIT ? OFFSET ?
	`, string(filter.Kind), string(filter.Kind), filter.Relation, filter.Relation, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule sets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.RuleSetSummary
	for rows.Next() {
		var (
			sum  model.RuleSetSummary
			kind string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &kind, &sum.Relation, &sum.Heuristic, &sum.CreatedAt, &sum.Rules); err != nil {
			return nil, fmt.Errorf("failed to scan rule set: %w", err)
		}
		sum.Kind = model.RuleSetKind(kind)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteRuleSet removes a rule set and its rules.
func (s *SQLiteStorage) DeleteRuleSet(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.deleteRuleSetTx(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) deleteRuleSetTx(ctx context.Context, q queryable, id string) error {
	if err := deleteChildren(ctx, q, id); err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `DELETE FROM rule_sets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule set: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rule set %q: %w", id, common.ErrNotFound)
	}
	s.evictRuleSet(id)
	return nil
}
