package storage

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
)

func TestExportImportYAML(t *testing.T) {
	tests := []struct {
		build func(*testing.T) *model.StoredRuleSet
		name  string
	}{
		{name: "single label", build: weatherRuleSet},
		{name: "multi label", build: scenesRuleSet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := tt.build(t)
			rs.ID = "fixed-id"

			var buf bytes.Buffer
			require.NoError(t, ExportYAML(&buf, rs))
			assert.Contains(t, buf.String(), "relation: "+rs.Relation())

			got, err := ImportYAML(&buf)
			require.NoError(t, err)
			assert.Equal(t, "fixed-id", got.ID)
			assert.Equal(t, rs.Kind, got.Kind)
			assert.Equal(t, rs.Labels, got.Labels)
			assert.Equal(t, rs.Schema.ClassIndex(), got.Schema.ClassIndex())
			assert.Equal(t, rs.Rules.String(), got.Rules.String())
			for i, r := range rs.Rules.Rules() {
				assert.Equal(t, r.Stats(), got.Rules.At(i).Stats())
				assert.Equal(t, r.Head().IsSkip(), got.Rules.At(i).Head().IsSkip())
			}
		})
	}
}

func TestNewDocument(t *testing.T) {
	doc, err := NewDocument(weatherRuleSet(t))
	require.NoError(t, err)
	assert.Equal(t, "play", doc.Class)
	require.Len(t, doc.Rules, 2)
	assert.Equal(t, "play = yes :- outlook = rain.", doc.Rules[0].Text)
	require.NotNil(t, doc.Rules[0].Value)
	assert.InDelta(t, 0.8, *doc.Rules[0].Value, 1e-12)
	assert.Nil(t, doc.Rules[1].Value)
	assert.Equal(t, []ConditionDocument{
		{Attribute: "temp", Operator: "<=", Value: "20.5"},
		{Attribute: "outlook", Operator: "!=", Value: "sunny"},
	}, doc.Rules[1].Body)
	require.NotNil(t, doc.Default)
	assert.Nil(t, doc.Default.Value)
	assert.Equal(t, []dataset.AttributeSpec{
		{Name: "outlook", Type: "nominal", Values: []string{"sunny", "rain"}},
		{Name: "temp", Type: "numeric"},
		{Name: "play", Type: "nominal", Values: []string{"no", "yes"}},
	}, normalizeSpecs(doc.Attributes))
}

func normalizeSpecs(specs []dataset.AttributeSpec) []dataset.AttributeSpec {
	for i := range specs {
		if len(specs[i].Values) == 0 {
			specs[i].Values = nil
		}
	}
	return specs
}

func TestImportYAML_Errors(t *testing.T) {
	base := `name: broken
kind: single
relation: weather
class: play
attributes:
  - {name: outlook, type: nominal, values: [sunny, rain]}
  - {name: temp, type: numeric}
  - {name: play, type: nominal, values: ["no", "yes"]}
rules:
  - text: ""
    head: [{attribute: play, op: "=", value: "yes"}]
    body: [%s]
    tp: 0
    fp: 0
    tn: 0
    fn: 0
`
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown attribute", body: `{attribute: wind, op: "=", value: strong}`},
		{name: "unknown nominal value", body: `{attribute: outlook, op: "=", value: snow}`},
		{name: "numeric operator on nominal", body: `{attribute: outlook, op: "<=", value: rain}`},
		{name: "bad threshold", body: `{attribute: temp, op: "<=", value: warm}`},
		{name: "nominal operator on numeric", body: `{attribute: temp, op: "=", value: "3"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportYAML(strings.NewReader(strings.Replace(base, "%s", tt.body, 1)))
			assert.Error(t, err)
		})
	}

	_, err := ImportYAML(strings.NewReader(strings.Replace(base, "%s", `{attribute: temp, op: ">=", value: "3"}`, 1)))
	require.NoError(t, err)

	_, err = ImportYAML(strings.NewReader("name: [unterminated"))
	assert.Error(t, err)
}
