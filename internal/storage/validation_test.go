package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name      string
		str       string
		paramName string
		wantErr   bool
	}{
		{
			name:      "valid string",
			str:       "test",
			paramName: "param",
			wantErr:   false,
		},
		{
			name:      "empty string",
			str:       "",
			paramName: "param",
			wantErr:   true,
		},
		{
			name:      "whitespace only",
			str:       "   ",
			paramName: "param",
			wantErr:   true,
		},
		{
			name:      "string with spaces",
			str:       "  test  ",
			paramName: "param",
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, tt.paramName)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.paramName) {
				t.Errorf("validateString() error should contain param name %s, got %v", tt.paramName, err)
			}
		})
	}
}


func TestValidateRuleSet(t *testing.T) {
	valid := func() *model.StoredRuleSet { return weatherRuleSet(t) }
	foreign := dataset.NewNominalAttribute("humidity", []string{"high", "normal"})
	_, err := dataset.New("other", []*dataset.Attribute{foreign})
	assert.NoError(t, err)

	tests := []struct {
		mutate  func(rs *model.StoredRuleSet)
		wantErr error
		name    string
	}{
		{name: "valid", mutate: func(*model.StoredRuleSet) {}},
		{name: "missing name", mutate: func(rs *model.StoredRuleSet) { rs.Name = " " }, wantErr: ErrInvalidRuleSet},
		{name: "unknown kind", mutate: func(rs *model.StoredRuleSet) { rs.Kind = "tree" }, wantErr: ErrInvalidKind},
		{name: "missing schema", mutate: func(rs *model.StoredRuleSet) { rs.Schema = nil }, wantErr: ErrInvalidRuleSet},
		{name: "missing rules", mutate: func(rs *model.StoredRuleSet) { rs.Rules = nil }, wantErr: ErrInvalidRuleSet},
		{
			name:    "multi-label without labels",
			mutate:  func(rs *model.StoredRuleSet) { rs.Kind = model.RuleSetMultiLabel },
			wantErr: ErrInvalidRuleSet,
		},
		{
			name: "condition outside the schema",
			mutate: func(rs *model.StoredRuleSet) {
				rs.Rules.Add(model.NewRuleWithBody(rs.Rules.At(0).Head(),
					[]model.Condition{model.NewNominalCondition(foreign, 0, true)}, nil))
			},
			wantErr: ErrInvalidRuleSet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := valid()
			tt.mutate(rs)
			err := validateRuleSet(rs)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.ErrorIs(t, validateRuleSet(nil), ErrNilParameter)
}
