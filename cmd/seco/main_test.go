package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/seco/internal/common"
)

const weatherCSV = `outlook,play
rain,yes
rain,yes
rain,yes
rain,yes
sunny,no
sunny,no
sunny,no
sunny,no
sunny,no
sunny,no
`

const scenesCSV = `color,size,l1,l2,l3
red,1,1,1,0
red,2,1,1,0
red,3,1,1,1
blue,4,0,0,1
blue,5,0,1,1
blue,6,0,0,1
`

type env struct {
	dir string
	db  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return &env{dir: dir, db: filepath.Join(dir, "seco.db")}
}

func (e *env) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// run executes the root command and returns its standard output.
func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--db", e.db, "--log-level", "warn"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestVersionCmd(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "seco version dev\n", out)
}

func TestTrainCmd(t *testing.T) {
	e := newEnv(t)
	data := e.write(t, "weather.csv", weatherCSV)

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr error
	}{
		{
			name: "default learner",
			args: []string{"train", data},
			want: []string{"Decision list for weather", "outlook = rain", "play = yes", "default:", "Accuracy: 100.00%"},
		},
		{
			name: "beam search with precision",
			args: []string{"train", data, "--heuristic", "precision", "--beam-width", "3"},
			want: []string{"outlook = rain", "Accuracy: 100.00%"},
		},
		{
			name:    "unknown heuristic",
			args:    []string{"train", data, "--heuristic", "bogus"},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name: "unknown class column",
			args: []string{"train", data, "--class", "missing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.run(t, tt.args...)
			if tt.want == nil {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestTrainCmd_MissingFile(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "train", filepath.Join(e.dir, "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open dataset")
}

func TestTrainCmd_Environment(t *testing.T) {
	e := newEnv(t)
	data := e.write(t, "weather.csv", weatherCSV)

	t.Setenv("SECO_LEARNER_HEURISTIC", "bogus")
	_, err := e.run(t, "train", data)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	// Flags take precedence over the environment.
	out, err := e.run(t, "train", data, "--heuristic", "laplace")
	require.NoError(t, err)
	assert.Contains(t, out, "outlook = rain")
}

func TestTrainCmd_ConfigFile(t *testing.T) {
	e := newEnv(t)
	data := e.write(t, "weather.csv", weatherCSV)
	cfg := e.write(t, "config.yaml", "learner:\n  heuristic: bogus\n")

	_, err := e.run(t, "--config", cfg, "train", data)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	out, err := e.run(t, "--config", cfg, "train", data, "--heuristic", "precision")
	require.NoError(t, err)
	assert.Contains(t, out, "outlook = rain")
}

func TestRuleSetLifecycle(t *testing.T) {
	e := newEnv(t)
	data := e.write(t, "weather.csv", weatherCSV)

	out, err := e.run(t, "train", data, "--save", "--name", "weather-rules")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved rule set weather-rules")

	_, err = e.run(t, "train", data, "--save", "--name", "weather-rules")
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	out, err = e.run(t, "models", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "weather-rules")
	assert.Contains(t, out, "single")

	out, err = e.run(t, "models", "list", "--kind", "multilabel")
	require.NoError(t, err)
	assert.Contains(t, out, "No stored rule sets")

	out, err = e.run(t, "models", "show", "weather-rules")
	require.NoError(t, err)
	assert.Contains(t, out, "Relation:  weather")
	assert.Contains(t, out, "outlook = rain")

	out, err = e.run(t, "classify", "weather-rules", data, "--evaluate")
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	assert.Equal(t, "row,play", lines[0])
	assert.Equal(t, "1,yes", lines[1])
	assert.Equal(t, "5,no", lines[5])
	assert.Contains(t, out, "Accuracy: 100.00%")

	exported := filepath.Join(e.dir, "weather.yaml")
	_, err = e.run(t, "export", "weather-rules", "-o", exported)
	require.NoError(t, err)
	doc, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "name: weather-rules")
	assert.Contains(t, string(doc), "play = yes :- outlook = rain.")

	out, err = e.run(t, "export", "weather-rules")
	require.NoError(t, err)
	assert.Equal(t, string(doc), out)

	out, err = e.run(t, "models", "delete", "weather-rules")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted rule set weather-rules")

	_, err = e.run(t, "classify", "weather-rules", data)
	assert.ErrorIs(t, err, common.ErrNotFound)

	out, err = e.run(t, "models", "import", exported)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported rule set weather-rules")

	out, err = e.run(t, "classify", "weather-rules", data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "row,play\n1,yes\n"))
}

func TestMultiLabelCmd(t *testing.T) {
	e := newEnv(t)
	data := e.write(t, "scenes.csv", scenesCSV)

	out, err := e.run(t, "multilabel", data, "--labels", "l1,l2,l3", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "Multi-label rules for scenes")
	assert.Contains(t, out, "Hamming accuracy")
	assert.Contains(t, out, "Saved rule set scenes-precision")

	out, err = e.run(t, "multilabel", data, "--labels", "l1,l2,l3", "--decision-list", "--bottom-up")
	require.NoError(t, err)
	assert.Contains(t, out, "(decision list)")

	out, err = e.run(t, "classify", "scenes-precision", data, "--evaluate")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "row,l1,l2,l3\n"))
	assert.Contains(t, out, "Subset accuracy")

	_, err = e.run(t, "multilabel", data)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = e.run(t, "multilabel", data, "--labels", "size")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestSweepCmd(t *testing.T) {
	e := newEnv(t)
	data := e.write(t, "weather.csv", weatherCSV)

	out, err := e.run(t, "sweep", data,
		"--heuristics", "laplace,precision",
		"--beam-widths", "1,2",
		"--holdout", "0",
		"--workers", "2",
		"--save", "--name", "best")
	require.NoError(t, err)
	assert.Contains(t, out, "trained on 10, evaluated on 10 instances")
	assert.Contains(t, out, "Best: laplace(default) beam=1")
	assert.Contains(t, out, "Saved rule set best")

	_, err = e.run(t, "sweep", data, "--workers", "0")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
