package config

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/spf13/viper"

	"github.com/Veraticus/seco/internal/common"
)

// Selector chooses which live candidates are refined in a search round.
type Selector string

// Candidate selectors.
const (
	SelectorAll   Selector = "all"
	SelectorBestN Selector = "best-n"
)

// Filter bounds the candidate set after each search round.
type Filter string

// Rule filters.
const (
	FilterBeam Filter = "beam"
	FilterNone Filter = "none"
)

// Initializer creates the seed rules of a search.
type Initializer string

// Rule initializers.
const (
	InitializerTopDown Initializer = "top-down"
	InitializerBottom  Initializer = "bottom"
)

// Refiner generates the specializations of a rule.
type Refiner string

// Refiners.
const (
	RefinerTopDown  Refiner = "top-down"
	RefinerBottomUp Refiner = "bottom-up"
)

// RuleStop decides whether a candidate may still be refined.
type RuleStop string

// Rule stopping criteria.
const (
	RuleStopCoverage    RuleStop = "coverage"
	RuleStopNoNegatives RuleStop = "no-negatives"
)

// TheoryStop decides whether a learned rule is accepted into the theory.
type TheoryStop string

// Theory stopping criteria.
const (
	TheoryStopCoverage    TheoryStop = "coverage"
	TheoryStopPrecision   TheoryStop = "precision"
	TheoryStopNoPositives TheoryStop = "no-positives"
)

// Evaluation selects how multi-label heads are scored.
type Evaluation string

// Multi-label evaluation strategies.
const (
	EvaluationDecomposable  Evaluation = "decomposable"
	EvaluationAntiMonotonic Evaluation = "anti-monotonic"
)

// Config is the complete configuration read from file, environment and flags.
type Config struct {
	Storage    Storage    `mapstructure:"storage"`
	Logging    Logging    `mapstructure:"logging"`
	Learner    Learner    `mapstructure:"learner"`
	MultiLabel MultiLabel `mapstructure:"multilabel"`
	Sweep      Sweep      `mapstructure:"sweep"`
}

// Storage locates the rule-set database.
type Storage struct {
	Path string `mapstructure:"path"`
}

// Logging configures the process logger.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Learner configures the single-label separate-and-conquer learner.
type Learner struct {
	Heuristic          string      `mapstructure:"heuristic"`
	SelectionHeuristic string      `mapstructure:"selection_heuristic"`
	Selector           Selector    `mapstructure:"selector"`
	Filter             Filter      `mapstructure:"filter"`
	Initializer        Initializer `mapstructure:"initializer"`
	Refiner            Refiner     `mapstructure:"refiner"`
	RuleStop           RuleStop    `mapstructure:"rule_stop"`
	TheoryStop         TheoryStop  `mapstructure:"theory_stop"`

	HeuristicParameter float64 `mapstructure:"heuristic_parameter"`
	StopThreshold      float64 `mapstructure:"stop_threshold"`
	GrowingFraction    float64 `mapstructure:"growing_fraction"`
	MinCoverage        float64 `mapstructure:"min_coverage"`
	CoveredWeight      float64 `mapstructure:"covered_weight"`
	Seed               int64   `mapstructure:"seed"`
	SelectorN          int     `mapstructure:"selector_n"`
	BeamWidth          int     `mapstructure:"beam_width"`
	Optimizations      int     `mapstructure:"optimizations"`

	NominalInequality bool `mapstructure:"nominal_inequality"`
	StrictlyGreater   bool `mapstructure:"strictly_greater"`
	Prune             bool `mapstructure:"prune"`
	PruneUseWhole     bool `mapstructure:"prune_use_whole"`
	MDL               bool `mapstructure:"mdl"`
	Abridge           bool `mapstructure:"abridge"`
	CheckError        bool `mapstructure:"check_error"`
}

// MultiLabel configures the multi-label covering learner.
type MultiLabel struct {
	Heuristic  string     `mapstructure:"heuristic"`
	Evaluation Evaluation `mapstructure:"evaluation"`
	Labels     []string   `mapstructure:"labels"`

	HeuristicParameter float64 `mapstructure:"heuristic_parameter"`
	SkipThreshold      float64 `mapstructure:"skip_threshold"`
	MinCoverage        float64 `mapstructure:"min_coverage"`
	Seed               int64   `mapstructure:"seed"`
	BeamWidth          int     `mapstructure:"beam_width"`
	NStep              int     `mapstructure:"n_step"`
	MaxRules           int     `mapstructure:"max_rules"`
	CacheSize          int     `mapstructure:"cache_size"`

	PredictZero     bool `mapstructure:"predict_zero"`
	BottomUp        bool `mapstructure:"bottom_up"`
	Randomize       bool `mapstructure:"randomize"`
	DecisionList    bool `mapstructure:"decision_list"`
	LabelConditions bool `mapstructure:"label_conditions"`
}

// Sweep configures the hyperparameter sweep.
type Sweep struct {
	Heuristics []string  `mapstructure:"heuristics"`
	Parameters []float64 `mapstructure:"parameters"`
	BeamWidths []int     `mapstructure:"beam_widths"`
	Workers    int       `mapstructure:"workers"`
	Holdout    float64   `mapstructure:"holdout"`
}

// DefaultLearner returns the RIPPER-like default configuration.
func DefaultLearner() Learner {
	return Learner{
		Heuristic:          "laplace",
		Selector:           SelectorAll,
		Filter:             FilterBeam,
		Initializer:        InitializerTopDown,
		Refiner:            RefinerTopDown,
		RuleStop:           RuleStopCoverage,
		TheoryStop:         TheoryStopNoPositives,
		StopThreshold:      0.5,
		GrowingFraction:    1,
		MinCoverage:        1,
		Seed:               1,
		SelectorN:          1,
		BeamWidth:          1,
		Optimizations:      2,
		PruneUseWhole:      false,
		CheckError:         true,
		HeuristicParameter: math.NaN(),
	}
}

// DefaultMultiLabel returns the default multi-label configuration.
func DefaultMultiLabel() MultiLabel {
	return MultiLabel{
		Heuristic:          "precision",
		Evaluation:         EvaluationDecomposable,
		HeuristicParameter: math.NaN(),
		SkipThreshold:      1,
		MinCoverage:        1,
		Seed:               1,
		BeamWidth:          4,
		NStep:              1,
		CacheSize:          1024,
		PredictZero:        false,
	}
}

// Defaults returns the complete default configuration.
func Defaults() Config {
	return Config{
		Storage:    Storage{Path: "~/.local/share/seco/seco.db"},
		Logging:    Logging{Level: "info", Format: "console"},
		Learner:    DefaultLearner(),
		MultiLabel: DefaultMultiLabel(),
		Sweep: Sweep{
			Heuristics: []string{"laplace", "precision", "m-estimate"},
			BeamWidths: []int{1, 4},
			Workers:    4,
			Holdout:    0.3,
		},
	}
}

// Validate checks every hyperparameter of the learner. Minimum coverage below 1 is
// clamped to 1; everything else out of range is an error wrapping ErrInvalidConfig.
func (l *Learner) Validate(logger *slog.Logger) error {
	if l.Heuristic == "" {
		return common.InvalidConfig("learner.heuristic", "heuristic is required")
	}
	switch l.Selector {
	case SelectorAll:
	case SelectorBestN:
		if l.SelectorN < 1 {
			return common.InvalidConfig("learner.selector_n", "must be at least 1, got %d", l.SelectorN)
		}
	default:
		return common.InvalidConfig("learner.selector", "unknown selector %q", l.Selector)
	}
	switch l.Filter {
	case FilterNone:
	case FilterBeam:
		if l.BeamWidth < 1 {
			return common.InvalidConfig("learner.beam_width", "must be at least 1, got %d", l.BeamWidth)
		}
	default:
		return common.InvalidConfig("learner.filter", "unknown filter %q", l.Filter)
	}
	switch l.Initializer {
	case InitializerTopDown, InitializerBottom:
	default:
		return common.InvalidConfig("learner.initializer", "unknown initializer %q", l.Initializer)
	}
	switch l.Refiner {
	case RefinerTopDown, RefinerBottomUp:
	default:
		return common.InvalidConfig("learner.refiner", "unknown refiner %q", l.Refiner)
	}
	switch l.RuleStop {
	case RuleStopCoverage, RuleStopNoNegatives:
	default:
		return common.InvalidConfig("learner.rule_stop", "unknown rule stopping criterion %q", l.RuleStop)
	}
	switch l.TheoryStop {
	case TheoryStopCoverage, TheoryStopNoPositives:
	case TheoryStopPrecision:
		if l.StopThreshold < 0 || l.StopThreshold > 1 {
			return common.InvalidConfig("learner.stop_threshold", "must be in [0,1], got %v", l.StopThreshold)
		}
	default:
		return common.InvalidConfig("learner.theory_stop", "unknown theory stopping criterion %q", l.TheoryStop)
	}
	if l.GrowingFraction <= 0 || l.GrowingFraction > 1 || math.IsNaN(l.GrowingFraction) {
		return common.InvalidConfig("learner.growing_fraction", "must be in (0,1], got %v", l.GrowingFraction)
	}
	if l.CoveredWeight < 0 || l.CoveredWeight >= 1 {
		return common.InvalidConfig("learner.covered_weight", "must be in [0,1), got %v", l.CoveredWeight)
	}
	if l.Optimizations < 0 {
		return common.InvalidConfig("learner.optimizations", "must not be negative, got %d", l.Optimizations)
	}
	if (l.Prune || l.MDL) && l.GrowingFraction == 1 {
		return common.InvalidConfig("learner.growing_fraction", "pruning requires a growing fraction below 1")
	}
	if l.MinCoverage < 1 {
		common.OrDefault(logger).Debug("clamping minimum coverage", "min_coverage", l.MinCoverage)
		l.MinCoverage = 1
	}
	return nil
}

// Validate checks the multi-label hyperparameters.
func (m *MultiLabel) Validate(logger *slog.Logger) error {
	if m.Heuristic == "" {
		return common.InvalidConfig("multilabel.heuristic", "heuristic is required")
	}
	switch m.Evaluation {
	case EvaluationDecomposable, EvaluationAntiMonotonic:
	default:
		return common.InvalidConfig("multilabel.evaluation", "unknown evaluation %q", m.Evaluation)
	}
	if m.BeamWidth < 1 {
		return common.InvalidConfig("multilabel.beam_width", "must be at least 1, got %d", m.BeamWidth)
	}
	if m.NStep < 1 {
		return common.InvalidConfig("multilabel.n_step", "must be at least 1, got %d", m.NStep)
	}
	if m.SkipThreshold < 0 || m.SkipThreshold > 1 || math.IsNaN(m.SkipThreshold) {
		return common.InvalidConfig("multilabel.skip_threshold", "must be in [0,1], got %v", m.SkipThreshold)
	}
	if m.MaxRules < 0 {
		return common.InvalidConfig("multilabel.max_rules", "must not be negative, got %d", m.MaxRules)
	}
	if m.CacheSize < 0 {
		return common.InvalidConfig("multilabel.cache_size", "must not be negative, got %d", m.CacheSize)
	}
	if m.MinCoverage < 1 {
		common.OrDefault(logger).Debug("clamping minimum coverage", "min_coverage", m.MinCoverage)
		m.MinCoverage = 1
	}
	return nil
}

// Validate checks the sweep settings.
func (s *Sweep) Validate() error {
	if len(s.Heuristics) == 0 {
		return common.InvalidConfig("sweep.heuristics", "at least one heuristic is required")
	}
	if s.Workers < 1 {
		return common.InvalidConfig("sweep.workers", "must be at least 1, got %d", s.Workers)
	}
	if s.Holdout < 0 || s.Holdout >= 1 || math.IsNaN(s.Holdout) {
		return common.InvalidConfig("sweep.holdout", "must be in [0,1), got %v", s.Holdout)
	}
	for _, w := range s.BeamWidths {
		if w < 1 {
			return common.InvalidConfig("sweep.beam_widths", "must be at least 1, got %d", w)
		}
	}
	return nil
}

// SetDefaults registers every default with v so that environment variables and flags
// can override individual keys.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	l := d.Learner
	v.SetDefault("learner.heuristic", l.Heuristic)
	v.SetDefault("learner.selection_heuristic", l.SelectionHeuristic)
	v.SetDefault("learner.selector", string(l.Selector))
	v.SetDefault("learner.filter", string(l.Filter))
	v.SetDefault("learner.initializer", string(l.Initializer))
	v.SetDefault("learner.refiner", string(l.Refiner))
	v.SetDefault("learner.rule_stop", string(l.RuleStop))
	v.SetDefault("learner.theory_stop", string(l.TheoryStop))
	v.SetDefault("learner.heuristic_parameter", l.HeuristicParameter)
	v.SetDefault("learner.stop_threshold", l.StopThreshold)
	v.SetDefault("learner.growing_fraction", l.GrowingFraction)
	v.SetDefault("learner.min_coverage", l.MinCoverage)
	v.SetDefault("learner.covered_weight", l.CoveredWeight)
	v.SetDefault("learner.seed", l.Seed)
	v.SetDefault("learner.selector_n", l.SelectorN)
	v.SetDefault("learner.beam_width", l.BeamWidth)
	v.SetDefault("learner.optimizations", l.Optimizations)
	v.SetDefault("learner.nominal_inequality", l.NominalInequality)
	v.SetDefault("learner.strictly_greater", l.StrictlyGreater)
	v.SetDefault("learner.prune", l.Prune)
	v.SetDefault("learner.prune_use_whole", l.PruneUseWhole)
	v.SetDefault("learner.mdl", l.MDL)
	v.SetDefault("learner.abridge", l.Abridge)
	v.SetDefault("learner.check_error", l.CheckError)

	m := d.MultiLabel
	v.SetDefault("multilabel.heuristic", m.Heuristic)
	v.SetDefault("multilabel.evaluation", string(m.Evaluation))
	v.SetDefault("multilabel.labels", m.Labels)
	v.SetDefault("multilabel.heuristic_parameter", m.HeuristicParameter)
	v.SetDefault("multilabel.skip_threshold", m.SkipThreshold)
	v.SetDefault("multilabel.min_coverage", m.MinCoverage)
	v.SetDefault("multilabel.seed", m.Seed)
	v.SetDefault("multilabel.beam_width", m.BeamWidth)
	v.SetDefault("multilabel.n_step", m.NStep)
	v.SetDefault("multilabel.max_rules", m.MaxRules)
	v.SetDefault("multilabel.cache_size", m.CacheSize)
	v.SetDefault("multilabel.predict_zero", m.PredictZero)
	v.SetDefault("multilabel.bottom_up", m.BottomUp)
	v.SetDefault("multilabel.randomize", m.Randomize)
	v.SetDefault("multilabel.decision_list", m.DecisionList)
	v.SetDefault("multilabel.label_conditions", m.LabelConditions)

	s := d.Sweep
	v.SetDefault("sweep.heuristics", s.Heuristics)
	v.SetDefault("sweep.parameters", s.Parameters)
	v.SetDefault("sweep.beam_widths", s.BeamWidths)
	v.SetDefault("sweep.workers", s.Workers)
	v.SetDefault("sweep.holdout", s.Holdout)
}

// Load decodes the configuration held by v. Defaults must have been registered with
// SetDefaults. The storage path is expanded.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	cfg.Storage.Path = ExpandPath(cfg.Storage.Path)
	return &cfg, nil
}
