package reinforcement

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"gridmdp/models"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OuterConfig is the envelope of a config file: a kind and an opaque definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig encodes algorithmic and training parameters outside of code.
// Keys are lowercase because viper folds the case of every key it reads.
type TrainingConfig struct {
	// HyperParams is a key-val list of param names and their value.
	HyperParams []HyperParameter `yaml:"hyperparams"`
	// Algorithm selects what to run, e.g. {"kind": "both"}.
	Algorithm map[string]string `yaml:"algorithm"`
	// TrainingDeadline is a duration describing when to terminate training.
	TrainingDeadline map[string]string `yaml:"trainingdeadline"`
	// DiscountFactors are compared by parallel value iteration runs.
	DiscountFactors []float64 `yaml:"discountfactors"`
	// SuccessProbabilities are compared by parallel q-learning runs.
	SuccessProbabilities []float64 `yaml:"successprobabilities"`
	// Layout optionally overrides the compiled grid, one row of space separated tokens per entry.
	Layout  []string        `yaml:"layout"`
	Rewards *models.Rewards `yaml:"rewards"`
	Seed    int64           `yaml:"seed"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// Algorithm kinds
const (
	KIND_VALUE_ITERATION = "value-iteration"
	KIND_Q_LEARNING      = "q-learning"
	KIND_BOTH            = "both"
)

// DefaultConfig runs both algorithms over the default sweeps when no config file is given.
func DefaultConfig() *TrainingConfig {
	return &TrainingConfig{
		Algorithm:            map[string]string{"kind": KIND_BOTH},
		DiscountFactors:      models.PlanningDiscounts,
		SuccessProbabilities: models.LearningSuccessProbs,
		Seed:                 1,
	}
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// Kind returns the algorithm selector, defaulting to both.
func (cfg *TrainingConfig) Kind() string {
	if kind, ok := cfg.Algorithm["kind"]; ok {
		return kind
	}
	return KIND_BOTH
}

// Validate checks the algorithm kind and that each algorithm it selects has values to sweep.
func (cfg *TrainingConfig) Validate() error {
	kind := cfg.Kind()
	switch kind {
	case KIND_VALUE_ITERATION, KIND_Q_LEARNING, KIND_BOTH:
	default:
		return fmt.Errorf("algorithm kind %q: %w", kind, models.ErrConfiguration)
	}
	if kind != KIND_Q_LEARNING && len(cfg.DiscountFactors) == 0 {
		return fmt.Errorf("discountFactors is empty: %w", models.ErrConfiguration)
	}
	if kind != KIND_VALUE_ITERATION && len(cfg.SuccessProbabilities) == 0 {
		return fmt.Errorf("successProbabilities is empty: %w", models.ErrConfiguration)
	}
	return nil
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("training deadline: %w", err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// SlipModel returns the three-way outcome split of the planning transition model.
func (cfg *TrainingConfig) SlipModel() SlipModel {
	return SlipModel{
		Intended: cfg.GetHyperParamOrDefault("intended", DefaultSlip.Intended),
		Left:     cfg.GetHyperParamOrDefault("left", DefaultSlip.Left),
		Right:    cfg.GetHyperParamOrDefault("right", DefaultSlip.Right),
	}
}

// ValueIterationConfig returns solver settings for one discount factor.
func (cfg *TrainingConfig) ValueIterationConfig(discount float64) ValueIterationConfig {
	return ValueIterationConfig{
		Discount: discount,
		Sweeps:   int(cfg.GetHyperParamOrDefault("sweeps", DEFAULT_SWEEPS)),
		Epsilon:  cfg.GetHyperParamOrDefault("tolerance", 0),
	}
}

// QLearningConfig returns agent settings for one move success probability.
func (cfg *TrainingConfig) QLearningConfig(successProb float64) QLearningConfig {
	return QLearningConfig{
		Alpha:        cfg.GetHyperParamOrDefault("alpha", DefaultQLearning.Alpha),
		Gamma:        cfg.GetHyperParamOrDefault("gamma", DefaultQLearning.Gamma),
		Epsilon:      cfg.GetHyperParamOrDefault("epsilon", DefaultQLearning.Epsilon),
		EpsilonDecay: cfg.GetHyperParamOrDefault("decay", DefaultQLearning.EpsilonDecay),
		SuccessProb:  successProb,
		Episodes:     int(cfg.GetHyperParamOrDefault("episodes", float64(DefaultQLearning.Episodes))),
		MaxSteps:     int(cfg.GetHyperParamOrDefault("maxsteps", float64(DefaultQLearning.MaxSteps))),
	}
}

// Grid builds the configured grid, or the passed default layout if none is configured.
func (cfg *TrainingConfig) Grid(
	defaultLayout [][]string,
	defaultRewards models.Rewards,
) (*models.GridWorld, error) {
	layout := defaultLayout
	if len(cfg.Layout) > 0 {
		layout = models.ParseLayout(cfg.Layout)
	}
	rewards := defaultRewards
	if cfg.Rewards != nil {
		rewards = *cfg.Rewards
	}
	return models.NewGridWorld(layout, rewards)
}

// FromYaml reads a {kind, def} envelope with viper and decodes its definition into a TrainingConfig.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	var spec []byte
	if spec, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := DefaultConfig()
	if err = yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, fmt.Errorf("decode %s definition: %w", outerConfig.Kind, err)
	}
	if err = innerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return innerConfig, nil
}
