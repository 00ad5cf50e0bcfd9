package reinforcement

import (
	"context"
	"fmt"
	"math/rand"

	"gridmdp/models"
)

// QLearningConfig holds the learner's hyper-parameters.
// SuccessProb is the chance a commanded move is attempted at all; on failure the
// agent stays put for the step. This is deliberately unlike the planner's lateral
// slip model: the learner never drifts sideways.
type QLearningConfig struct {
	Alpha        float64
	Gamma        float64
	Epsilon      float64
	EpsilonDecay float64
	SuccessProb  float64
	Episodes     int
	MaxSteps     int
}

// DefaultQLearning are the learning settings used when none are configured.
var DefaultQLearning = QLearningConfig{
	Alpha:        0.1,
	Gamma:        0.95,
	Epsilon:      0.1,
	EpsilonDecay: 0.9,
	SuccessProb:  1.0,
	Episodes:     1000,
	MaxSteps:     100,
}

func (cfg QLearningConfig) Validate() error {
	var reason string
	switch {
	case !(cfg.Alpha > 0 && cfg.Alpha <= 1):
		reason = fmt.Sprintf("learning rate %v outside (0,1]", cfg.Alpha)
	case !(cfg.Gamma > 0 && cfg.Gamma < 1):
		reason = fmt.Sprintf("discount factor %v outside (0,1)", cfg.Gamma)
	case cfg.Epsilon < 0 || cfg.Epsilon > 1:
		reason = fmt.Sprintf("epsilon %v outside [0,1]", cfg.Epsilon)
	case !(cfg.EpsilonDecay > 0 && cfg.EpsilonDecay < 1):
		reason = fmt.Sprintf("epsilon decay %v outside (0,1)", cfg.EpsilonDecay)
	case cfg.SuccessProb < 0 || cfg.SuccessProb > 1:
		reason = fmt.Sprintf("success probability %v outside [0,1]", cfg.SuccessProb)
	case cfg.Episodes <= 0:
		reason = fmt.Sprintf("episode budget %d must be positive", cfg.Episodes)
	case cfg.MaxSteps <= 0:
		reason = fmt.Sprintf("step budget %d must be positive", cfg.MaxSteps)
	default:
		return nil
	}
	return fmt.Errorf("%s: %w", reason, models.ErrConfiguration)
}

// EpisodeResult is observational only; nothing in it feeds back into learning.
type EpisodeResult struct {
	Episode int
	Steps   int
	Reward  float64
	// Epsilon is the exploration rate after this episode's decay.
	Epsilon float64
	Policy  models.Policy
}

// QLearningResult is the trained table and the per-episode diagnostics.
type QLearningResult struct {
	SuccessProb float64
	Q           *models.QTable
	Policy      models.Policy
	Episodes    []EpisodeResult
}

// ProgressFunc is a callback by which training lends progress details. It is
// synchronous and should complete quickly.
type ProgressFunc func(context.Context, *EpisodeResult)

// QLearner learns action values from sampled transitions. It owns its table and
// random source, so independent learners can run in parallel without sharing state.
type QLearner struct {
	grid    *models.GridWorld
	cfg     QLearningConfig
	rng     *rand.Rand
	q       *models.QTable
	epsilon float64
	episode int
}

func NewQLearner(
	grid *models.GridWorld,
	cfg QLearningConfig,
	rng *rand.Rand,
) (*QLearner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(grid.OpenIndices()) == 0 {
		return nil, fmt.Errorf("grid has no open cells: %w", models.ErrConfiguration)
	}
	return &QLearner{
		grid:    grid,
		cfg:     cfg,
		rng:     rng,
		q:       models.NewQTable(grid.NumStates()),
		epsilon: cfg.Epsilon,
	}, nil
}

// Epsilon returns the current exploration rate.
func (ql *QLearner) Epsilon() float64 {
	return ql.epsilon
}

// QTable returns a snapshot of the learned values.
func (ql *QLearner) QTable() *models.QTable {
	return ql.q.Clone()
}

// ChooseAction is epsilon-greedy: with probability epsilon a uniformly random
// action, otherwise the first maximal action of the state's row.
func (ql *QLearner) ChooseAction(state int) models.Action {
	if ql.rng.Float64() < ql.epsilon {
		return models.Action(ql.rng.Intn(models.NumActions))
	}
	best, _ := ql.q.Best(state)
	return best
}

// Step applies the environment dynamics: the move is attempted with the configured
// success probability, and an off-grid or wall target leaves the agent in place.
func (ql *QLearner) Step(state int, action models.Action) int {
	if ql.rng.Float64() >= ql.cfg.SuccessProb {
		return state
	}
	next, _ := ql.grid.Neighbor(state, action)
	return next
}

// Update applies Q[s][a] = (1-alpha)*Q[s][a] + alpha*(r(s') + gamma*max_a' Q[s'][a']).
func (ql *QLearner) Update(state int, action models.Action, next int) {
	old := ql.q.Get(state, action)
	target := ql.grid.Reward(next) + ql.cfg.Gamma*ql.q.Max(next)
	ql.q.Set(state, action, (1-ql.cfg.Alpha)*old+ql.cfg.Alpha*target)
}

// RunEpisode resets the agent to a random open cell and learns until it reaches
// the goal or exhausts the step budget, then decays epsilon.
func (ql *QLearner) RunEpisode() *EpisodeResult {
	state := ql.grid.RandomOpenCell(ql.rng).Index
	result := &EpisodeResult{Episode: ql.episode}

	for step := 0; step < ql.cfg.MaxSteps; step++ {
		action := ql.ChooseAction(state)
		next := ql.Step(state, action)
		ql.Update(state, action, next)

		result.Reward += ql.grid.Reward(next)
		result.Steps++
		state = next
		if ql.grid.IsGoal(state) {
			break
		}
	}

	ql.epsilon *= ql.cfg.EpsilonDecay
	ql.episode++
	result.Epsilon = ql.epsilon
	result.Policy = ql.q.Policy()
	return result
}

// Train runs the full episode budget. Cancellation is honored between episodes;
// a cancelled run returns the context's error and no result, so a partially
// trained table is never published.
func (ql *QLearner) Train(ctx context.Context, progressFn ProgressFunc) (*QLearningResult, error) {
	episodes := make([]EpisodeResult, 0, ql.cfg.Episodes)
	for i := 0; i < ql.cfg.Episodes; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result := ql.RunEpisode()
		episodes = append(episodes, *result)
		if progressFn != nil {
			progressFn(ctx, result)
		}
	}

	return &QLearningResult{
		SuccessProb: ql.cfg.SuccessProb,
		Q:           ql.QTable(),
		Policy:      ql.q.Policy(),
		Episodes:    episodes,
	}, nil
}
