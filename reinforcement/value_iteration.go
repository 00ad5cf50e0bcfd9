package reinforcement

import (
	"fmt"

	"gridmdp/models"

	"gonum.org/v1/gonum/mat"
)

// DEFAULT_SWEEPS is the fixed sweep budget when no tolerance is set.
const DEFAULT_SWEEPS = 1000

// ValueIterationConfig parameterizes the planner. With Epsilon zero exactly
// Sweeps sweeps run; otherwise iteration stops once the largest change in a sweep
// falls below Epsilon, or after Sweeps sweeps, whichever is first.
type ValueIterationConfig struct {
	Discount float64
	Sweeps   int
	Epsilon  float64
}

func (cfg ValueIterationConfig) Validate() error {
	if !(cfg.Discount > 0 && cfg.Discount < 1) {
		return fmt.Errorf("discount factor %v outside (0,1): %w", cfg.Discount, models.ErrConfiguration)
	}
	if cfg.Sweeps <= 0 {
		return fmt.Errorf("sweep budget %d must be positive: %w", cfg.Sweeps, models.ErrConfiguration)
	}
	if cfg.Epsilon < 0 {
		return fmt.Errorf("tolerance %v is negative: %w", cfg.Epsilon, models.ErrConfiguration)
	}
	return nil
}

// ValueIterationResult is the converged table and its greedy policy.
// Deltas[k] is the largest |Q_k - Q_{k-1}| of sweep k.
type ValueIterationResult struct {
	Discount float64
	Q        *models.QTable
	Policy   models.Policy
	Sweeps   int
	Deltas   []float64
}

// SolveValueIteration computes action values by synchronous Bellman backups:
//
//	Q_new[s][a] = sum_s' P[a][s][s'] * (reward(s') + gamma * max_a' Q_old[s'][a'])
//
// Every sweep reads only the previous sweep's table; the two tables are swapped at
// the sweep boundary.
func SolveValueIteration(
	grid *models.GridWorld,
	tensor *TransitionTensor,
	cfg ValueIterationConfig,
) (*ValueIterationResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := grid.NumStates()
	if tensor.NumStates() != n {
		return nil, fmt.Errorf(
			"tensor has %d states, grid has %d: %w", tensor.NumStates(), n, models.ErrConfiguration)
	}

	rewards := make([]float64, n)
	for s := range rewards {
		rewards[s] = grid.Reward(s)
	}

	prev := models.NewQTable(n)
	next := models.NewQTable(n)
	// target[s'] is the backed-up value of landing in s'.
	target := mat.NewVecDense(n, nil)
	backup := mat.NewVecDense(n, nil)

	result := &ValueIterationResult{
		Discount: cfg.Discount,
		Deltas:   make([]float64, 0, cfg.Sweeps),
	}
	for sweep := 0; sweep < cfg.Sweeps; sweep++ {
		for s := 0; s < n; s++ {
			target.SetVec(s, rewards[s]+cfg.Discount*prev.Max(s))
		}
		for _, action := range models.Actions {
			backup.MulVec(tensor.Matrix(action), target)
			for s := 0; s < n; s++ {
				next.Set(s, action, backup.AtVec(s))
			}
		}

		delta := next.MaxDelta(prev)
		result.Deltas = append(result.Deltas, delta)
		prev, next = next, prev

		if cfg.Epsilon > 0 && delta < cfg.Epsilon {
			break
		}
	}

	result.Q = prev
	result.Sweeps = len(result.Deltas)
	result.Policy = prev.Policy()
	return result, nil
}
