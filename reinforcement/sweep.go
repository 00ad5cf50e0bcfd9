package reinforcement

import (
	"context"
	"fmt"
	"math/rand"

	"gridmdp/models"

	"golang.org/x/sync/errgroup"
)

/*
Parallel comparison runs. Each configuration gets its own goroutine, which owns a
private clone of the grid, its own transition tensor, table and random source; nothing
mutable is shared. Results are collected by index once every worker has joined, so a
caller never observes a partial set, and a worker never publishes a table before its
loop has finished.
*/

// RunValueIterationSweep solves the grid once per discount factor, in parallel.
func RunValueIterationSweep(
	ctx context.Context,
	grid *models.GridWorld,
	slip SlipModel,
	configs []ValueIterationConfig,
) ([]*ValueIterationResult, error) {
	results := make([]*ValueIterationResult, len(configs))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, cfg := range configs {
		i, cfg := i, cfg
		group.Go(func() error {
			local := grid.Clone()
			tensor, err := BuildTransitions(local, slip)
			if err != nil {
				return err
			}
			result, err := SolveValueIteration(local, tensor, cfg)
			if err != nil {
				return fmt.Errorf("discount %v: %w", cfg.Discount, err)
			}
			// Planning is offline and bounded, so cancellation is only checked on completion.
			if err = groupCtx.Err(); err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RunQLearningSweep trains one learner per config, in parallel. Learner i is seeded
// with seed+i so runs are reproducible. progressFn, if any, is called from every
// run's goroutine and must be safe for concurrent use.
func RunQLearningSweep(
	ctx context.Context,
	grid *models.GridWorld,
	configs []QLearningConfig,
	seed int64,
	progressFn func(run int, ep *EpisodeResult),
) ([]*QLearningResult, error) {
	results := make([]*QLearningResult, len(configs))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, cfg := range configs {
		i, cfg := i, cfg
		group.Go(func() error {
			learner, err := NewQLearner(grid.Clone(), cfg, rand.New(rand.NewSource(seed+int64(i))))
			if err != nil {
				return fmt.Errorf("success probability %v: %w", cfg.SuccessProb, err)
			}

			var hook ProgressFunc
			if progressFn != nil {
				hook = func(_ context.Context, ep *EpisodeResult) { progressFn(i, ep) }
			}
			result, err := learner.Train(groupCtx, hook)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
