// playback drives a robot along a learned policy, for evaluating and displaying policies.
package playback

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gridmdp/atomic_float"
	"gridmdp/models"

	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

// DEFAULT_STEPS is the length of a comparison simulation.
const DEFAULT_STEPS = 1000

// Snapshot describes the robot after a step.
type Snapshot struct {
	Step       int
	State      int
	Row, Col   int
	Reward     float64
	Cumulative float64
	Resets     int
	// ReachedGoal is set on the step that landed in the goal; State is then the reset position.
	ReachedGoal bool
}

// Robot moves deterministically along a policy: each step it takes the policy's action,
// staying put when the target is off-grid or a wall, and collects the reward of the cell
// it lands in. On reaching a goal it is placed on a random open non-goal cell.
// A Robot is stepped by one goroutine; CumulativeReward may be read from any.
type Robot struct {
	grid       *models.GridWorld
	policy     models.Policy
	rng        *rand.Rand
	state      int
	steps      int
	resets     int
	cumulative *atomic_float.AtomicFloat64
}

func NewRobot(
	grid *models.GridWorld,
	policy models.Policy,
	rng *rand.Rand,
) (*Robot, error) {
	if len(policy) != grid.NumStates() {
		return nil, fmt.Errorf(
			"policy covers %d states, grid has %d: %w", len(policy), grid.NumStates(), models.ErrConfiguration)
	}
	if len(grid.OpenIndices()) == len(grid.GoalIndices()) {
		return nil, fmt.Errorf("grid has no open non-goal cell: %w", models.ErrConfiguration)
	}

	robot := &Robot{
		grid:       grid,
		policy:     policy,
		rng:        rng,
		cumulative: atomic_float.NewAtomicFloat64(0),
	}
	robot.state = robot.randomStart()
	return robot, nil
}

func (r *Robot) randomStart() int {
	for {
		if cell := r.grid.RandomOpenCell(r.rng); cell.Type != models.GOAL {
			return cell.Index
		}
	}
}

// State returns the robot's current cell index.
func (r *Robot) State() int {
	return r.state
}

// CumulativeReward is the sum of rewards collected so far.
func (r *Robot) CumulativeReward() float64 {
	return r.cumulative.AtomicRead()
}

// Snapshot describes the robot's current position without moving it.
func (r *Robot) Snapshot() Snapshot {
	row, col := r.grid.Position(r.state)
	return Snapshot{
		Step:       r.steps,
		State:      r.state,
		Row:        row,
		Col:        col,
		Cumulative: r.CumulativeReward(),
		Resets:     r.resets,
	}
}

// Step moves the robot once along the policy.
func (r *Robot) Step() Snapshot {
	next, _ := r.grid.Neighbor(r.state, r.policy.Action(r.state))
	reward := r.grid.Reward(next)
	r.cumulative.AtomicAdd(reward)
	r.steps++

	reachedGoal := r.grid.IsGoal(next)
	if reachedGoal {
		next = r.randomStart()
		r.resets++
	}
	r.state = next

	snap := r.Snapshot()
	snap.Reward = reward
	snap.ReachedGoal = reachedGoal
	return snap
}

// Simulate runs steps steps and returns the reward collected at each.
func (r *Robot) Simulate(steps int) []float64 {
	rewards := make([]float64, steps)
	for i := range rewards {
		rewards[i] = r.Step().Reward
	}
	return rewards
}

// Run steps the robot once per interval and publishes each snapshot, until done is
// closed or, if maxSteps is positive, after maxSteps steps. The output is closed on exit.
func (r *Robot) Run(
	done <-chan struct{},
	interval time.Duration,
	maxSteps int,
) <-chan Snapshot {
	snapshots := make(chan Snapshot)

	go func() {
		defer close(snapshots)
		ticker := channerics.NewTicker(done, interval)
		for {
			select {
			case <-done:
				return
			case _, ok := <-ticker:
				if !ok {
					return
				}
			}

			select {
			case snapshots <- r.Step():
			case <-done:
				return
			}
			if maxSteps > 0 && r.steps >= maxSteps {
				return
			}
		}
	}()

	return snapshots
}

// Cumulative returns the running sum of rewards.
func Cumulative(rewards []float64) []float64 {
	sums := make([]float64, len(rewards))
	total := 0.0
	for i, reward := range rewards {
		total += reward
		sums[i] = total
	}
	return sums
}

// RunSimulations follows each policy with its own robot for steps steps, in parallel,
// and returns the per-step rewards of each. Robot i is seeded with seed+i.
func RunSimulations(
	ctx context.Context,
	grid *models.GridWorld,
	policies []models.Policy,
	steps int,
	seed int64,
) ([][]float64, error) {
	results := make([][]float64, len(policies))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, policy := range policies {
		i, policy := i, policy
		group.Go(func() error {
			robot, err := NewRobot(grid.Clone(), policy, rand.New(rand.NewSource(seed+int64(i))))
			if err != nil {
				return err
			}
			rewards := robot.Simulate(steps)
			if err = groupCtx.Err(); err != nil {
				return err
			}
			results[i] = rewards
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
