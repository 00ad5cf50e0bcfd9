package reinforcement

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"gridmdp/models"

	. "github.com/smartystreets/goconvey/convey"
)

// greedyRollout follows a policy deterministically and returns the steps taken to reach the goal,
// or -1 if the goal is not reached within maxSteps.
func greedyRollout(grid *models.GridWorld, policy models.Policy, start, maxSteps int) int {
	state := start
	for step := 1; step <= maxSteps; step++ {
		state, _ = grid.Neighbor(state, policy.Action(state))
		if grid.IsGoal(state) {
			return step
		}
	}
	return -1
}

func TestQLearner(t *testing.T) {
	Convey("Given the tiny grid", t, func() {
		grid := models.MustGridWorld(models.TinyLayout, models.LearningRewards)
		cfg := QLearningConfig{
			Alpha:        0.1,
			Gamma:        0.95,
			Epsilon:      0.1,
			EpsilonDecay: 0.9,
			SuccessProb:  1.0,
			Episodes:     5000,
			MaxSteps:     100,
		}

		Convey("Late episodes reach the goal quickly", func() {
			learner, err := NewQLearner(grid, cfg, rand.New(rand.NewSource(7)))
			So(err, ShouldBeNil)
			result, err := learner.Train(context.Background(), nil)
			So(err, ShouldBeNil)
			So(len(result.Episodes), ShouldEqual, cfg.Episodes)

			total := 0
			for _, ep := range result.Episodes[len(result.Episodes)-100:] {
				total += ep.Steps
			}
			So(float64(total)/100.0, ShouldBeLessThanOrEqualTo, 3.0)

			So(result.Policy[grid.Index(0, 0)], ShouldEqual, models.EAST)
			So(result.Policy[grid.Index(1, 1)], ShouldEqual, models.NORTH)
		})

		Convey("Epsilon decays geometrically per episode", func() {
			learner, _ := NewQLearner(grid, cfg, rand.New(rand.NewSource(1)))
			So(learner.Epsilon(), ShouldEqual, 0.1)
			for k := 1; k <= 5; k++ {
				ep := learner.RunEpisode()
				So(ep.Episode, ShouldEqual, k-1)
				So(ep.Epsilon, ShouldAlmostEqual, 0.1*math.Pow(0.9, float64(k)), 1e-12)
			}
			So(learner.Epsilon(), ShouldAlmostEqual, 0.1*math.Pow(0.9, 5), 1e-12)
		})

		Convey("Wall rows are never updated", func() {
			learner, _ := NewQLearner(grid, cfg, rand.New(rand.NewSource(3)))
			for k := 0; k < 200; k++ {
				learner.RunEpisode()
			}
			So(learner.QTable().Row(grid.Index(1, 0)), ShouldResemble, []float64{0, 0, 0, 0})
		})

		Convey("A zero success probability always leaves the agent in place", func() {
			stuck := cfg
			stuck.SuccessProb = 0
			learner, err := NewQLearner(grid, stuck, rand.New(rand.NewSource(5)))
			So(err, ShouldBeNil)
			s0 := grid.Index(0, 0)
			for k := 0; k < 100; k++ {
				So(learner.Step(s0, models.EAST), ShouldEqual, s0)
			}
		})

		Convey("Blocked moves leave the agent in place", func() {
			learner, _ := NewQLearner(grid, cfg, rand.New(rand.NewSource(5)))
			s1 := grid.Index(1, 1)
			So(learner.Step(s1, models.WEST), ShouldEqual, s1)
			So(learner.Step(s1, models.EAST), ShouldEqual, s1)
			So(learner.Step(s1, models.NORTH), ShouldEqual, grid.Index(0, 1))
		})

		Convey("The update rule blends old value and target", func() {
			learner, _ := NewQLearner(grid, cfg, rand.New(rand.NewSource(5)))
			s0 := grid.Index(0, 0)
			goal := grid.Index(0, 1)
			learner.Update(s0, models.EAST, goal)
			// (1-0.1)*0 + 0.1*(1 + 0.95*0)
			So(learner.QTable().Get(s0, models.EAST), ShouldAlmostEqual, 0.1, 1e-12)
			learner.Update(s0, models.EAST, goal)
			So(learner.QTable().Get(s0, models.EAST), ShouldAlmostEqual, 0.19, 1e-12)
		})

		Convey("Equal seeds give equal tables", func() {
			short := cfg
			short.Episodes = 300
			a, _ := NewQLearner(grid, short, rand.New(rand.NewSource(11)))
			b, _ := NewQLearner(grid, short, rand.New(rand.NewSource(11)))
			ra, err := a.Train(context.Background(), nil)
			So(err, ShouldBeNil)
			rb, err := b.Train(context.Background(), nil)
			So(err, ShouldBeNil)
			So(ra.Q.MaxDelta(rb.Q), ShouldEqual, 0.0)
			So(ra.Episodes, ShouldResemble, rb.Episodes)
		})

		Convey("Progress is reported once per episode", func() {
			short := cfg
			short.Episodes = 25
			learner, _ := NewQLearner(grid, short, rand.New(rand.NewSource(2)))
			seen := []int{}
			_, err := learner.Train(context.Background(), func(_ context.Context, ep *EpisodeResult) {
				seen = append(seen, ep.Episode)
			})
			So(err, ShouldBeNil)
			So(len(seen), ShouldEqual, 25)
			So(seen[24], ShouldEqual, 24)
		})

		Convey("A cancelled context publishes no table", func() {
			learner, _ := NewQLearner(grid, cfg, rand.New(rand.NewSource(2)))
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			result, err := learner.Train(ctx, nil)
			So(result, ShouldBeNil)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given a 3x3 grid with a center wall and no exploration", t, func() {
		grid := models.MustGridWorld([][]string{
			{"S", "S", "S"},
			{"S", "W", "S"},
			{"S", "S", "G"},
		}, models.LearningRewards)
		cfg := QLearningConfig{
			Alpha:        0.5,
			Gamma:        0.95,
			Epsilon:      0,
			EpsilonDecay: 0.9,
			SuccessProb:  1.0,
			Episodes:     3000,
			MaxSteps:     50,
		}
		learner, err := NewQLearner(grid, cfg, rand.New(rand.NewSource(42)))
		So(err, ShouldBeNil)
		result, err := learner.Train(context.Background(), nil)
		So(err, ShouldBeNil)

		Convey("The greedy policy reaches the goal from every open cell", func() {
			for _, s := range grid.OpenIndices() {
				if grid.IsGoal(s) {
					continue
				}
				steps := greedyRollout(grid, result.Policy, s, grid.NumStates())
				So(steps, ShouldBeGreaterThan, 0)
			}
		})
	})

	Convey("When the learner is misconfigured", t, func() {
		grid := models.MustGridWorld(models.TinyLayout, models.LearningRewards)
		rng := rand.New(rand.NewSource(1))
		bad := []QLearningConfig{
			{Alpha: 0, Gamma: 0.9, Epsilon: 0.1, EpsilonDecay: 0.9, SuccessProb: 1, Episodes: 1, MaxSteps: 1},
			{Alpha: 0.1, Gamma: 1, Epsilon: 0.1, EpsilonDecay: 0.9, SuccessProb: 1, Episodes: 1, MaxSteps: 1},
			{Alpha: 0.1, Gamma: 0.9, Epsilon: 1.5, EpsilonDecay: 0.9, SuccessProb: 1, Episodes: 1, MaxSteps: 1},
			{Alpha: 0.1, Gamma: 0.9, Epsilon: 0.1, EpsilonDecay: 0, SuccessProb: 1, Episodes: 1, MaxSteps: 1},
			{Alpha: 0.1, Gamma: 0.9, Epsilon: 0.1, EpsilonDecay: 1, SuccessProb: 1, Episodes: 1, MaxSteps: 1},
			{Alpha: 0.1, Gamma: 0.9, Epsilon: 0.1, EpsilonDecay: 0.9, SuccessProb: 1.2, Episodes: 1, MaxSteps: 1},
			{Alpha: 0.1, Gamma: 0.9, Epsilon: 0.1, EpsilonDecay: 0.9, SuccessProb: 1, Episodes: 0, MaxSteps: 1},
			{Alpha: 0.1, Gamma: 0.9, Epsilon: 0.1, EpsilonDecay: 0.9, SuccessProb: 1, Episodes: 1, MaxSteps: 0},
		}
		for _, cfg := range bad {
			_, err := NewQLearner(grid, cfg, rng)
			So(errors.Is(err, models.ErrConfiguration), ShouldBeTrue)
		}

		Convey("A grid of only walls is rejected", func() {
			walls := models.MustGridWorld([][]string{{"W", "W"}}, models.LearningRewards)
			_, err := NewQLearner(walls, DefaultQLearning, rng)
			So(errors.Is(err, models.ErrConfiguration), ShouldBeTrue)
		})
	})
}
