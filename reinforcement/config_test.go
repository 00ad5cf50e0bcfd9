package reinforcement

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gridmdp/models"

	. "github.com/smartystreets/goconvey/convey"
)

const testConfig = `kind: training
def:
  algorithm:
    kind: q-learning
  trainingDeadline:
    duration: 30s
  discountFactors: [0.5, 0.6]
  successProbabilities: [0.25]
  seed: 9
  layout:
    - "S0 S1 G"
    - "W0 P0 S2"
  rewards:
    normal: -0.2
    danger: -1
    wall: -0.2
    goal: 5
  hyperParams:
    - key: alpha
      val: 0.3
    - key: episodes
      val: 20
    - key: sweeps
      val: 12
`

func TestTrainingConfig(t *testing.T) {
	Convey("Given a config file", t, func() {
		path := filepath.Join(t.TempDir(), "config.yaml")
		So(os.WriteFile(path, []byte(testConfig), 0o644), ShouldBeNil)

		cfg, err := FromYaml(path)
		So(err, ShouldBeNil)

		Convey("Its definition is decoded", func() {
			So(cfg.Kind(), ShouldEqual, KIND_Q_LEARNING)
			So(cfg.DiscountFactors, ShouldResemble, []float64{0.5, 0.6})
			So(cfg.SuccessProbabilities, ShouldResemble, []float64{0.25})
			So(cfg.Seed, ShouldEqual, 9)
		})

		Convey("Hyper-parameters override the defaults", func() {
			ql := cfg.QLearningConfig(0.25)
			So(ql.Alpha, ShouldEqual, 0.3)
			So(ql.Episodes, ShouldEqual, 20)
			So(ql.Gamma, ShouldEqual, DefaultQLearning.Gamma)
			So(ql.SuccessProb, ShouldEqual, 0.25)

			vi := cfg.ValueIterationConfig(0.5)
			So(vi.Sweeps, ShouldEqual, 12)
			So(vi.Epsilon, ShouldEqual, 0.0)
			So(cfg.SlipModel(), ShouldResemble, DefaultSlip)
		})

		Convey("The configured layout and rewards replace the defaults", func() {
			grid, err := cfg.Grid(models.PlanningLayout, models.PlanningRewards)
			So(err, ShouldBeNil)
			rows, cols := grid.Dims()
			So(rows, ShouldEqual, 2)
			So(cols, ShouldEqual, 3)
			So(grid.Reward(grid.Index(0, 2)), ShouldEqual, 5.0)
			So(grid.Reward(grid.Index(1, 1)), ShouldEqual, -1.0)
		})

		Convey("The training deadline bounds the context", func() {
			ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			deadline, ok := ctx.Deadline()
			So(ok, ShouldBeTrue)
			So(time.Until(deadline), ShouldBeLessThanOrEqualTo, 30*time.Second)
		})
	})

	Convey("Given the default config", t, func() {
		cfg := DefaultConfig()
		So(cfg.Kind(), ShouldEqual, KIND_BOTH)
		So(cfg.DiscountFactors, ShouldResemble, models.PlanningDiscounts)

		ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
		So(err, ShouldBeNil)
		defer cancel()
		_, ok := ctx.Deadline()
		So(ok, ShouldBeFalse)

		grid, err := cfg.Grid(models.TinyLayout, models.LearningRewards)
		So(err, ShouldBeNil)
		So(grid.NumStates(), ShouldEqual, 4)

		Convey("A malformed deadline is an error", func() {
			cfg.TrainingDeadline = map[string]string{"duration": "soon"}
			_, _, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a config whose selected sweep is empty", t, func() {
		dir := t.TempDir()
		write := func(name, body string) string {
			path := filepath.Join(dir, name)
			So(os.WriteFile(path, []byte(body), 0o644), ShouldBeNil)
			return path
		}

		Convey("An empty success probability list names the key", func() {
			path := write("ql.yaml", `kind: training
def:
  algorithm:
    kind: both
  successProbabilities: []
`)
			_, err := FromYaml(path)
			So(errors.Is(err, models.ErrConfiguration), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "successProbabilities")
		})

		Convey("An empty discount list names the key", func() {
			path := write("vi.yaml", `kind: training
def:
  algorithm:
    kind: value-iteration
  discountFactors: []
`)
			_, err := FromYaml(path)
			So(errors.Is(err, models.ErrConfiguration), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "discountFactors")
		})

		Convey("An unselected algorithm may leave its list empty", func() {
			path := write("vi-only.yaml", `kind: training
def:
  algorithm:
    kind: value-iteration
  successProbabilities: []
`)
			cfg, err := FromYaml(path)
			So(err, ShouldBeNil)
			So(cfg.SuccessProbabilities, ShouldBeEmpty)
		})

		Convey("An unknown algorithm is rejected", func() {
			path := write("kind.yaml", `kind: training
def:
  algorithm:
    kind: sarsa
`)
			_, err := FromYaml(path)
			So(errors.Is(err, models.ErrConfiguration), ShouldBeTrue)
		})
	})

	Convey("A missing file is an error", t, func() {
		_, err := FromYaml(filepath.Join(t.TempDir(), "absent.yaml"))
		So(err, ShouldNotBeNil)
	})
}
