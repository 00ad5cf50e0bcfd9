package reinforcement

import (
	"fmt"
	"math"

	"gridmdp/models"

	"gonum.org/v1/gonum/mat"
)

// SlipModel is the outcome split of a commanded move: the intended direction
// and the two directions lateral to the heading.
type SlipModel struct {
	Intended, Left, Right float64
}

// DefaultSlip succeeds 80% of the time and drifts sideways otherwise.
var DefaultSlip = SlipModel{Intended: 0.8, Left: 0.1, Right: 0.1}

// probTolerance is the allowed deviation of a distribution's mass from one.
const probTolerance = 1e-6

func (sm SlipModel) Validate() error {
	for _, p := range []float64{sm.Intended, sm.Left, sm.Right} {
		if p < 0 || p > 1 {
			return fmt.Errorf("slip probability %v outside [0,1]: %w", p, models.ErrConfiguration)
		}
	}
	if sum := sm.Intended + sm.Left + sm.Right; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("slip probabilities sum to %v: %w", sum, models.ErrConfiguration)
	}
	return nil
}

// TransitionTensor holds P[action][from][to], one numStates x numStates matrix per action.
// Wall rows carry no mass. It is immutable once built.
type TransitionTensor struct {
	numStates int
	p         [models.NumActions]*mat.Dense
}

// BuildTransitions derives the stochastic transition model of the grid. For each
// non-wall cell and action, each outcome direction's mass goes to the neighbor, or back
// onto the cell itself if the neighbor is off-grid or a wall. Mass accumulates, since
// several outcomes can land on the same target.
func BuildTransitions(grid *models.GridWorld, slip SlipModel) (*TransitionTensor, error) {
	if err := slip.Validate(); err != nil {
		return nil, err
	}

	n := grid.NumStates()
	tensor := &TransitionTensor{numStates: n}
	for _, action := range models.Actions {
		tensor.p[action] = mat.NewDense(n, n, nil)
	}

	grid.Visit(func(cell *models.Cell) {
		if cell.Type == models.WALL {
			return
		}
		for _, action := range models.Actions {
			left, right := action.Laterals()
			outcomes := [3]struct {
				dir  models.Action
				prob float64
			}{
				{action, slip.Intended},
				{left, slip.Left},
				{right, slip.Right},
			}

			pa := tensor.p[action]
			for _, outcome := range outcomes {
				// Neighbor returns the cell itself when blocked.
				target, _ := grid.Neighbor(cell.Index, outcome.dir)
				pa.Set(cell.Index, target, pa.At(cell.Index, target)+outcome.prob)
			}
		}
	})

	if err := tensor.Validate(grid, probTolerance); err != nil {
		return nil, err
	}
	return tensor, nil
}

func (t *TransitionTensor) NumStates() int {
	return t.numStates
}

// At returns P[action][from][to].
func (t *TransitionTensor) At(action models.Action, from, to int) float64 {
	return t.Matrix(action).At(from, to)
}

// Matrix returns the transition matrix of an action. Callers must not modify it.
func (t *TransitionTensor) Matrix(action models.Action) *mat.Dense {
	if action < 0 || int(action) >= models.NumActions {
		panic(fmt.Sprintf("action %d outside [0,%d)", int(action), models.NumActions))
	}
	return t.p[action]
}

// RowSum returns the total outgoing mass of a state under an action.
func (t *TransitionTensor) RowSum(action models.Action, from int) float64 {
	return mat.Sum(t.Matrix(action).RowView(from))
}

// Validate checks that every non-wall row is a distribution and wall rows are empty.
func (t *TransitionTensor) Validate(grid *models.GridWorld, tol float64) error {
	if grid.NumStates() != t.numStates {
		return fmt.Errorf(
			"tensor has %d states, grid has %d: %w", t.numStates, grid.NumStates(), models.ErrConfiguration)
	}
	for _, action := range models.Actions {
		for s := 0; s < t.numStates; s++ {
			sum := t.RowSum(action, s)
			expected := 1.0
			if grid.IsWall(s) {
				expected = 0.0
			}
			if math.Abs(sum-expected) > tol {
				return fmt.Errorf(
					"P[%s][%d] sums to %v, expected %v: %w",
					action, s, sum, expected, models.ErrInvariantViolation)
			}
		}
	}
	return nil
}
