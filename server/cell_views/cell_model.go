// cell_views contains views derived from the Cell view-model.
package cell_views

import (
	"math"

	"gridmdp/models"
	"gridmdp/playback"
)

// Cell is the view-model of a single grid cell, in svg coordinates: X is the column and
// Y the row, so [0][0] is the top left cell as it is printed in the console.
// As a rule of thumb, Cell fields should be immediately usable as view parameters.
type Cell struct {
	X, Y int
	Key  string
	// Max is max_a Q(s,a); Height is Max normalized to [0,1] over the board.
	Max                 float64
	Height              float64
	PolicyArrowRotation int
	PolicyArrowScale    int
	Fill                string
	HasRobot            bool
}

// Board is the full page view-model: the cells, indexed [row][col], and the robot's progress.
type Board struct {
	Cells      [][]Cell
	Step       int
	Cumulative float64
	Resets     int
}

// NewConverter returns a function converting robot snapshots into boards over a fixed
// grid and table. The cell values are computed once; only the robot fields vary.
func NewConverter(
	grid *models.GridWorld,
	q *models.QTable,
) func(playback.Snapshot) Board {
	base := convertCells(grid, q)

	return func(snap playback.Snapshot) Board {
		cells := make([][]Cell, len(base))
		for row := range base {
			cells[row] = make([]Cell, len(base[row]))
			copy(cells[row], base[row])
		}
		cells[snap.Row][snap.Col].HasRobot = true

		return Board{
			Cells:      cells,
			Step:       snap.Step,
			Cumulative: snap.Cumulative,
			Resets:     snap.Resets,
		}
	}
}

func convertCells(grid *models.GridWorld, q *models.QTable) [][]Cell {
	rows, cols := grid.Dims()
	cells := make([][]Cell, rows)
	for row := range cells {
		cells[row] = make([]Cell, cols)
	}

	minVal, maxVal := math.MaxFloat64, -math.MaxFloat64
	grid.Visit(func(c *models.Cell) {
		best, max := q.Best(c.Index)
		cell := Cell{
			X:    c.Col,
			Y:    c.Row,
			Key:  c.Key,
			Fill: getFill(c.Type),
		}
		// Walls and goals have no meaningful action.
		if c.Type != models.WALL && c.Type != models.GOAL {
			cell.PolicyArrowRotation = best.Degrees()
			cell.PolicyArrowScale = 1
		}
		if c.Type != models.WALL {
			cell.Max = max
			minVal = math.Min(minVal, max)
			maxVal = math.Max(maxVal, max)
		}
		cells[c.Row][c.Col] = cell
	})

	for row := range cells {
		for col := range cells[row] {
			cells[row][col].Height = normalize(cells[row][col].Max, minVal, maxVal)
		}
	}
	return cells
}

func normalize(val, minVal, maxVal float64) float64 {
	if maxVal <= minVal {
		return 0
	}
	return math.Max(0, math.Min(1, (val-minVal)/(maxVal-minVal)))
}

func getFill(cellType models.CellType) (fill string) {
	switch cellType {
	case models.WALL:
		fill = "lightgreen"
	case models.DANGER:
		fill = "salmon"
	case models.GOAL:
		fill = "lightyellow"
	default:
		fill = "lightgray"
	}
	return
}
