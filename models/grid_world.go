package models

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

// ErrConfiguration is returned for invalid hyper-parameters or malformed grid layouts.
// These are detected at construction and are never retried.
var ErrConfiguration error = errors.New("configuration error")

// ErrInvariantViolation indicates a construction bug, such as a transition row whose
// probabilities do not sum to one.
var ErrInvariantViolation error = errors.New("invariant violation")

// CellType is the semantic kind of a grid tile.
type CellType int

// Grid cell types
const (
	NORMAL CellType = iota
	DANGER
	WALL
	GOAL
)

func (ct CellType) String() string {
	switch ct {
	case NORMAL:
		return "normal"
	case DANGER:
		return "danger"
	case WALL:
		return "wall"
	case GOAL:
		return "goal"
	}
	return fmt.Sprintf("CellType(%d)", int(ct))
}

// ParseCellType maps a layout token to its cell type by leading letter:
// S is normal, P is danger, W or O is a wall, G or M is the goal.
// Tokens may carry a numeric suffix, e.g. "S12" or "O3", which only serves as a label.
func ParseCellType(token string) (CellType, error) {
	if token == "" {
		return NORMAL, fmt.Errorf("empty cell token: %w", ErrConfiguration)
	}

	switch token[0] {
	case 'S':
		return NORMAL, nil
	case 'P':
		return DANGER, nil
	case 'W', 'O':
		return WALL, nil
	case 'G', 'M':
		return GOAL, nil
	}
	return NORMAL, fmt.Errorf("unrecognized cell token %q: %w", token, ErrConfiguration)
}

// Rewards are the fixed per-type rewards for landing in a cell.
type Rewards struct {
	Normal float64 `mapstructure:"normal" yaml:"normal" json:"normal"`
	Danger float64 `mapstructure:"danger" yaml:"danger" json:"danger"`
	Wall   float64 `mapstructure:"wall" yaml:"wall" json:"wall"`
	Goal   float64 `mapstructure:"goal" yaml:"goal" json:"goal"`
}

// Planning rewards are those of the value-iteration map, whose goal pays +10.
// Learning rewards pay +1 for the goal, as in the q-learning map.
var (
	PlanningRewards = Rewards{Normal: -0.1, Danger: -0.5, Wall: -0.1, Goal: 10}
	LearningRewards = Rewards{Normal: -0.1, Danger: -0.5, Wall: -0.1, Goal: 1}
)

// For returns the reward of the passed cell type.
func (r Rewards) For(ct CellType) float64 {
	switch ct {
	case DANGER:
		return r.Danger
	case WALL:
		return r.Wall
	case GOAL:
		return r.Goal
	}
	return r.Normal
}

// Cell is a single grid position. Index is the canonical flat state id, Row*Cols+Col.
type Cell struct {
	Row, Col int
	Index    int
	Key      string
	Type     CellType
	Reward   float64
}

// GridWorld is the static N x M grid. It is never mutated after construction,
// so it can be shared read-only or cloned per worker.
type GridWorld struct {
	rows, cols int
	cells      []Cell
}

// NewGridWorld parses a rectangular layout of cell tokens into a grid.
func NewGridWorld(layout [][]string, rewards Rewards) (*GridWorld, error) {
	if len(layout) == 0 || len(layout[0]) == 0 {
		return nil, fmt.Errorf("empty layout: %w", ErrConfiguration)
	}

	rows, cols := len(layout), len(layout[0])
	grid := &GridWorld{
		rows:  rows,
		cols:  cols,
		cells: make([]Cell, 0, rows*cols),
	}
	for row, tokens := range layout {
		if len(tokens) != cols {
			return nil, fmt.Errorf(
				"row %d has %d cells, expected %d: %w", row, len(tokens), cols, ErrConfiguration)
		}
		for col, token := range tokens {
			cellType, err := ParseCellType(token)
			if err != nil {
				return nil, fmt.Errorf("cell (%d,%d): %w", row, col, err)
			}
			grid.cells = append(grid.cells, Cell{
				Row:    row,
				Col:    col,
				Index:  row*cols + col,
				Key:    token,
				Type:   cellType,
				Reward: rewards.For(cellType),
			})
		}
	}

	return grid, nil
}

// ParseLayout splits rows of whitespace separated tokens, e.g. "S0 S1 P1 O1", into a layout.
func ParseLayout(rows []string) [][]string {
	layout := make([][]string, 0, len(rows))
	for _, row := range rows {
		layout = append(layout, strings.Fields(row))
	}
	return layout
}

// MustGridWorld is NewGridWorld for the compiled layouts; it panics on error.
func MustGridWorld(layout [][]string, rewards Rewards) *GridWorld {
	grid, err := NewGridWorld(layout, rewards)
	if err != nil {
		panic(err)
	}
	return grid
}

// Dims returns the number of rows and columns.
func (g *GridWorld) Dims() (rows, cols int) {
	return g.rows, g.cols
}

func (g *GridWorld) NumStates() int {
	return len(g.cells)
}

func (g *GridWorld) InBounds(row, col int) bool {
	return row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

// Index returns the flat state index of (row, col). Out of range positions panic.
func (g *GridWorld) Index(row, col int) int {
	if !g.InBounds(row, col) {
		panic(fmt.Sprintf("position (%d,%d) outside %dx%d grid", row, col, g.rows, g.cols))
	}
	return row*g.cols + col
}

// Position is the inverse of Index.
func (g *GridWorld) Position(index int) (row, col int) {
	cell := g.Cell(index)
	return cell.Row, cell.Col
}

// At returns the cell at (row, col), or an error if the position is off-grid.
func (g *GridWorld) At(row, col int) (*Cell, error) {
	if !g.InBounds(row, col) {
		return nil, fmt.Errorf("position (%d,%d) outside %dx%d grid", row, col, g.rows, g.cols)
	}
	return &g.cells[row*g.cols+col], nil
}

// Cell returns the cell for a flat index. Out of range indices are a programmer error and panic.
func (g *GridWorld) Cell(index int) *Cell {
	if index < 0 || index >= len(g.cells) {
		panic(fmt.Sprintf("state index %d outside [0,%d)", index, len(g.cells)))
	}
	return &g.cells[index]
}

func (g *GridWorld) Reward(index int) float64 {
	return g.Cell(index).Reward
}

func (g *GridWorld) IsWall(index int) bool {
	return g.Cell(index).Type == WALL
}

func (g *GridWorld) IsGoal(index int) bool {
	return g.Cell(index).Type == GOAL
}

// Neighbor returns the index reached by moving one cell in the action's direction,
// and false if that cell is off-grid or a wall.
func (g *GridWorld) Neighbor(index int, action Action) (int, bool) {
	row, col := g.Position(index)
	dr, dc := action.Delta()
	row, col = row+dr, col+dc
	if !g.InBounds(row, col) {
		return index, false
	}
	next := row*g.cols + col
	if g.cells[next].Type == WALL {
		return index, false
	}
	return next, true
}

// Visit calls fn for every cell in flat index order.
func (g *GridWorld) Visit(fn func(cell *Cell)) {
	for i := range g.cells {
		fn(&g.cells[i])
	}
}

func (g *GridWorld) indicesOf(match func(*Cell) bool) (indices []int) {
	g.Visit(func(cell *Cell) {
		if match(cell) {
			indices = append(indices, cell.Index)
		}
	})
	return
}

// OpenIndices returns every non-wall state.
func (g *GridWorld) OpenIndices() []int {
	return g.indicesOf(func(c *Cell) bool { return c.Type != WALL })
}

func (g *GridWorld) GoalIndices() []int {
	return g.indicesOf(func(c *Cell) bool { return c.Type == GOAL })
}

// RandomOpenCell draws uniformly among positions until a non-wall cell is found.
// The grid must contain at least one non-wall cell.
func (g *GridWorld) RandomOpenCell(rng *rand.Rand) *Cell {
	if len(g.OpenIndices()) == 0 {
		panic("grid has no open cells")
	}
	for {
		cell := &g.cells[rng.Intn(g.rows)*g.cols+rng.Intn(g.cols)]
		if cell.Type != WALL {
			return cell
		}
	}
}

// Clone returns an independent copy, for workers that must not share the grid.
func (g *GridWorld) Clone() *GridWorld {
	cells := make([]Cell, len(g.cells))
	copy(cells, g.cells)
	return &GridWorld{
		rows:  g.rows,
		cols:  g.cols,
		cells: cells,
	}
}

// Layout returns the token layout the grid was built from.
func (g *GridWorld) Layout() [][]string {
	layout := make([][]string, g.rows)
	for row := range layout {
		layout[row] = make([]string, g.cols)
		for col := range layout[row] {
			layout[row][col] = g.cells[row*g.cols+col].Key
		}
	}
	return layout
}
