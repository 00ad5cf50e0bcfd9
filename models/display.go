package models

import (
	"fmt"
	"io"
	"os"

	"github.com/logrusorgru/aurora"
)

// Console views of the grid, its values and a policy. These are only for watching
// training progress from a terminal; the server provides the real views.

// ShowGrid prints the cell keys, colored by cell type.
func ShowGrid(grid *GridWorld) {
	WriteGrid(os.Stdout, grid, -1)
}

// WriteGrid writes the grid's keys; the cell at index @agent (if any) is highlighted.
func WriteGrid(w io.Writer, grid *GridWorld, agent int) {
	_, cols := grid.Dims()
	grid.Visit(func(cell *Cell) {
		key := fmt.Sprintf("%5s ", cell.Key)
		if cell.Index == agent {
			fmt.Fprint(w, aurora.Cyan(key))
		} else {
			fmt.Fprint(w, colorize(cell.Type, key))
		}
		fmt.Fprint(w, aurora.White("|"))
		if cell.Col == cols-1 {
			fmt.Fprintln(w)
		}
	})
}

// ShowPolicy prints the policy's direction arrows; walls are shown as '#'.
func ShowPolicy(grid *GridWorld, policy Policy) {
	WritePolicy(os.Stdout, grid, policy)
}

func WritePolicy(w io.Writer, grid *GridWorld, policy Policy) {
	_, cols := grid.Dims()
	grid.Visit(func(cell *Cell) {
		glyph := '#'
		switch cell.Type {
		case WALL:
		case GOAL:
			glyph = '*'
		default:
			glyph = policy.Action(cell.Index).Arrow()
		}
		fmt.Fprint(w, colorize(cell.Type, fmt.Sprintf("%c ", glyph)))
		if cell.Col == cols-1 {
			fmt.Fprintln(w)
		}
	})
}

// ShowMaxValues prints max_a Q(s,a) per cell and their total.
func ShowMaxValues(grid *GridWorld, q *QTable) {
	WriteMaxValues(os.Stdout, grid, q)
}

func WriteMaxValues(w io.Writer, grid *GridWorld, q *QTable) {
	fmt.Fprintln(w, "Max vals:")
	_, cols := grid.Dims()
	total := 0.0
	grid.Visit(func(cell *Cell) {
		val := q.Max(cell.Index)
		total += val
		fmt.Fprint(w, colorize(cell.Type, formatValue(val)))
		if cell.Col == cols-1 {
			fmt.Fprintln(w)
		}
	})
	fmt.Fprintf(w, "Total: %.2f\n", total)
}

func formatValue(x float64) string {
	if x < 0 {
		return " -" + fmt.Sprintf("%05.2f", -x)
	}
	return fmt.Sprintf(" %05.2f", x)
}

func colorize(ct CellType, s string) aurora.Value {
	switch ct {
	case DANGER:
		return aurora.Red(s)
	case WALL:
		return aurora.Yellow(s)
	case GOAL:
		return aurora.Green(s)
	}
	return aurora.Blue(s)
}
