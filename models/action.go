package models

import "fmt"

// Action is one of the four cardinal moves. The numeric order is canonical:
// tables are indexed by it and argmax ties resolve to the lowest value.
type Action int

const (
	NORTH Action = iota
	SOUTH
	EAST
	WEST
)

// NumActions is the width of every action-value row.
const NumActions = 4

// Actions in canonical order, for ranging over.
var Actions = [NumActions]Action{NORTH, SOUTH, EAST, WEST}

// Delta returns the (row, col) displacement of the action. Row 0 is the top of the grid.
func (a Action) Delta() (dr, dc int) {
	switch a {
	case NORTH:
		return -1, 0
	case SOUTH:
		return 1, 0
	case EAST:
		return 0, 1
	case WEST:
		return 0, -1
	}
	panic(fmt.Sprintf("action %d outside [0,%d)", int(a), NumActions))
}

// Laterals returns the directions to the left and right of the heading.
func (a Action) Laterals() (left, right Action) {
	switch a {
	case NORTH:
		return WEST, EAST
	case SOUTH:
		return EAST, WEST
	case EAST:
		return NORTH, SOUTH
	case WEST:
		return SOUTH, NORTH
	}
	panic(fmt.Sprintf("action %d outside [0,%d)", int(a), NumActions))
}

// Letter is the single-letter direction used in policy dumps.
func (a Action) Letter() string {
	return [NumActions]string{"N", "S", "E", "W"}[a.mustValid()]
}

// Arrow is a console glyph for the direction.
func (a Action) Arrow() rune {
	return [NumActions]rune{'^', 'v', '>', '<'}[a.mustValid()]
}

// Degrees is the clockwise rotation of an upward arrow pointing in this direction,
// as used by svg's rotate().
func (a Action) Degrees() int {
	return [NumActions]int{0, 180, 90, 270}[a.mustValid()]
}

func (a Action) String() string {
	return a.Letter()
}

func (a Action) mustValid() Action {
	if a < 0 || int(a) >= NumActions {
		panic(fmt.Sprintf("action %d outside [0,%d)", int(a), NumActions))
	}
	return a
}

// ParseAction is the inverse of Letter.
func ParseAction(letter string) (Action, error) {
	for _, a := range Actions {
		if a.Letter() == letter {
			return a, nil
		}
	}
	return NORTH, fmt.Errorf("unrecognized action %q: %w", letter, ErrConfiguration)
}
