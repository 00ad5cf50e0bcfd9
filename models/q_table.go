package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// QTable holds the action values Q(s,a) for every state, in row-major
// [state][action] order. A table is owned by the solver that produces it;
// consumers receive it only once the producing loop has finished.
type QTable struct {
	numStates int
	values    []float64
}

// NewQTable returns a zero-valued table.
func NewQTable(numStates int) *QTable {
	return &QTable{
		numStates: numStates,
		values:    make([]float64, numStates*NumActions),
	}
}

func (q *QTable) NumStates() int {
	return q.numStates
}

func (q *QTable) offset(state int, action Action) int {
	if state < 0 || state >= q.numStates {
		panic(fmt.Sprintf("state index %d outside [0,%d)", state, q.numStates))
	}
	return state*NumActions + int(action.mustValid())
}

func (q *QTable) Get(state int, action Action) float64 {
	return q.values[q.offset(state, action)]
}

func (q *QTable) Set(state int, action Action, val float64) {
	q.values[q.offset(state, action)] = val
}

// Row returns the action values of a state. The slice aliases the table.
func (q *QTable) Row(state int) []float64 {
	start := q.offset(state, NORTH)
	return q.values[start : start+NumActions]
}

// Best returns the arg-max action of the state and its value. Ties resolve to the
// first maximal action in canonical order.
func (q *QTable) Best(state int) (best Action, max float64) {
	row := q.Row(state)
	best, max = NORTH, row[0]
	for a := 1; a < NumActions; a++ {
		if row[a] > max {
			best, max = Action(a), row[a]
		}
	}
	return
}

// Max returns max_a Q(s,a).
func (q *QTable) Max(state int) float64 {
	_, max := q.Best(state)
	return max
}

// MaxDelta returns max |q - other| over all entries.
func (q *QTable) MaxDelta(other *QTable) float64 {
	if q.numStates != other.numStates {
		panic(fmt.Sprintf("table sizes differ: %d vs %d", q.numStates, other.numStates))
	}
	delta := 0.0
	for i, val := range q.values {
		delta = math.Max(delta, math.Abs(val-other.values[i]))
	}
	return delta
}

func (q *QTable) Clone() *QTable {
	values := make([]float64, len(q.values))
	copy(values, q.values)
	return &QTable{
		numStates: q.numStates,
		values:    values,
	}
}

// Policy extracts the greedy policy. It is deterministic for a given table.
func (q *QTable) Policy() Policy {
	policy := make(Policy, q.numStates)
	for s := range policy {
		policy[s], _ = q.Best(s)
	}
	return policy
}

// The serialized form is a list of per-state rows, which round-trips float64 bits exactly.
func (q *QTable) MarshalJSON() ([]byte, error) {
	rows := make([][]float64, q.numStates)
	for s := range rows {
		rows[s] = q.Row(s)
	}
	return json.Marshal(rows)
}

func (q *QTable) UnmarshalJSON(data []byte) error {
	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}

	values := make([]float64, 0, len(rows)*NumActions)
	for s, row := range rows {
		if len(row) != NumActions {
			return fmt.Errorf("state %d has %d action values, expected %d", s, len(row), NumActions)
		}
		values = append(values, row...)
	}
	q.numStates = len(rows)
	q.values = values
	return nil
}

// Policy maps each state index to its chosen action.
type Policy []Action

// Action returns the policy's action for a state; out of range states panic.
func (p Policy) Action(state int) Action {
	if state < 0 || state >= len(p) {
		panic(fmt.Sprintf("state index %d outside [0,%d)", state, len(p)))
	}
	return p[state]
}

// String is the comma separated direction-letter dump, e.g. "N,E,E,S".
func (p Policy) String() string {
	letters := make([]string, len(p))
	for s, a := range p {
		letters[s] = a.Letter()
	}
	return strings.Join(letters, ",")
}

// ParsePolicy is the inverse of Policy.String.
func ParsePolicy(dump string) (Policy, error) {
	if dump == "" {
		return Policy{}, nil
	}
	letters := strings.Split(dump, ",")
	policy := make(Policy, len(letters))
	for s, letter := range letters {
		a, err := ParseAction(strings.TrimSpace(letter))
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", s, err)
		}
		policy[s] = a
	}
	return policy, nil
}

func (p Policy) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Policy) UnmarshalJSON(data []byte) error {
	var dump string
	if err := json.Unmarshal(data, &dump); err != nil {
		return err
	}
	parsed, err := ParsePolicy(dump)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
