package policies

import (
	"encoding/json"
	"math"
)

// QTable maps state keys to action values. Missing entries are created
// with the supplied default on read.
type QTable struct {
	table map[string]map[string]float64
}

func NewQTable() *QTable {
	return &QTable{
		table: make(map[string]map[string]float64),
	}
}

func (q *QTable) Get(state, action string, def float64) float64 {
	if _, ok := q.table[state]; !ok {
		q.table[state] = make(map[string]float64)
	}
	if _, ok := q.table[state][action]; !ok {
		q.table[state][action] = def
	}
	return q.table[state][action]
}

func (q *QTable) Set(state, action string, val float64) {
	if _, ok := q.table[state]; !ok {
		q.table[state] = make(map[string]float64)
	}
	q.table[state][action] = val
}

func (q *QTable) HasState(state string) bool {
	_, ok := q.table[state]
	return ok
}

// GetAll returns a copy of the values known for state.
func (q *QTable) GetAll(state string) (map[string]float64, bool) {
	values, ok := q.table[state]
	if !ok {
		return nil, false
	}
	out := make(map[string]float64, len(values))
	for a, v := range values {
		out[a] = v
	}
	return out, true
}

func (q *QTable) States() int {
	return len(q.table)
}

// Max returns the best known action of state, or def when nothing is known.
func (q *QTable) Max(state string, def float64) (string, float64) {
	if _, ok := q.table[state]; !ok {
		q.table[state] = make(map[string]float64)
		return "", def
	}
	maxAction := ""
	maxVal := math.Inf(-1)
	for a, val := range q.table[state] {
		if val > maxVal || (val == maxVal && a < maxAction) {
			maxAction = a
			maxVal = val
		}
	}
	if maxAction == "" {
		return "", def
	}
	return maxAction, maxVal
}

// MaxAmong restricts Max to the given actions. Ties go to the earliest
// action in the list.
func (q *QTable) MaxAmong(state string, actions []string, def float64) (string, float64) {
	if _, ok := q.table[state]; !ok {
		q.table[state] = make(map[string]float64)
	}
	maxAction := ""
	maxVal := math.Inf(-1)
	for _, a := range actions {
		if _, ok := q.table[state][a]; !ok {
			q.table[state][a] = def
		}
		val := q.table[state][a]
		if val > maxVal {
			maxAction = a
			maxVal = val
		}
	}
	if maxAction == "" {
		return "", def
	}
	return maxAction, maxVal
}

func (q *QTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.table)
}

func (q *QTable) UnmarshalJSON(b []byte) error {
	table := make(map[string]map[string]float64)
	if err := json.Unmarshal(b, &table); err != nil {
		return err
	}
	q.table = table
	return nil
}
