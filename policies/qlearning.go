package policies

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zeu5/royale-rl/types"
	"github.com/zeu5/royale-rl/util"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

type QLearningConfig struct {
	Alpha        float64 `json:"alpha"`
	Gamma        float64 `json:"gamma"`
	Epsilon      float64 `json:"epsilon"`
	EpsilonDecay float64 `json:"epsilon_decay"`
	MinEpsilon   float64 `json:"min_epsilon"`
	// Temperature switches exploitation to softmax sampling when positive
	Temperature float64 `json:"temperature"`
	// Bins per observation dimension
	Bins int    `json:"bins"`
	Seed uint64 `json:"seed"`
}

func DefaultQLearningConfig() QLearningConfig {
	return QLearningConfig{
		Alpha:        0.1,
		Gamma:        0.95,
		Epsilon:      0.3,
		EpsilonDecay: 0.99,
		MinEpsilon:   0.05,
		Bins:         5,
	}
}

// QLearning is a tabular epsilon-greedy learner over discretized
// observations.
type QLearning struct {
	config QLearningConfig
	qTable *QTable
	greedy bool

	epsilon float64
	src     rand.Source
	rand    *rand.Rand
}

var _ types.Policy = &QLearning{}

func NewQLearning(config QLearningConfig) *QLearning {
	if config.Bins <= 0 {
		config.Bins = DefaultQLearningConfig().Bins
	}
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	src := rand.NewSource(seed)
	return &QLearning{
		config:  config,
		qTable:  NewQTable(),
		epsilon: config.Epsilon,
		src:     src,
		rand:    rand.New(src),
	}
}

// Greedy disables exploration, used when evaluating a trained table.
func (q *QLearning) Greedy() *QLearning {
	q.greedy = true
	return q
}

func (q *QLearning) Bins() int {
	return q.config.Bins
}

func (q *QLearning) Epsilon() float64 {
	return q.epsilon
}

func (q *QLearning) Table() *QTable {
	return q.qTable
}

// Key discretizes an observation into its table key.
func Key(obs types.Observation, bins int) string {
	parts := make([]string, len(obs))
	for i, v := range obs {
		b := int(v * float64(bins))
		if b >= bins {
			b = bins - 1
		}
		if b < 0 {
			b = 0
		}
		parts[i] = strconv.Itoa(b)
	}
	return strings.Join(parts, ",")
}

func validActions(mask []bool) []string {
	out := make([]string, 0, len(mask))
	for i, ok := range mask {
		if ok {
			out = append(out, strconv.Itoa(i))
		}
	}
	return out
}

func (q *QLearning) NextAction(_ int, obs types.Observation, mask []bool) (int, bool) {
	valid := validActions(mask)
	if len(valid) == 0 {
		return 0, false
	}

	var choice string
	switch {
	case !q.greedy && q.rand.Float64() < q.epsilon:
		choice = valid[q.rand.Intn(len(valid))]
	case !q.greedy && q.config.Temperature > 0:
		choice = q.softmax(Key(obs, q.config.Bins), valid)
	default:
		choice, _ = q.qTable.MaxAmong(Key(obs, q.config.Bins), valid, 0)
	}
	if choice == "" {
		return 0, false
	}
	a, err := strconv.Atoi(choice)
	if err != nil {
		return 0, false
	}
	return a, true
}

func (q *QLearning) softmax(state string, valid []string) string {
	vals := make([]float64, len(valid))
	maxVal := math.Inf(-1)
	for i, a := range valid {
		vals[i] = q.qTable.Get(state, a, 0) / q.config.Temperature
		if vals[i] > maxVal {
			maxVal = vals[i]
		}
	}
	weights := make([]float64, len(valid))
	for i, v := range vals {
		weights[i] = math.Exp(v - maxVal)
	}
	i, ok := sampleuv.NewWeighted(weights, q.src).Take()
	if !ok {
		return ""
	}
	return valid[i]
}

func (q *QLearning) Update(_ int, obs types.Observation, action int, res types.StepResult) {
	if q.greedy {
		return
	}
	state := Key(obs, q.config.Bins)
	next := Key(res.Observation, q.config.Bins)
	actionKey := strconv.Itoa(action)

	target := res.Reward
	if !res.Terminated {
		_, nextVal := q.qTable.Max(next, 0)
		target += q.config.Gamma * nextVal
	}
	curVal := q.qTable.Get(state, actionKey, 0)
	q.qTable.Set(state, actionKey, (1-q.config.Alpha)*curVal+q.config.Alpha*target)
}

// UpdateIteration decays the exploration rate at the end of an episode.
func (q *QLearning) UpdateIteration(_ int, _ *types.Trace) {
	if q.config.EpsilonDecay <= 0 {
		return
	}
	q.epsilon = math.Max(q.config.MinEpsilon, q.epsilon*q.config.EpsilonDecay)
}

func (q *QLearning) Reset() {
	q.qTable = NewQTable()
	q.epsilon = q.config.Epsilon
}

type qLearningRecord struct {
	Config  QLearningConfig `json:"config"`
	Epsilon float64         `json:"epsilon"`
	Table   *QTable         `json:"table"`
}

func (q *QLearning) Record(path string) error {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	bs, err := json.Marshal(qLearningRecord{
		Config:  q.config,
		Epsilon: q.epsilon,
		Table:   q.qTable,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, bs, 0644)
}

// LoadQLearning restores a policy written by Record.
func LoadQLearning(path string) (*QLearning, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rec := qLearningRecord{Table: NewQTable()}
	if err := json.Unmarshal(bs, &rec); err != nil {
		return nil, fmt.Errorf("decoding policy %s: %w", path, err)
	}
	q := NewQLearning(rec.Config)
	q.qTable = rec.Table
	q.epsilon = rec.Epsilon
	return q, nil
}
