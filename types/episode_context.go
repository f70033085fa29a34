package types

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// EpisodeContext carries the cancellation of one episode together with
// everything the agent learns while running it.
type EpisodeContext struct {
	Context context.Context
	Cancel  context.CancelFunc

	Episode    int
	Experiment string

	Trace      *Trace
	Timesteps  int
	Err        error
	Terminated bool
	Truncated  bool
	TimedOut   bool
	Result     BattleResult

	RunDuration time.Duration
	Report      *EpisodeReport
}

// NewEpisodeContext derives the episode context from parent. A positive
// timeout bounds the whole episode.
func NewEpisodeContext(parent context.Context, episode int, experiment string, timeout time.Duration) *EpisodeContext {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	return &EpisodeContext{
		Context:    ctx,
		Cancel:     cancel,
		Episode:    episode,
		Experiment: experiment,
		Trace:      NewTrace(),
		Report:     NewEpisodeReport(episode, experiment),
	}
}

func (e *EpisodeContext) SetError(err error) {
	if e.Err == nil {
		e.Err = err
	}
	e.Report.AddLog(err.Error(), "error")
}

func (e *EpisodeContext) SetTimedOut() {
	e.TimedOut = true
	e.Report.AddLog("episode timed out", "timeout")
}

// EpisodeReport is a timeline of the measurements taken during an episode.
type EpisodeReport struct {
	EpisodeNumber  int
	ExperimentName string
	episodeStep    int

	nextIndex int       // next available index for an entry
	startTime time.Time // start time to compute timestamp of an entry

	lock *sync.Mutex

	Timeline   []*EpisodeReportEntry // all the entries ordered by index
	TimeValues map[string][]*EpisodeReportEntry
	IntValues  map[string][]*EpisodeReportEntry
	Logs       map[string]string
}

func NewEpisodeReport(episodeNumber int, experimentName string) *EpisodeReport {
	return &EpisodeReport{
		EpisodeNumber:  episodeNumber,
		ExperimentName: experimentName,
		startTime:      time.Now(),
		lock:           &sync.Mutex{},
		Timeline:       make([]*EpisodeReportEntry, 0),
		TimeValues:     make(map[string][]*EpisodeReportEntry),
		IntValues:      make(map[string][]*EpisodeReportEntry),
		Logs:           make(map[string]string),
	}
}

func (e *EpisodeReport) setEpisodeStep(step int) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.episodeStep = step
}

func (e *EpisodeReport) add(value interface{}, entryType, caller string) *EpisodeReportEntry {
	entry := &EpisodeReportEntry{
		Index:       e.nextIndex,
		Timestamp:   time.Since(e.startTime),
		EpisodeStep: e.episodeStep,
		EntryType:   entryType,
		Caller:      caller,
		Value:       value,
	}
	e.nextIndex += 1
	e.Timeline = append(e.Timeline, entry)
	return entry
}

func (e *EpisodeReport) AddIntEntry(value int, entryType string, caller string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	entry := e.add(value, entryType, caller)
	e.IntValues[entryType] = append(e.IntValues[entryType], entry)
}

func (e *EpisodeReport) AddTimeEntry(value time.Duration, entryType string, caller string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	entry := e.add(value, entryType, caller)
	e.TimeValues[entryType] = append(e.TimeValues[entryType], entry)
}

func (e *EpisodeReport) AddLog(value string, key string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.Logs[key] = value
}

// MeanTime of the entries of the given type, zero if there are none.
func (e *EpisodeReport) MeanTime(entryType string) time.Duration {
	e.lock.Lock()
	defer e.lock.Unlock()
	entries := e.TimeValues[entryType]
	if len(entries) == 0 {
		return 0
	}
	total := time.Duration(0)
	for _, en := range entries {
		total += en.Value.(time.Duration)
	}
	return total / time.Duration(len(entries))
}

// StringTimeline returns the timeline, one entry per line.
func (e *EpisodeReport) StringTimeline() string {
	e.lock.Lock()
	defer e.lock.Unlock()
	result := fmt.Sprintf("Length: %d\n", len(e.Timeline))
	for _, entry := range e.Timeline {
		result += entry.String() + "\n"
	}
	keys := make([]string, 0, len(e.Logs))
	for k := range e.Logs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		result += fmt.Sprintf("%s : %s\n", k, e.Logs[k])
	}
	return result
}

// Entry of the Report
type EpisodeReportEntry struct {
	Index     int           // managed by the report
	Timestamp time.Duration // managed by the report

	EpisodeStep int
	EntryType   string
	Caller      string // the method adding the entry
	Value       interface{}
}

func (en *EpisodeReportEntry) String() string {
	switch v := en.Value.(type) {
	case time.Duration:
		return fmt.Sprintf("[ %6d | %5d | %3d ] %20s : %12s (%20s)", en.Index, en.Timestamp.Milliseconds(), en.EpisodeStep, en.EntryType, v.String(), en.Caller)
	case int:
		return fmt.Sprintf("[ %6d | %5d | %3d ] %20s : %5d (%20s)", en.Index, en.Timestamp.Milliseconds(), en.EpisodeStep, en.EntryType, v, en.Caller)
	default:
		return "wrong entry type"
	}
}
