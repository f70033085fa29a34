package types

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeu5/royale-rl/logger"
	"github.com/zeu5/royale-rl/util"
)

type RunConfig struct {
	// execution configuration
	Run       int
	Episodes  int
	Horizon   int
	Timeout   time.Duration // per episode, zero for none
	Analyzers []Analyzer
	Observers []StepObserver

	// threshold to abort the experiment
	ConsecutiveErrorsAbort int

	// record flags
	RecordPath    string
	RecordTraces  bool
	RecordPolicy  bool
	RecordReports bool
}

// Summary of how the episodes of a run ended.
type Summary struct {
	Episodes    int  `json:"episodes"`
	Valid       int  `json:"valid"`
	Errors      int  `json:"errors"`
	TimedOut    int  `json:"timed_out"`
	Terminated  int  `json:"terminated"`
	Truncated   int  `json:"truncated"`
	Timesteps   int  `json:"timesteps"`
	Aborted     bool `json:"aborted"`
	Interrupted bool `json:"interrupted"`
}

// Experiment couples a policy with an environment
type Experiment struct {
	Name        string
	policy      Policy
	environment Environment
	log         *logrus.Entry
}

func NewExperiment(name string, policy Policy, environment Environment, log *logrus.Entry) *Experiment {
	if log == nil {
		log = logger.Discard()
	}
	return &Experiment{
		Name:        name,
		policy:      policy,
		environment: environment,
		log:         log.WithField("experiment", name),
	}
}

func (e *Experiment) Policy() Policy {
	return e.policy
}

func (e *Experiment) tracePath(cfg *RunConfig) string {
	return path.Join(cfg.RecordPath, "traces", e.Name+"_"+strconv.Itoa(cfg.Run)+".jsonl")
}

func (e *Experiment) policyPath(cfg *RunConfig) string {
	return path.Join(cfg.RecordPath, "policies", e.Name+"_"+strconv.Itoa(cfg.Run)+".json")
}

func (e *Experiment) reportPath(cfg *RunConfig, episode int) string {
	return path.Join(cfg.RecordPath, "epReports", e.Name+"_run"+strconv.Itoa(cfg.Run)+"_ep"+strconv.Itoa(episode)+".txt")
}

// Run the experiment for the configured number of episodes. Cancelling ctx
// stops after the current episode; the policy is recorded either way.
func (e *Experiment) Run(ctx context.Context, cfg *RunConfig) Summary {
	summary := Summary{}
	if cfg.ConsecutiveErrorsAbort <= 0 {
		cfg.ConsecutiveErrorsAbort = 10
	}

	agent := NewAgent(&AgentConfig{
		Horizon:     cfg.Horizon,
		Policy:      e.policy,
		Environment: e.environment,
	})
	for _, o := range cfg.Observers {
		agent.AddObserver(o)
	}

	consecutiveErrors := 0
	for episode := 0; episode < cfg.Episodes; episode++ {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		eCtx := NewEpisodeContext(ctx, episode, e.Name, cfg.Timeout)
		e.runEpisode(eCtx, agent)

		if ctx.Err() != nil && errors.Is(eCtx.Err, context.Canceled) {
			// interrupted mid episode, the partial trace is not analyzed
			summary.Interrupted = true
			break
		}

		summary.Episodes += 1
		summary.Timesteps += eCtx.Timesteps

		switch {
		case eCtx.TimedOut:
			summary.TimedOut += 1
			consecutiveErrors += 1
		case eCtx.Err != nil:
			summary.Errors += 1
			consecutiveErrors += 1
			e.log.WithError(eCtx.Err).WithField("episode", episode).Warn("episode failed")
		default:
			consecutiveErrors = 0
			summary.Valid += 1
			if eCtx.Terminated {
				summary.Terminated += 1
			} else if eCtx.Truncated {
				summary.Truncated += 1
			}
		}

		if cfg.RecordTraces {
			if err := util.AppendJSONLine(e.tracePath(cfg), eCtx.Trace); err != nil {
				e.log.WithError(err).Warn("could not record trace")
			}
		}
		if cfg.RecordReports && (eCtx.Err != nil || eCtx.TimedOut) {
			if err := util.WriteLines(e.reportPath(cfg, episode), eCtx.Report.StringTimeline()); err != nil {
				e.log.WithError(err).Warn("could not record episode report")
			}
		}

		// analyze the trace, even if the episode ended with an error
		for _, a := range cfg.Analyzers {
			a.Analyze(cfg.Run, e.Name, eCtx)
		}

		e.log.WithFields(logrus.Fields{
			"episode": episode,
			"steps":   eCtx.Timesteps,
			"return":  fmt.Sprintf("%.2f", eCtx.Trace.Return()),
			"result":  eCtx.Result.String(),
			"step_ms": eCtx.Report.MeanTime("step_time").Milliseconds(),
		}).Info("episode done")

		if consecutiveErrors >= cfg.ConsecutiveErrorsAbort {
			e.log.Errorf("aborting: %d consecutive failed episodes", consecutiveErrors)
			summary.Aborted = true
			break
		}
	}

	if cfg.RecordPolicy {
		if err := e.policy.Record(e.policyPath(cfg)); err != nil {
			e.log.WithError(err).Error("could not record policy")
		} else {
			e.log.WithField("path", e.policyPath(cfg)).Info("policy recorded")
		}
	}
	return summary
}

func (e *Experiment) runEpisode(eCtx *EpisodeContext, agent *Agent) {
	defer eCtx.Cancel()
	defer func() {
		if r := recover(); r != nil {
			eCtx.SetError(fmt.Errorf("%v", r))
		}
	}()

	start := time.Now()
	agent.RunEpisode(eCtx)
	eCtx.RunDuration = time.Since(start)
	eCtx.Report.AddTimeEntry(eCtx.RunDuration, "return_time", "experiment.runEpisode")

	if errors.Is(eCtx.Err, context.DeadlineExceeded) {
		eCtx.SetTimedOut()
	}
}

// Reset the learned state of the policy
func (e *Experiment) Reset() {
	e.policy.Reset()
}

// Generic Dataset that contains information after processing the traces
type DataSet interface{}

// Analyzer compresses the information of the episodes into a DataSet
type Analyzer interface {
	// run, experiment, finished episode
	Analyze(int, string, *EpisodeContext)
	DataSet() DataSet
	Reset()
}

// Comparator differentiates between different datasets with associated names
// run, experiment names, datasets
type Comparator func(int, []string, []DataSet)

func NoopComparator() Comparator {
	return func(_ int, _ []string, _ []DataSet) {}
}

type ComparisonConfig struct {
	Runs     int
	Episodes int
	Horizon  int
	Timeout  time.Duration

	RecordPath    string
	RecordTraces  bool
	RecordPolicy  bool
	RecordReports bool

	ConsecutiveErrorsAbort int
	Observers              []StepObserver
}

// Comparison runs several experiments, analyzes their episodes and compares
// the resulting datasets
type Comparison struct {
	Experiments []*Experiment
	analyzers   map[string]Analyzer
	comparators map[string]Comparator
	cConfig     *ComparisonConfig
	log         *logrus.Entry
}

func NewComparison(config *ComparisonConfig, log *logrus.Entry) *Comparison {
	if log == nil {
		log = logger.Discard()
	}
	return &Comparison{
		Experiments: make([]*Experiment, 0),
		analyzers:   make(map[string]Analyzer),
		comparators: make(map[string]Comparator),
		cConfig:     config,
		log:         log,
	}
}

func (c *Comparison) AddAnalysis(name string, analyzer Analyzer, comparator Comparator) {
	c.analyzers[name] = analyzer
	c.comparators[name] = comparator
}

func (c *Comparison) AddExperiment(e *Experiment) {
	c.Experiments = append(c.Experiments, e)
}

func (c *Comparison) recordConfig() error {
	cfg := c.cConfig
	if err := util.EnsureDir(cfg.RecordPath); err != nil {
		return err
	}
	out := map[string]interface{}{
		"runs":           cfg.Runs,
		"episodes":       cfg.Episodes,
		"horizon":        cfg.Horizon,
		"record_traces":  cfg.RecordTraces,
		"record_policy":  cfg.RecordPolicy,
		"record_reports": cfg.RecordReports,
	}
	if cfg.Timeout != 0 {
		out["timeout"] = cfg.Timeout.String()
	}
	experiments := make([]string, 0)
	for _, e := range c.Experiments {
		experiments = append(experiments, e.Name)
	}
	out["experiments"] = experiments
	analyzers := make([]string, 0)
	for name := range c.analyzers {
		analyzers = append(analyzers, name)
	}
	out["analyzers"] = analyzers

	bs, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path.Join(cfg.RecordPath, "comparison_config.json"), bs, 0644)
}

// Run every experiment for every run, then compare. Returns the summaries
// indexed by run and experiment.
func (c *Comparison) Run(ctx context.Context) [][]Summary {
	if err := c.recordConfig(); err != nil {
		c.log.WithError(err).Warn("could not record comparison config")
	}

	results := make([][]Summary, 0, c.cConfig.Runs)
	for run := 0; run < c.cConfig.Runs; run++ {
		c.log.Infof("run %d", run+1)
		datasets := make(map[string][]DataSet)
		for name := range c.analyzers {
			datasets[name] = make([]DataSet, len(c.Experiments))
		}

		names := make([]string, len(c.Experiments))
		summaries := make([]Summary, len(c.Experiments))
		for i, e := range c.Experiments {
			if ctx.Err() != nil {
				return append(results, summaries)
			}
			summaries[i] = e.Run(ctx, c.runConfig(run))
			for name, a := range c.analyzers {
				datasets[name][i] = a.DataSet()
				a.Reset()
			}
			names[i] = e.Name
			e.Reset()
		}
		results = append(results, summaries)
		for name, comp := range c.comparators {
			comp(run, names, datasets[name])
		}
	}
	return results
}

func (c *Comparison) runConfig(run int) *RunConfig {
	rCfg := &RunConfig{
		Run:                    run,
		Episodes:               c.cConfig.Episodes,
		Horizon:                c.cConfig.Horizon,
		Timeout:                c.cConfig.Timeout,
		Analyzers:              make([]Analyzer, 0),
		Observers:              c.cConfig.Observers,
		ConsecutiveErrorsAbort: c.cConfig.ConsecutiveErrorsAbort,
		RecordPath:             c.cConfig.RecordPath,
		RecordTraces:           c.cConfig.RecordTraces,
		RecordPolicy:           c.cConfig.RecordPolicy,
		RecordReports:          c.cConfig.RecordReports,
	}
	for _, a := range c.analyzers {
		rCfg.Analyzers = append(rCfg.Analyzers, a)
	}
	return rCfg
}
