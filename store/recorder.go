package store

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zeu5/royale-rl/logger"
	"github.com/zeu5/royale-rl/types"
)

// Recorder is an analyzer that persists every finished episode. Runs are
// created lazily, one per experiment and run index.
type Recorder struct {
	db     *SQLite
	config string
	runs   map[string]string
	log    *logrus.Entry
}

var _ types.Analyzer = &Recorder{}

// NewRecorder stores episodes in db. config is saved with every run it creates.
func NewRecorder(db *SQLite, config string, log *logrus.Entry) *Recorder {
	if log == nil {
		log = logger.Discard()
	}
	return &Recorder{
		db:     db,
		config: config,
		runs:   make(map[string]string),
		log:    log,
	}
}

func (r *Recorder) runID(run int, experiment string) (string, error) {
	key := fmt.Sprintf("%s/%d", experiment, run)
	if id, ok := r.runs[key]; ok {
		return id, nil
	}
	rec := &Run{Experiment: experiment, Index: run, Config: r.config}
	if err := r.db.SaveRun(rec); err != nil {
		return "", err
	}
	r.runs[key] = rec.ID
	return rec.ID, nil
}

func (r *Recorder) Analyze(run int, experiment string, eCtx *types.EpisodeContext) {
	id, err := r.runID(run, experiment)
	if err != nil {
		r.log.WithError(err).Error("could not save run")
		return
	}
	ep := Episode{
		RunID:      id,
		Episode:    eCtx.Episode,
		Steps:      eCtx.Trace.Len(),
		Return:     eCtx.Trace.Return(),
		Result:     eCtx.Result.String(),
		Terminated: eCtx.Terminated,
		Truncated:  eCtx.Truncated,
		TimedOut:   eCtx.TimedOut,
		Duration:   eCtx.RunDuration,
	}
	if eCtx.Err != nil {
		ep.Error = eCtx.Err.Error()
	}
	if err := r.db.SaveEpisode(ep); err != nil {
		r.log.WithError(err).WithField("episode", eCtx.Episode).Error("could not save episode")
	}
}

// DataSet returns the IDs of the runs written so far, keyed by experiment/run.
func (r *Recorder) DataSet() types.DataSet {
	out := make(map[string]string, len(r.runs))
	for k, v := range r.runs {
		out[k] = v
	}
	return out
}

func (r *Recorder) Reset() {}
