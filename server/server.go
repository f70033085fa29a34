package server

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/zeu5/royale-rl/actions"
	"github.com/zeu5/royale-rl/logger"
	"github.com/zeu5/royale-rl/royale"
	"github.com/zeu5/royale-rl/types"
)

// StateFunc returns a read-only view of the game state for GET /state.
type StateFunc func() interface{}

// Server exposes an environment over HTTP to an external trainer. The
// environment has a single mutator, so reset and step are serialized.
type Server struct {
	env   types.Environment
	state StateFunc
	hub   *Hub
	log   *logrus.Entry

	// guards env and the counters below
	lock    sync.Mutex
	episode int
	step    int
	started bool
	obs     types.Observation

	engine *gin.Engine
	server *http.Server
}

func New(addr string, env types.Environment, state StateFunc, log *logrus.Entry) *Server {
	s := newServer(addr, env, state, log)
	s.engine.POST("/reset", s.handleReset)
	s.engine.POST("/step", s.handleStep)
	s.engine.GET("/mask", s.handleMask)
	return s
}

// NewWatcher serves only the read side (health, state and the live feed)
// while something else drives the environment, such as a training run
// publishing through Hub().Observer().
func NewWatcher(addr string, state StateFunc, log *logrus.Entry) *Server {
	return newServer(addr, nil, state, log)
}

func newServer(addr string, env types.Environment, state StateFunc, log *logrus.Entry) *Server {
	if log == nil {
		log = logger.Discard()
	}
	s := &Server{
		env:     env,
		state:   state,
		hub:     NewHub(),
		log:     log,
		episode: -1,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", s.handleHealth)
	r.GET("/state", s.handleState)
	r.GET("/feed", s.handleFeed)
	s.engine = r
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.server.Addr).Info("serving environment")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.server.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

type stepRequest struct {
	Action *int `json:"action" binding:"required"`
}

type resetResponse struct {
	Episode     int               `json:"episode"`
	Observation types.Observation `json:"observation"`
	Info        types.Info        `json:"info"`
}

type stepResponse struct {
	Episode int `json:"episode"`
	types.StepResult
	Mask []bool `json:"mask"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *Server) handleReset(c *gin.Context) {
	s.lock.Lock()
	defer s.lock.Unlock()

	obs, info, err := s.env.Reset(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Warn("reset failed")
		status := http.StatusInternalServerError
		if errors.Is(err, royale.ErrBattleStart) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	s.episode++
	s.step = 0
	s.started = true
	s.obs = obs

	o := obs
	s.hub.Broadcast(Event{Kind: "reset", Episode: s.episode, Reset: &o})
	c.JSON(http.StatusOK, resetResponse{Episode: s.episode, Observation: obs, Info: info})
}

func (s *Server) handleStep(c *gin.Context) {
	req := stepRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.started {
		c.JSON(http.StatusConflict, gin.H{"error": "reset before stepping"})
		return
	}
	res, err := s.env.Step(c.Request.Context(), *req.Action)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, actions.ErrInvalidArgument) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	step := types.Step{
		Index:       s.step,
		Observation: s.obs,
		Action:      *req.Action,
		Reward:      res.Reward,
		Next:        res.Observation,
		Terminated:  res.Terminated,
		Truncated:   res.Truncated,
		Info:        res.Info,
	}
	s.hub.Broadcast(Event{Kind: "step", Episode: s.episode, Step: &step})
	s.step++
	s.obs = res.Observation
	if res.Done() {
		s.started = false
	}

	c.JSON(http.StatusOK, stepResponse{Episode: s.episode, StepResult: res, Mask: s.env.ActionMask()})
}

func (s *Server) handleMask(c *gin.Context) {
	s.lock.Lock()
	mask := s.env.ActionMask()
	s.lock.Unlock()

	valid := make([]int, 0, len(mask))
	for i, ok := range mask {
		if ok {
			valid = append(valid, i)
		}
	}
	c.JSON(http.StatusOK, gin.H{"mask": mask, "valid": valid})
}

func (s *Server) handleState(c *gin.Context) {
	if s.state == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "state not available"})
		return
	}
	c.JSON(http.StatusOK, s.state())
}
