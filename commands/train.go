package commands

import (
	"context"
	"encoding/json"
	"path"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zeu5/royale-rl/config"
	"github.com/zeu5/royale-rl/logger"
	"github.com/zeu5/royale-rl/policies"
	"github.com/zeu5/royale-rl/server"
	"github.com/zeu5/royale-rl/store"
	"github.com/zeu5/royale-rl/stream"
	"github.com/zeu5/royale-rl/types"
	"github.com/zeu5/royale-rl/util"
)

var (
	alpha        float64
	gamma        float64
	epsilon      float64
	epsilonDecay float64
	withRandom   bool
	feedAddr     string
)

func TrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the tabular policy against live battles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Logging)

			ctx, done := interruptContext()
			defer done()

			return Train(ctx, cfg, log)
		},
	}
	defaults := policies.DefaultQLearningConfig()
	cmd.Flags().Float64Var(&alpha, "alpha", defaults.Alpha, "Learning rate")
	cmd.Flags().Float64Var(&gamma, "gamma", defaults.Gamma, "Discount factor")
	cmd.Flags().Float64Var(&epsilon, "epsilon", defaults.Epsilon, "Initial exploration rate")
	cmd.Flags().Float64Var(&epsilonDecay, "epsilon-decay", defaults.EpsilonDecay, "Exploration decay per episode")
	cmd.Flags().BoolVar(&withRandom, "random-baseline", false, "Also run a uniformly random policy for comparison")
	cmd.Flags().StringVar(&feedAddr, "feed-addr", "", "Serve the live step feed and state on this address while training")
	return cmd
}

// Train runs the q-learning experiment, plus the random baseline when
// asked, and records traces, policies, plots and the episode database
// under the save folder.
func Train(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	controller, err := newController(cfg, log)
	if err != nil {
		return err
	}

	observers := make([]types.StepObserver, 0)
	if cfg.Services.RedisAddr != "" {
		cli, err := stream.Dial(ctx, cfg.Services.RedisAddr)
		if err != nil {
			log.WithError(err).Warn("transition stream disabled")
		} else {
			defer cli.Close()
			pub := stream.NewPublisher(cli, cfg.Services.RedisStream, cfg.Services.RedisMaxLen, logger.Component(log, "stream"))
			observers = append(observers, pub.Observer())
		}
	}
	if feedAddr != "" {
		env := controller.Environment()
		watcher := server.NewWatcher(feedAddr, func() interface{} {
			return env.Snapshot()
		}, logger.Component(log, "feed"))
		go func() {
			if err := watcher.Start(ctx); err != nil {
				log.WithError(err).Warn("feed server stopped")
			}
		}()
		observers = append(observers, watcher.Hub().Observer())
	}

	c := types.NewComparison(&types.ComparisonConfig{
		Runs:       runs,
		Episodes:   episodes,
		Horizon:    cfg.Episode.MaxSteps,
		RecordPath: saveFile,
		// record flags
		RecordTraces:  true,
		RecordPolicy:  true,
		RecordReports: false,
		Observers:     observers,
	}, logger.Component(log, "comparison"))

	c.AddAnalysis("Rewards", types.NewRewardAnalyzer(), types.RewardPlotter(saveFile))
	c.AddAnalysis("Summary", types.NewRewardAnalyzer(), types.RewardPrinter(func(s string) {
		log.Info(s)
	}))

	if err := util.EnsureDir(saveFile); err != nil {
		return err
	}
	if db := openStore(cfg, log); db != nil {
		defer db.Close()
		c.AddAnalysis("Store", store.NewRecorder(db, configJSON(cfg, log), logger.Component(log, "store")), types.NoopComparator())
	}

	qCfg := policies.DefaultQLearningConfig()
	qCfg.Alpha = alpha
	qCfg.Gamma = gamma
	qCfg.Epsilon = epsilon
	qCfg.EpsilonDecay = epsilonDecay

	c.AddExperiment(types.NewExperiment(
		"QLearning",
		policies.NewQLearning(qCfg),
		controller,
		logger.Component(log, "experiment"),
	))
	if withRandom {
		c.AddExperiment(types.NewExperiment(
			"Random",
			types.NewRandomPolicy(),
			controller,
			logger.Component(log, "experiment"),
		))
	}

	for run, summaries := range c.Run(ctx) {
		for i, s := range summaries {
			log.WithFields(logrus.Fields{
				"run":         run,
				"experiment":  c.Experiments[i].Name,
				"episodes":    s.Episodes,
				"errors":      s.Errors,
				"interrupted": s.Interrupted,
				"aborted":     s.Aborted,
			}).Info("run finished")
		}
	}
	return nil
}

// openStore opens and migrates the episode database under the save folder.
// Failures only disable recording.
func openStore(cfg *config.Config, log *logrus.Logger) *store.SQLite {
	db, err := store.NewSQLite(path.Join(saveFile, cfg.Services.SQLitePath))
	if err != nil {
		log.WithError(err).Warn("episode store disabled")
		return nil
	}
	if err := db.Migrate(); err != nil {
		log.WithError(err).Warn("episode store disabled")
		if cerr := db.Close(); cerr != nil {
			log.WithError(cerr).Debug("closing episode store")
		}
		return nil
	}
	return db
}

func configJSON(cfg *config.Config, log *logrus.Logger) string {
	bs, err := json.Marshal(cfg)
	if err != nil {
		log.WithError(err).Warn("could not encode config for the episode store")
		return "{}"
	}
	return string(bs)
}
