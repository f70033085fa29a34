package commands

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zeu5/royale-rl/config"
	"github.com/zeu5/royale-rl/explorer"
	"github.com/zeu5/royale-rl/logger"
	"github.com/zeu5/royale-rl/perception"
	"github.com/zeu5/royale-rl/royale"
	"github.com/zeu5/royale-rl/util"
)

var (
	configPath string
	logLevel   string
	episodes   int
	saveFile   string
	runs       int
)

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "royale-rl",
		Short:         "Reinforcement learning agent playing battles from screen pixels",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCommand.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path of the YAML configuration, defaults are used when empty")
	rootCommand.PersistentFlags().StringVar(&logLevel, "log-level", "", "Overrides the configured log level")
	rootCommand.PersistentFlags().IntVarP(&episodes, "episodes", "e", 100, "Number of episodes to run")
	rootCommand.PersistentFlags().StringVarP(&saveFile, "save", "s", "results", "Save the result data in the specified folder")
	rootCommand.PersistentFlags().IntVar(&runs, "runs", 1, "Number of experiment runs")
	// adding the subcommands here
	rootCommand.AddCommand(TrainCommand())
	rootCommand.AddCommand(EvaluateCommand())
	rootCommand.AddCommand(ServeCommand())
	rootCommand.AddCommand(DeckCommand())
	rootCommand.AddCommand(ActionsCommand())
	rootCommand.AddCommand(explorer.ExploreCommand())
	return rootCommand
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configPath == "" {
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		c, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// newController wires the live perception stack: the device bridge for
// capture, input and OCR, template matching for buttons and cards, and the
// hosted detector for units and towers.
func newController(cfg *config.Config, log *logrus.Logger) (*royale.Controller, error) {
	bridge := perception.NewBridge(cfg.Services.BridgeURL, logger.Component(log, "bridge"))
	matcher := perception.NewNCCMatcher(cfg.Screen.MatchThreshold, logger.Component(log, "matcher"))
	if err := royale.LoadTemplates(matcher, cfg.Screen, cfg.Deck); err != nil {
		return nil, err
	}
	detector := perception.NewHTTPDetector(
		cfg.Services.DetectorURL,
		cfg.Services.DetectorModel,
		cfg.Services.DetectorAPIKey,
		cfg.Screen.DetectorSize,
		logger.Component(log, "detector"),
	)
	perc := royale.Perception{
		Capturer: bridge,
		Matcher:  matcher,
		Reader:   bridge,
		Detector: detector,
		Clicker:  bridge,
		Placer:   bridge,
	}
	return royale.New(cfg, perc, util.RealClock{}, log), nil
}

// interruptContext is cancelled on the first interrupt. The returned
// function releases the signal handler.
func interruptContext() (context.Context, func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	doneCh := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-sigCh:
		case <-doneCh:
		}
		cancel()
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		close(doneCh)
	}
}
