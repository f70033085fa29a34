package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeu5/royale-rl/logger"
	"github.com/zeu5/royale-rl/policies"
	"github.com/zeu5/royale-rl/types"
)

var policyFile string

func EvaluateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Play greedily with a recorded policy and report the rewards",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Logging)

			policy, err := policies.LoadQLearning(policyFile)
			if err != nil {
				return err
			}
			controller, err := newController(cfg, log)
			if err != nil {
				return err
			}

			ctx, done := interruptContext()
			defer done()

			analyzer := types.NewRewardAnalyzer()
			e := types.NewExperiment("Evaluate", policy.Greedy(), controller, logger.Component(log, "experiment"))
			summary := e.Run(ctx, &types.RunConfig{
				Episodes:  episodes,
				Horizon:   cfg.Episode.MaxSteps,
				Analyzers: []types.Analyzer{analyzer},
			})

			stats := analyzer.Stats()
			mean, std := stats.MeanReturn()
			fmt.Fprintf(cmd.OutOrStdout(), "episodes: %d (errors %d)\n", summary.Episodes, summary.Errors)
			fmt.Fprintf(cmd.OutOrStdout(), "reward: %.2f +/- %.2f\n", mean, std)
			fmt.Fprintf(cmd.OutOrStdout(), "length: %.1f\n", stats.MeanLength())
			fmt.Fprintf(cmd.OutOrStdout(), "win rate: %.2f\n", stats.WinRate())
			return nil
		},
	}
	cmd.Flags().StringVarP(&policyFile, "policy", "p", "", "Policy recorded by train")
	cmd.MarkFlagRequired("policy")
	return cmd
}
