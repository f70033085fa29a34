package commands

import (
	"github.com/spf13/cobra"
	"github.com/zeu5/royale-rl/logger"
	"github.com/zeu5/royale-rl/server"
)

var addr string

func ServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose reset/step over HTTP for an external trainer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Logging)

			controller, err := newController(cfg, log)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Services.ServerAddr
			}

			ctx, done := interruptContext()
			defer done()

			env := controller.Environment()
			s := server.New(addr, controller, func() interface{} {
				return env.Snapshot()
			}, logger.Component(log, "server"))
			return s.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, defaults to the configured one")
	return cmd
}
