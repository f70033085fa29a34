package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/zeu5/royale-rl/actions"
	"github.com/zeu5/royale-rl/config"
)

func DeckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deck",
		Short: "Validate and print the configured deck",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printDeck(cmd.OutOrStdout(), cfg.Deck)
			return nil
		},
	}
}

func printDeck(out io.Writer, deck config.Deck) {
	for i, c := range deck {
		fmt.Fprintf(out, "%d\t%-12s\t%d\t%s\n", i, c.Name, c.ElixirCost, c.Type)
	}
}

func ActionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "Print the action table",
		RunE: func(cmd *cobra.Command, args []string) error {
			for id := 0; id < actions.NumActions; id++ {
				m, err := actions.Decode(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", id, m)
			}
			return nil
		},
	}
}
