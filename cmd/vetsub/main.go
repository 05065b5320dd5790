package main

import (
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vetsub/internal/clock"
	"github.com/smallbiznis/vetsub/internal/config"
	"github.com/smallbiznis/vetsub/internal/observability"
	"github.com/smallbiznis/vetsub/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var nodeID int64

func main() {
	rootCmd := &cobra.Command{
		Use:           "vetsub",
		Short:         "Veterinary clinic subscription lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().Int64Var(&nodeID, "node-id", 1, "Snowflake node id for this process")

	rootCmd.AddCommand(
		newServeCommand(),
		newSweepCommand(),
		newMigrateCommand(),
		newSeedCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// infrastructure is shared by every command that touches the database.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
	)
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(nodeID)
}
