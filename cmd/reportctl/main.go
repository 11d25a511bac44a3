package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dzekuza/pav4-sub004/internal/config"
	"github.com/dzekuza/pav4-sub004/internal/repository/postgres"
	"github.com/dzekuza/pav4-sub004/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	appLog *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "reportctl",
	Short: "Operator tooling for the referral attribution service",
	Long: "reportctl applies schema migrations, registers businesses and prints\n" +
		"the same attribution reports the HTTP API serves, as JSON on stdout.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		c, err := config.LoadFrom(envFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		level := cfg.App.LogLevel
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = "debug"
		}
		// Logs go to stderr so stdout stays parseable JSON.
		appLog = logger.NewWithWriter(os.Stderr, level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "optional dotenv file to read before the environment")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openPool connects with a small pool; CLI commands run a handful of queries.
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := postgres.InitDB(ctx, cfg.Database.DatabaseDSN(), 2, 1, cfg.Database.ConnMaxLifetime)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
