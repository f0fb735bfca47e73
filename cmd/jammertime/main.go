// @title        jammertime API
// @version      1.0
// @description  Reconciles machine state logs with a shift calendar and reports jam time by shift.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in           header
// @name         Authorization
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jammertime/internal/config"
	"jammertime/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "jammertime",
	Short: "Jam time by shift from machine state logs",
	Long: `jammertime splits machine state intervals at shift and break boundaries,
classifies error streaks as jams or exclusions (restart artifacts, interrupted
breaks, maintenance closures) and sums time per shift and state.

Use 'calc' for one-off reports from files, 'simulate' to fabricate a log for a
calendar and 'serve' for the HTTP API.`,
	SilenceUsage: true,
}

func main() {
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "config file (default configs/config.yml)")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "console or json")
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", pf.Lookup("log-format"))
}

func registerCommands() {
	rootCmd.AddCommand(newServeCmd(), newCalcCmd(), newSimulateCmd())
}

// loadApp reads the configuration and builds the process logger.
func loadApp(cmd *cobra.Command) (config.App, *logger.Logger, error) {
	file, _ := cmd.Flags().GetString("config")
	app, err := config.Load(viper.GetViper(), file)
	if err != nil {
		return config.App{}, nil, err
	}
	return app, logger.Get(app.Log.Level, app.Log.Format), nil
}
