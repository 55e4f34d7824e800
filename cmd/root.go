// Package cmd wires the command-line interface: scenario validation and
// the run loop, with logging and environment setup shared across
// commands.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	envFile  string
)

var rootCmd = &cobra.Command{
	Use:   "simclass",
	Short: "Multi-agent classroom simulator",
	Long: `simclass runs a discrete-tick classroom simulation: supervised
student and teacher agents exchanging messages over a bounded async bus,
with spatial perception, a weekly timetable, and a semester calendar.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				logrus.Warnf("env file %s not loaded: %v", envFile, err)
			}
		} else {
			// Best effort: a local .env is optional.
			_ = godotenv.Load()
		}
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return nil
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load before running")
}
