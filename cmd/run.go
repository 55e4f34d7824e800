package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chuanyeli/simclass/api"
	"github.com/chuanyeli/simclass/llm"
	"github.com/chuanyeli/simclass/sim"
	"github.com/chuanyeli/simclass/storage"
)

var scenarioPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario to completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario, err := sim.LoadScenario(scenarioPath)
		if err != nil {
			return err
		}

		var store sim.MemoryStore
		if scenario.Storage.Enabled {
			path := scenario.Storage.Path
			if path == "" {
				path = "simclass.db"
			}
			sqliteStore, err := storage.Open(path)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			store = sqliteStore
		}

		responders := llm.BuildResponders(scenario.LLM, scenario.Agents)
		simulation := sim.NewSimulation(scenario, store, responders)

		if scenario.API.Enabled {
			server := api.NewServer(scenario.API.Addr(), simulation)
			server.Start()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logrus.Warnf("api shutdown: %v", err)
				}
			}()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return simulation.Run(ctx)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse a scenario file and report what it declares",
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario, err := sim.LoadScenario(scenarioPath)
		if err != nil {
			return err
		}
		students, teachers := 0, 0
		for _, agent := range scenario.Agents {
			switch sim.AgentRole(agent.Role) {
			case sim.RoleTeacher:
				teachers++
			default:
				students++
			}
		}
		fmt.Printf("scenario ok: %d ticks, %d students, %d teachers, %d scripted events, %d timetable slots\n",
			scenario.Simulation.Ticks, students, teachers, len(scenario.Events), len(scenario.Timetable))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "examples/classroom.yaml", "scenario file to run")
	validateCmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "examples/classroom.yaml", "scenario file to validate")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
