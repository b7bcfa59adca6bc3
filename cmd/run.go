package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sensor-fdir/controller"
)

var (
	runDuration      time.Duration // 0 means the simulation.duration_seconds setting
	scenarioDuration time.Duration // 0 means the faults.duration_seconds setting
)

// runCmd runs the nominal pipeline until the duration elapses or a signal
// arrives.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation for a fixed duration (Ctrl+C stops early)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := buildPipeline(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		d := runDuration
		if d <= 0 {
			d = time.Duration(p.sensorsCfg.Simulation.DurationSeconds) * time.Second
		}
		p.log.WithField("duration", d).Info("pipeline running, press Ctrl+C to stop")
		if err := p.sim.RunFor(ctx, d); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

// scenarioCmd runs one of the canned FDIR scenarios.
var scenarioCmd = &cobra.Command{
	Use:       "scenario <nominal|rate-fault|position-fault>",
	Short:     "Run a canned scenario (fault scenarios inject the class fault for the whole run)",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(controller.ScenarioNominal), string(controller.ScenarioRateFault), string(controller.ScenarioPositionFault)},
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario, err := controller.ParseScenario(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := buildPipeline(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.runScenario(ctx, scenario, scenarioDuration); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

func init() {
	runCmd.Flags().DurationVar(&runDuration, "duration", 0, "run length (default from sensors.yaml)")
	scenarioCmd.Flags().DurationVar(&scenarioDuration, "duration", 0, "scenario length (default from sensors.yaml)")
}
