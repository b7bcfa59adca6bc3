package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"sensor-fdir/controller"
)

const menu = `
Available commands:
  0 - Show this help message
  1 - Start
  2 - Stop
  3 - Nominal run (simulation.duration_seconds)
  4 - Rate sensor fault (faults.duration_seconds)
  5 - Position sensor fault (faults.duration_seconds)
  6 - Exit
`

// interactiveCmd is the numbered menu driver.
var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Drive the simulation from a numbered menu",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := buildPipeline(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		return runMenu(ctx, p, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func runMenu(ctx context.Context, p *pipeline, in io.Reader, out io.Writer) error {
	fmt.Fprint(out, menu)
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "Enter a number (e.g. '1' for Start) >> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		choice := strings.TrimSpace(scanner.Text())

		if choice == "" {
			p.log.Warn("command cannot be empty")
			continue
		}
		if p.sim.Running() && choice != "2" && choice != "6" {
			p.log.Warn("stop the simulation before running other commands")
			continue
		}

		switch choice {
		case "0":
			fmt.Fprint(out, menu)
		case "1":
			p.sim.Start()
			p.log.Info("simulation running, fused output is being recorded")
		case "2":
			p.sim.Stop()
		case "3":
			if err := p.runScenario(ctx, controller.ScenarioNominal, 0); err != nil {
				return nil
			}
		case "4":
			if err := p.runScenario(ctx, controller.ScenarioRateFault, 0); err != nil {
				return nil
			}
		case "5":
			if err := p.runScenario(ctx, controller.ScenarioPositionFault, 0); err != nil {
				return nil
			}
		case "6":
			p.log.Info("exiting")
			return nil
		default:
			p.log.WithField("command", choice).Warn("command not valid")
		}
	}
}
