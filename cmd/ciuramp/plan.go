package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/origami-ms/wrensramp/ramp"
	"github.com/origami-ms/wrensramp/util"
)

// NewPlanCommand .
func NewPlanCommand() *cobra.Command {
	var pf paramFlags
	cmd := &cobra.Command{
		Use:   "plan <mode> [argument string]",
		Short: "Print the schedule of a ramp without running it",
		Long:  "Print the schedule of a ramp without running it.\n\n" + argsHelp,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pf.params(args)
			if err != nil {
				return err
			}
			c, err := loadConfig()
			if err != nil {
				return err
			}
			e, err := newEngine(c)
			if err != nil {
				return err
			}
			plan, err := e.Preview(p)
			if err != nil {
				return err
			}
			printPlan(cmd, plan)
			return nil
		},
	}
	pf.register(cmd)
	return cmd
}

func printPlan(cmd *cobra.Command, plan ramp.Plan) {
	cmd.Println(bold("Schedule:"))
	cmd.Printf("  %-10s %-8s %-14s %s\n", "CV (V)", "scans", "bank writes", "elapsed")
	for _, s := range plan.Steps {
		cmd.Printf("  %-10s %-8d %-14s %s\n",
			util.FormatSetting(s.Voltage), s.ScanCount, s.Batches, s.Elapsed)
	}
	h := plan.FinalHold
	cmd.Printf("  %-10s %-8d %-14s %s (final hold)\n",
		util.FormatSetting(h.Voltage), h.ScanCount, h.Batches, h.Elapsed)
	cmd.Println()
	cmd.Printf("  Ramp scans: %s\n", bold("%d", plan.RampScans))
	cmd.Printf("  Wall time: %s\n", bold("%s", plan.Duration))
	cmd.Printf("  Estimated acquisition: %s\n", bold("%s min", util.FormatSetting(plan.EstimatedMinutes)))
	cmd.Printf("  Arguments: %s\n", bold("%s", plan.Args()))
	for _, w := range plan.Warnings {
		cmd.Printf("  %s %s\n", color.New(color.Bold, color.FgYellow).Sprint("Warning:"), w)
	}
}
