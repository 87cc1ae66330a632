package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/origami-ms/wrensramp/ramp"
	"github.com/origami-ms/wrensramp/util"
)

const argsHelp = `The argument string holds the comma separated fields of the mode:

	linear       activation,polarity,spv,scanTime,start,end,step,totalMinutes
	exponential  activation,polarity,spv,scanTime,start,end,step,expPercent,expIncrement,totalMinutes
	list         activation,polarity,scanTime,[spv spv ...],[cv cv ...]

activation is TRAP or CONE, polarity POSITIVE or NEGATIVE and scanTime is 1-5 s.
A list ramp may instead be read from a CSV file (header row, then SPV,CV
columns) with --csv, giving --activation, --polarity and --scan-time.`

// paramFlags are the flags describing a list ramp read from CSV
type paramFlags struct {
	csv        string
	activation string
	polarity   string
	scanTime   int
}

func (f *paramFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.csv, "csv", "", "read the scans per voltage and voltages of a list ramp from a CSV file")
	fl.StringVar(&f.activation, "activation", "TRAP", "activation type of a CSV list ramp (TRAP, CONE)")
	fl.StringVar(&f.polarity, "polarity", "POSITIVE", "ion polarity of a CSV list ramp (POSITIVE, NEGATIVE)")
	fl.IntVar(&f.scanTime, "scan-time", 1, "scan time of a CSV list ramp in seconds")
}

func (f paramFlags) params(args []string) (ramp.Params, error) {
	mode, err := ramp.ParseMode(args[0])
	if err != nil {
		return ramp.Params{}, err
	}
	if f.csv == "" {
		if len(args) != 2 {
			return ramp.Params{}, errors.Wrap(ramp.ErrInvalidArguments, "expected <mode> <argument string>")
		}
		return ramp.ParseArgs(mode, args[1])
	}
	if mode != ramp.ExplicitList {
		return ramp.Params{}, errors.Wrapf(ramp.ErrInvalidArguments, "--csv only applies to list ramps, not %s", mode)
	}
	act, err := ramp.ParseActivation(f.activation)
	if err != nil {
		return ramp.Params{}, err
	}
	pol, err := ramp.ParsePolarity(f.polarity)
	if err != nil {
		return ramp.Params{}, err
	}
	counts, volts, err := ramp.LoadListCSV(f.csv)
	if err != nil {
		return ramp.Params{}, err
	}
	return ramp.Params{
		Mode:       ramp.ExplicitList,
		Activation: act,
		Polarity:   pol,
		ScanTime:   f.scanTime,
		ScanCounts: counts,
		Voltages:   volts,
	}, nil
}

// NewRunCommand .
func NewRunCommand() *cobra.Command {
	var (
		pf     paramFlags
		dryRun bool
		noSpin bool
		noHalt bool
	)
	cmd := &cobra.Command{
		Use:   "run <mode> [argument string]",
		Short: "Run a collision voltage ramp",
		Long:  "Run a collision voltage ramp.\n\n" + argsHelp,
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
			for _, w := range plan.Warnings {
				logrus.Warn(w)
			}
			logrus.WithFields(logrus.Fields{
				"steps":    len(plan.Steps),
				"duration": plan.Duration,
			}).Info("acquisition planned")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			sink, release, rec := openSink(ctx, c, dryRun)
			defer release()

			sp, err := newSpinner(!noSpin && !dryRun)
			if err != nil {
				return err
			}
			total := len(plan.Steps)
			e.OnProgress = func(pr ramp.Progress) {
				sp.message(fmt.Sprintf("%s step %d/%d at %s V, %d scans left",
					pr.Phase, pr.Step, total, util.FormatSetting(pr.Voltage), pr.Remaining))
			}

			out, runErr := e.Run(ctx, p, sink)
			sp.stop(string(out.Phase), runErr != nil)
			if runErr != nil && (out.Phase == ramp.PhaseCanceled || out.Phase == ramp.PhaseFailed) && !noHalt {
				haltAfter(sink)
			}
			printOutcome(cmd, out, plan)
			if rec != nil && dryRun {
				cmd.Println(bold("Transcript:"))
				for _, line := range rec.Transcript() {
					cmd.Println("  " + line)
				}
			}
			return runErr
		},
	}
	pf.register(cmd)
	fl := cmd.Flags()
	fl.BoolVar(&dryRun, "dry-run", false, "record the commands instead of sending them and print them")
	fl.BoolVar(&noSpin, "no-spinner", false, "do not show the progress spinner")
	fl.BoolVar(&noHalt, "no-halt", false, "leave the property banks running when the ramp is interrupted")
	return cmd
}

type binder interface {
	Bind(context.Context)
}

// haltAfter stops the property banks after an interrupted run
func haltAfter(sink ramp.CommandSink) {
	if b, ok := sink.(binder); ok {
		b.Bind(context.Background())
	}
	logrus.Warn("ramp interrupted, stopping the property banks")
	if err := ramp.Halt(sink); err != nil {
		logrus.WithError(err).Error("could not stop the property banks, stop WREnS by hand")
	}
}

func printOutcome(cmd *cobra.Command, out ramp.RunOutcome, plan ramp.Plan) {
	phase := color.New(color.Bold, color.FgGreen).Sprint(out.Phase)
	if out.Phase != ramp.PhaseDone {
		phase = color.New(color.Bold, color.FgRed).Sprint(out.Phase)
	}
	cmd.Println(bold("Ramp:"))
	cmd.Printf("  Phase: %s\n", phase)
	cmd.Printf("  Steps: %s\n", bold("%d/%d", out.Steps, len(plan.Steps)))
	cmd.Printf("  Bank writes: %s\n", bold("%d", out.Batches))
	cmd.Printf("  Scans: %s\n", bold("%d ramp + %d hold", out.RampScans, out.HoldScans))
	cmd.Printf("  Waited: %s\n", bold("%s", util.MillisToDuration(out.WaitedMS)))
	if out.Phase == ramp.PhaseDone {
		cmd.Printf("  Final readback: %s\n", bold("%s V", util.FormatSetting(out.FinalReadback)))
	}
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
