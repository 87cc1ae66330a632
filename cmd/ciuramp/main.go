// Command ciuramp drives collision induced unfolding voltage ramps on a
// Waters instrument through the WREnS scripting bridge.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/origami-ms/wrensramp/ramp"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	logLevel   = "info"
	configPath = "ciuramp.yml"
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}
	return nil
}

// NewCommand .
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ciuramp",
		Short: "ciuramp ramps the collision voltage of a CIU acquisition",
		Long: `ciuramp ramps the trap or cone collision voltage of a collision induced
unfolding acquisition, writing every voltage to the instrument's property banks
through the WREnS scripting bridge.

Three ramp modes are supported:
	linear       the same number of scans at every voltage
	exponential  the scans per voltage grow once a percentage of the end voltage is reached
	list         scans per voltage and voltages given as two lists

Configuration is read from ciuramp.yml in the working directory, if present.
Run "ciuramp mkconf" to write one with the defaults.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := setupLogger(); err != nil {
				return err
			}
			return setupConfig(configPath)
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")

	cmd.AddCommand(
		NewRunCommand(),
		NewPlanCommand(),
		NewServeCommand(),
		NewStopCommand(),
		NewMkconfCommand(),
		NewConfCommand(),
		NewVersionCommand(),
	)
	return cmd
}

// NewVersionCommand .
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("ciuramp version %s\n", Version)
		},
	}
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, ramp.ErrConnectionFailed):
		fmt.Fprintln(os.Stderr, "\nError: could not reach the instrument")
		fmt.Fprintln(os.Stderr, "  - Is the WREnS bridge running and is Host.Addr in ciuramp.yml correct?")
	case errors.Is(err, ramp.ErrInvalidArguments):
		fmt.Fprintln(os.Stderr, "\nError: the argument string could not be parsed")
		fmt.Fprintln(os.Stderr, "  - Run \"ciuramp help run\" for the field order of each mode")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}
