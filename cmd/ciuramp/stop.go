package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/origami-ms/wrensramp/ramp"
)

// NewStopCommand .
func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Clear the property banks and stop the repeating bank function",
		Long: `Clear the property banks and stop the repeating bank function, leaving the
instrument idle.  Use it to clean up after a ramp that was killed before it
could reset.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			sink, release, _ := openSink(context.Background(), c, false)
			defer release()
			target := c.Engine.Target
			if target == "" {
				target = ramp.DefaultTarget
			}
			if err := sink.Connect(target); err != nil {
				return errors.Wrapf(ramp.ErrConnectionFailed, "could not connect to the %s: %v", target, err)
			}
			if err := ramp.Halt(sink); err != nil {
				return err
			}
			logrus.Info("property banks stopped")
			return nil
		},
	}
}
