package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/origami-ms/wrensramp/generichttp"
	"github.com/origami-ms/wrensramp/generichttp/sequencer"
	"github.com/origami-ms/wrensramp/ramp"
	"github.com/origami-ms/wrensramp/server"
	"github.com/origami-ms/wrensramp/server/middleware/locker"
)

// NewServeCommand .
func NewServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ramp sequencer over HTTP",
		Long: `Serve the ramp sequencer over HTTP.  One ramp runs at a time; the routes
are mounted under /ciu, and GET /ciu/endpoints lists them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				c.Addr = addr
			}
			e, err := newEngine(c)
			if err != nil {
				return err
			}
			log := logrus.StandardLogger()
			open := func(ctx context.Context) (ramp.CommandSink, func() error, error) {
				sink, release, _ := openSink(ctx, c, false)
				return sink, release, nil
			}
			h := sequencer.NewHTTPSequencer(sequencer.NewRunner(e, open, log))
			lock := locker.New()
			locker.Inject(h, lock)
			router := server.NewRouter(map[string]generichttp.HTTPer{"/ciu": h}, lock.Check)

			if c.Mock {
				log.Warn("Mock is set, no commands will reach the instrument")
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Serve(ctx, c.Addr, router, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides Addr of the config file")
	return cmd
}
