package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/origami-ms/wrensramp/ramp"
	"github.com/origami-ms/wrensramp/wrens"
)

// openSink returns the bridge client, or a recorder when dry or mocked.  rec
// is nil unless a recorder was returned.
func openSink(ctx context.Context, c Config, dry bool) (sink ramp.CommandSink, release func() error, rec *wrens.Recorder) {
	if dry || c.Mock {
		rec = wrens.NewRecorder()
		rec.Bind(ctx)
		if !dry {
			rec.Scale = c.MockScale
		}
		return rec, func() error { return nil }, rec
	}
	client := wrens.NewClient(c.Host)
	client.Log = logrus.StandardLogger()
	client.Bind(ctx)
	return client, client.Close, nil
}

func newEngine(c Config) (*ramp.Engine, error) {
	e, err := ramp.New(c.Engine)
	if err != nil {
		return nil, err
	}
	e.Log = logrus.StandardLogger()
	return e, nil
}
