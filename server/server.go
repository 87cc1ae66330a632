// Package server contains misc server utilities.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/sirupsen/logrus"

	"github.com/origami-ms/wrensramp/generichttp"
)

// ShutdownGrace bounds how long in-flight requests may take once shutdown begins
var ShutdownGrace = 5 * time.Second

// NewRouter returns a chi router with the access log and panic recovery
// middlewares, with every HTTPer's routes mounted at its stem
func NewRouter(mounts map[string]generichttp.HTTPer, mw ...func(http.Handler) http.Handler) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	root.Use(middleware.Recoverer)
	for stem, h := range mounts {
		r := chi.NewRouter()
		for _, m := range mw {
			r.Use(m)
		}
		h.RT().Bind(r)
		root.Mount(stem, r)
	}
	return root
}

// Serve listens on addr until ctx is done, then shuts the server down
// gracefully
func Serve(ctx context.Context, addr string, h http.Handler, log logrus.FieldLogger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, h, log)
}

// ServeListener is Serve on an existing listener
func ServeListener(ctx context.Context, ln net.Listener, h http.Handler, log logrus.FieldLogger) error {
	srv := &http.Server{Handler: h}
	errs := make(chan error, 1)
	go func() {
		errs <- srv.Serve(ln)
	}()
	log.WithField("addr", ln.Addr().String()).Info("now listening for requests")
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errs; err != http.ErrServerClosed {
		return err
	}
	return nil
}
