package server_test

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/origami-ms/wrensramp/generichttp"
	"github.com/origami-ms/wrensramp/server"
	"github.com/origami-ms/wrensramp/server/middleware/locker"
)

type pinger struct {
	rt generichttp.RouteTable
}

func (p pinger) RT() generichttp.RouteTable { return p.rt }

func newPinger() pinger {
	return pinger{rt: generichttp.RouteTable{
		generichttp.MethodPath{Method: http.MethodPost, Path: "/ping"}: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
	}}
}

func TestServeMountsAndShutsDown(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := newPinger()
	l := locker.New()
	locker.Inject(p, l)
	router := server.NewRouter(map[string]generichttp.HTTPer{"/ciu": p}, l.Check)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- server.ServeListener(ctx, ln, router, logger) }()

	url := "http://" + ln.Addr().String() + "/ciu"
	resp, err := http.Post(url+"/ping", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	l.Lock()
	resp, err = http.Post(url+"/ping", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusLocked, resp.StatusCode)

	resp, err = http.Get(url + "/lock")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
