package locker_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/origami-ms/wrensramp/server/middleware/locker"
)

func TestCheckBouncesProtectedPaths(t *testing.T) {
	l := locker.New()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := l.Check(ok)

	serve := func(method, path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec.Code
	}
	assert.Equal(t, http.StatusTeapot, serve(http.MethodPost, "/ramp/linear"))

	l.Lock()
	assert.True(t, l.Locked())
	assert.Equal(t, http.StatusLocked, serve(http.MethodPost, "/ramp/linear"))
	assert.Equal(t, http.StatusTeapot, serve(http.MethodGet, "/status"))
	assert.Equal(t, http.StatusTeapot, serve(http.MethodGet, "/readback"))
	assert.Equal(t, http.StatusLocked, serve(http.MethodPost, "/stop"))
	assert.Equal(t, http.StatusTeapot, serve(http.MethodPost, "/lock"))

	l.Unlock()
	assert.Equal(t, http.StatusTeapot, serve(http.MethodPost, "/ramp/linear"))
}

func TestHTTPSetAndGet(t *testing.T) {
	l := locker.New()
	rec := httptest.NewRecorder()
	l.HTTPSet(rec, httptest.NewRequest(http.MethodPost, "/lock", strings.NewReader(`{"bool": true}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, l.Locked())

	rec = httptest.NewRecorder()
	l.HTTPGet(rec, httptest.NewRequest(http.MethodGet, "/lock", nil))
	assert.JSONEq(t, `{"bool": true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	l.HTTPSet(rec, httptest.NewRequest(http.MethodPost, "/lock", strings.NewReader(`nope`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
