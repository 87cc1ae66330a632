package sequencer

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"

	"github.com/origami-ms/wrensramp/generichttp"
	"github.com/origami-ms/wrensramp/ramp"
)

// HTTPSequencer wraps a Runner in an HTTP interface
type HTTPSequencer struct {
	Runner *Runner

	// RouteTable maps method/path pairs to handlers
	RouteTable generichttp.RouteTable
}

// NewHTTPSequencer returns a new HTTP wrapper with the route table pre-configured
func NewHTTPSequencer(r *Runner) HTTPSequencer {
	h := HTTPSequencer{Runner: r}
	h.RouteTable = generichttp.RouteTable{
		generichttp.MethodPath{Method: http.MethodPost, Path: "/ramp/{mode}"}: h.Start,
		generichttp.MethodPath{Method: http.MethodPost, Path: "/plan/{mode}"}: h.Plan,
		generichttp.MethodPath{Method: http.MethodGet, Path: "/status"}:       h.Status,
		generichttp.MethodPath{Method: http.MethodGet, Path: "/phase"}:        generichttp.GetString(h.phase),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/readback"}:     generichttp.GetFloat(h.readback),
		generichttp.MethodPath{Method: http.MethodPost, Path: "/cancel"}:      h.Cancel,
		generichttp.MethodPath{Method: http.MethodPost, Path: "/stop"}:        h.Stop,
	}
	return h
}

// RT satisfies generichttp.HTTPer
func (h HTTPSequencer) RT() generichttp.RouteTable {
	return h.RouteTable
}

// statusOf maps ramp errors onto HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, ramp.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ramp.ErrInvalidArguments),
		errors.Is(err, ramp.ErrInvalidConfiguration),
		errors.Is(err, ramp.ErrOutOfRange),
		errors.Is(err, ramp.ErrLengthMismatch):
		return http.StatusBadRequest
	case errors.Is(err, ramp.ErrConnectionFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// paramsFromRequest parses {"str": "<argument string>"} for the mode in the path
func paramsFromRequest(r *http.Request) (ramp.Params, error) {
	mode, err := ramp.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		return ramp.Params{}, err
	}
	s := generichttp.StrT{}
	err = json.NewDecoder(r.Body).Decode(&s)
	defer r.Body.Close()
	if err != nil {
		return ramp.Params{}, errors.Wrap(ramp.ErrInvalidArguments, err.Error())
	}
	return ramp.ParseArgs(mode, s.Str)
}

// Start begins a ramp; the body is {"str": "<argument string>"}
func (h HTTPSequencer) Start(w http.ResponseWriter, r *http.Request) {
	p, err := paramsFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	if err = h.Runner.Start(p); err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Plan previews a ramp without running it
func (h HTTPSequencer) Plan(w http.ResponseWriter, r *http.Request) {
	p, err := paramsFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	plan, err := h.Runner.Engine().Preview(p)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	type planResponse struct {
		ramp.Plan
		Args string `json:"args"`
	}
	generichttp.RespondJSON(w, planResponse{Plan: plan, Args: plan.Args()})
}

// Status returns the runner status as JSON
func (h HTTPSequencer) Status(w http.ResponseWriter, r *http.Request) {
	generichttp.RespondJSON(w, h.Runner.Status())
}

func (h HTTPSequencer) phase() (string, error) {
	return string(h.Runner.Status().Progress.Phase), nil
}

// readback is the collision voltage last read back from the instrument
func (h HTTPSequencer) readback() (float64, error) {
	return h.Runner.Status().Progress.Readback, nil
}

// Cancel stops the running ramp, leaving the device as the last command left it
func (h HTTPSequencer) Cancel(w http.ResponseWriter, r *http.Request) {
	h.Runner.Cancel()
	w.WriteHeader(http.StatusOK)
}

// Stop clears the property banks and stops the repeating bank function
func (h HTTPSequencer) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.Runner.Halt(); err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}
