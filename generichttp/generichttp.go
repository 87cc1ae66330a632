// Package generichttp holds the pieces shared by the HTTP wrappers: a route
// table bound onto a chi router, and small JSON payload types.
package generichttp

import (
	"encoding/json"
	"go/types"
	"net/http"
	"sort"

	"github.com/go-chi/chi"
)

// MethodPath is an HTTP method and a chi route pattern
type MethodPath struct {
	Method, Path string
}

// RouteTable maps method/path pairs to handlers
type RouteTable map[MethodPath]http.HandlerFunc

// Endpoints lists the routes of the table as "METHOD path", sorted
func (rt RouteTable) Endpoints() []string {
	routes := make([]string, 0, len(rt))
	for k := range rt {
		routes = append(routes, k.Method+" "+k.Path)
	}
	sort.Strings(routes)
	return routes
}

// Bind registers every route on r, plus GET /endpoints listing them
func (rt RouteTable) Bind(r chi.Router) {
	for k, v := range rt {
		r.MethodFunc(k.Method, k.Path, v)
	}
	r.Get("/endpoints", func(w http.ResponseWriter, req *http.Request) {
		RespondJSON(w, rt.Endpoints())
	})
}

// HTTPer is anything with a route table
type HTTPer interface {
	RT() RouteTable
}

// HumanPayload carries one basic value; T selects which field is encoded
type HumanPayload struct {
	T      types.BasicKind
	Bool   bool
	Int    int
	Float  float64
	String string
}

// EncodeAndRespond writes the payload as {"bool"|"int"|"f64"|"str": value}
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	switch hp.T {
	case types.Bool:
		RespondJSON(w, BoolT{Bool: hp.Bool})
	case types.Int:
		RespondJSON(w, IntT{Int: hp.Int})
	case types.Float64:
		RespondJSON(w, FloatT{F64: hp.Float})
	case types.String:
		RespondJSON(w, StrT{Str: hp.String})
	default:
		http.Error(w, "unsupported payload type", http.StatusInternalServerError)
	}
}

// BoolT is a JSON {"bool": v}
type BoolT struct {
	Bool bool `json:"bool"`
}

// IntT is a JSON {"int": v}
type IntT struct {
	Int int `json:"int"`
}

// FloatT is a JSON {"f64": v}
type FloatT struct {
	F64 float64 `json:"f64"`
}

// StrT is a JSON {"str": v}
type StrT struct {
	Str string `json:"str"`
}

// RespondJSON encodes v as the response body
func RespondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetString calls a string-getting function and returns the response
// as json {'str': value}
func GetString(fcn func() (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := HumanPayload{T: types.String, String: s}
		hp.EncodeAndRespond(w, r)
	}
}

// GetFloat calls a float-getting function and returns the response
// as json {'f64': value}
func GetFloat(fcn func() (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := HumanPayload{T: types.Float64, Float: f}
		hp.EncodeAndRespond(w, r)
	}
}

// GetBool calls a bool-getting function and returns the response
// as json {'bool': value}
func GetBool(fcn func() (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := HumanPayload{T: types.Bool, Bool: b}
		hp.EncodeAndRespond(w, r)
	}
}
