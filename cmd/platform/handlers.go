package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/arnforge/modkit/internal/platform/authapi"
	"github.com/arnforge/modkit/internal/platform/worker"
)

// plain adapts a plain http.HandlerFunc onto httprouter's Handle signature,
// discarding the route params every auth endpoint in §6.2 ignores.
func plain(h http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h(w, r)
	}
}

// oauthProviders looks a provider up by its :provider route param, replying
// 404 for anything not registered.
type oauthProviders map[string]authapi.OAuthProvider

func (p oauthProviders) start(s *authapi.Server) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		provider, ok := p[ps.ByName("provider")]
		if !ok {
			http.NotFound(w, r)

			return
		}

		s.OAuthStart(provider)(w, r)
	}
}

func (p oauthProviders) callback(s *authapi.Server) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		provider, ok := p[ps.ByName("provider")]
		if !ok {
			http.NotFound(w, r)

			return
		}

		s.OAuthCallback(provider)(w, r)
	}
}

// dispatchRequest is the wire shape /debug/dispatch accepts: an ad hoc way
// to drive worker.Binding.Invoke over HTTP for the reference wiring, since
// there is no real pluggable-module caller in this demo binary.
type dispatchRequest struct {
	Method string `json:"method"`
	Args   []any  `json:"args"`
}

// debugDispatchHandler exercises binding against whatever it was bound to
// (local pool or a dialed remote worker), echoing the args back under an
// "echoed" marker when run locally so the endpoint is useful without a real
// module.
func debugDispatchHandler(binding worker.Binding) httprouter.Handle {
	echo := func(args []any) (any, error) {
		return map[string]any{"echoed": true, "args": args}, nil
	}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req dispatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)

			return
		}

		result, err := binding.Invoke(r.Context(), req.Method, req.Args, echo)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	}
}

// workerModeHandler is the toy method table "worker" mode serves over IPC:
// enough to exercise the full §6.5 round trip (line-delimited JSON request
// in, typed response out) without a real cross-language module attached.
func workerModeHandler(moduleName string) func(ctx context.Context, method string, args []any) (any, error) {
	return func(_ context.Context, method string, args []any) (any, error) {
		switch method {
		case "Ping":
			return map[string]any{"module": moduleName, "pong": true}, nil
		case "Echo":
			return args, nil
		case "Uppercase":
			if len(args) == 0 {
				return nil, fmt.Errorf("uppercase requires one string argument")
			}

			s, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("uppercase argument must be a string")
			}

			return strings.ToUpper(s), nil
		default:
			return nil, fmt.Errorf("unknown method %q", method)
		}
	}
}
