package api

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// NewRouter wires the REST routes. metrics serves the Prometheus endpoint.
func NewRouter(h *Handler, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/metrics", h.listMetrics).Methods(http.MethodGet)
	api.HandleFunc("/items/{item}/states", h.removeStates).Methods(http.MethodDelete)
	api.HandleFunc("/items/{item}/{metric}", h.query).Methods(http.MethodGet)

	return r
}

// Wrap adds access logging to out and panic recovery around router.
func Wrap(router http.Handler, out io.Writer) http.Handler {
	logged := handlers.CombinedLoggingHandler(out, router)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(logged)
}
