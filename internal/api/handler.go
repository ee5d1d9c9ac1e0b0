package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	server "github.com/tejusbharadwaj/itemhistory/internal/grpc"
	"github.com/tejusbharadwaj/itemhistory/internal/item"
	"github.com/tejusbharadwaj/itemhistory/internal/persistence"
	"github.com/tejusbharadwaj/itemhistory/internal/units"
)

// Handler serves item history queries over HTTP.
type Handler struct {
	items     server.ItemLookup
	engine    server.QueryEngine
	validator *server.RequestValidator
	ready     func() bool
	logger    *logrus.Entry
}

// NewHandler creates the REST handler. ready reports whether the service
// accepts queries; nil means always.
func NewHandler(items server.ItemLookup, engine server.QueryEngine, ready func() bool, logger *logrus.Logger) *Handler {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Handler{
		items:     items,
		engine:    engine,
		validator: server.NewRequestValidator(),
		ready:     ready,
		logger:    logger.WithField("component", "http"),
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !h.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"metrics": persistence.Metrics()})
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	params, err := paramsFromRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := h.validator.Validate(params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	it, err := h.items.Get(params.Item)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.engine.Execute(r.Context(), it, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, server.ResultFields(res))
}

func (h *Handler) removeStates(w http.ResponseWriter, r *http.Request) {
	params, err := paramsFromRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sel, err := h.validator.Selector(params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	it, err := h.items.Get(params.Item)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.engine.RemoveAllStates(r.Context(), it, sel, params.Service); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// paramsFromRequest maps the URL onto query params. since, until and
// start/end select the window; at is the instant of historic_state and
// persisted_state.
func paramsFromRequest(r *http.Request) (server.QueryParams, error) {
	vars := mux.Vars(r)
	q := r.URL.Query()
	p := server.QueryParams{
		Item:    vars["item"],
		Metric:  vars["metric"],
		Service: q.Get("service"),
		Riemann: q.Get("riemann"),
	}
	if v := q.Get("skip_equal"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("%w: skip_equal must be a boolean", server.ErrInvalidRequest)
		}
		p.SkipEqual = b
	}
	switch {
	case q.Has("since"):
		p.Selector, p.Start = "since", q.Get("since")
	case q.Has("until"):
		p.Selector, p.End = "until", q.Get("until")
	case q.Has("start") || q.Has("end"):
		p.Selector, p.Start, p.End = "between", q.Get("start"), q.Get("end")
	}
	if q.Has("at") {
		p.Start = q.Get("at")
	}
	return p, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	entry := h.logger.WithFields(logrus.Fields{"path": r.URL.Path, "status": code}).WithError(err)
	if code >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, server.ErrInvalidRequest), errors.Is(err, persistence.ErrUnknownMetric),
		errors.Is(err, persistence.ErrMissingSelector), errors.Is(err, persistence.ErrUnknownRiemannType):
		return http.StatusBadRequest
	case errors.Is(err, item.ErrNotFound), errors.Is(err, persistence.ErrNoService):
		return http.StatusNotFound
	case errors.Is(err, units.ErrIncompatible), errors.Is(err, units.ErrUnknownUnit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
