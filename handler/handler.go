package handler

import (
	"context"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cvette/pmflow/internal/message"
	"github.com/cvette/pmflow/internal/metrics"
)

// Dispatcher hands a request to a worker.
type Dispatcher interface {
	Handle(context.Context, *message.Request) (*message.Response, error)
}

type RequestHandlerParams struct {
	fx.In

	Dispatcher Dispatcher
	Metrics    *metrics.Metrics `optional:"true"`
	Log        *zap.Logger
}

func NewRequestHandler(params RequestHandlerParams) *RequestHandler {
	return &RequestHandler{
		dispatcher: params.Dispatcher,
		metrics:    params.Metrics,
		maxMemory:  defaultMaxMemory,
		log:        params.Log,
	}
}

// RequestHandler serves HTTP requests with the worker pool.
type RequestHandler struct {
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	maxMemory  int64
	log        *zap.Logger
}

func (h *RequestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	)

	req, err := convertRequest(r, h.maxMemory)
	if err != nil {
		log.Debug("failed to convert request", zap.Error(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	defer req.Close()

	h.metrics.ObserveUploads(req.uploads)

	res, err := h.dispatcher.Handle(r.Context(), req.Request)
	if err != nil {
		log.Error("failed to dispatch request", zap.Error(err))
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	for k, v := range res.Header {
		for _, vv := range v {
			w.Header().Add(k, vv)
		}
	}

	w.WriteHeader(res.StatusCode)

	if _, err := w.Write(res.Body); err != nil {
		log.Debug("failed to write response", zap.Error(err))
	}
}
