package middleware

import (
	"net/http"

	"github.com/Nzyazin/miniauthorizer/internal/core/logger"
)

// HandlerFunc is an http handler that reports infrastructure failures
// instead of writing them itself.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

type ErrorHandler struct {
	handler HandlerFunc
	log     logger.Logger
}

func WithErrorHandler(log logger.Logger) func(HandlerFunc) http.Handler {
	return func(h HandlerFunc) http.Handler {
		return &ErrorHandler{handler: h, log: log}
	}
}

func (eh *ErrorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := eh.handler(w, r); err != nil {
		eh.log.Error("request processing failed",
			logger.StringField("method", r.Method),
			logger.StringField("path", r.URL.Path),
			logger.StringField("request_id", RequestIDFrom(r.Context())),
			logger.ErrorField("error", err),
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error"}`))
	}
}
