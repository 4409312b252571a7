package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uara/dashboard/pkg/logger"
)

func loggerNop() *logger.Logger { return logger.Nop() }

func chiRouter(pattern string, mw func(http.Handler) http.Handler, h http.Handler) http.Handler {
	r := chi.NewRouter()
	r.With(mw).Get(pattern, h.ServeHTTP)
	return r
}
