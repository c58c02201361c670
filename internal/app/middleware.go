package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const (
	userIdContextKey = contextKey("userID")
	loggerContextKey = contextKey("logger")

	UserIdHeader = "X-User-Id"
)

func (app *Application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")

				app.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// requestLogger stores a logger carrying the request id in the context.
func (app *Application) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := app.logger.With("request_id", middleware.GetReqID(r.Context()))

		ctx := context.WithValue(r.Context(), loggerContextKey, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUser trusts the caller identity forwarded by the gateway in the
// X-User-Id header.
func (app *Application) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userId, err := strconv.Atoi(r.Header.Get(UserIdHeader))
		if err != nil || userId < 1 {
			app.unauthorizedAccessResponse(w, r)
			return
		}

		next.ServeHTTP(w, contextSetUserId(r, userId))
	})
}

func (app *Application) contextGetUserId(r *http.Request) int {
	userId, ok := r.Context().Value(userIdContextKey).(int)
	if !ok {
		panic("missing user id from context")
	}

	return userId
}

func (app *Application) contextGetLogger(r *http.Request) *slog.Logger {
	logger, ok := r.Context().Value(loggerContextKey).(*slog.Logger)
	if !ok {
		return app.logger
	}

	return logger
}

func contextSetUserId(r *http.Request, userId int) *http.Request {
	ctx := context.WithValue(r.Context(), userIdContextKey, userId)
	return r.WithContext(ctx)
}
