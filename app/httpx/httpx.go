// Package httpx holds the JSON, pagination and error helpers shared by handlers.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/mytheresa/storefront/models"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type ctxKey int

const loggerKey ctxKey = iota

// WithLogger stores a request scoped log entry.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey, entry)
}

// Log returns the request scoped log entry, or one on the standard logger.
func Log(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(loggerKey).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// WriteFields answers 422 with a message per offending field.
func WriteFields(w http.ResponseWriter, msg string, fields map[string]string) {
	WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":  msg,
		"fields": fields,
	})
}

// WriteDomainError maps repository errors to a status code. Unknown errors
// are logged and answered with 500 and fallback as message.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var rule *models.RuleError
	switch {
	case errors.As(err, &rule):
		field := rule.Field
		if field == "" {
			field = "error"
		}
		WriteFields(w, rule.Error(), map[string]string{field: rule.Message})
	case errors.Is(err, models.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrForbidden):
		WriteError(w, http.StatusForbidden, "You are not allowed to access this resource")
	default:
		Log(r.Context()).WithError(err).Error(fallback)
		WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// Pagination reads offset and limit. Invalid values are ignored, limit is
// clamped to [1, MaxLimit].
func Pagination(r *http.Request) (offset, limit int) {
	offset = 0
	limit = DefaultLimit

	if oStr := r.URL.Query().Get("offset"); oStr != "" {
		if o, err := strconv.Atoi(oStr); err == nil && o >= 0 {
			offset = o
		}
	}

	if lStr := r.URL.Query().Get("limit"); lStr != "" {
		if l, err := strconv.Atoi(lStr); err == nil {
			if l < 1 {
				limit = 1
			} else if l > MaxLimit {
				limit = MaxLimit
			} else {
				limit = l
			}
		}
	}
	return offset, limit
}

// PathID parses a numeric path value. It answers 404 itself when the value
// is not a positive integer.
func PathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		WriteError(w, http.StatusNotFound, "Not found")
		return 0, false
	}
	return uint(id), true
}

// QueryUint parses an optional numeric query parameter; invalid values are ignored.
func QueryUint(r *http.Request, name string) *uint {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil
	}
	u := uint(v)
	return &u
}

// QueryBool reports whether a query flag is set to a true value (1, t, true).
func QueryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
