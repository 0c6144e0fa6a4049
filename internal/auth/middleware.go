package auth

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
)

type contextKey string

// SessionKey is the context key under which the session is stored.
const SessionKey contextKey = "session"

// Middleware rejects requests without a valid session unless
// authentication is disabled.
func Middleware(db *sql.DB, enabled bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !enabled {
			next(w, r)
			return
		}

		session := GetSessionFromRequest(db, r)
		if session == nil {
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), SessionKey, session)
		next(w, r.WithContext(ctx))
	}
}

// GetSessionFromRequest resolves the session from the request cookie
// or Authorization bearer header.
func GetSessionFromRequest(db *sql.DB, r *http.Request) *Session {
	var token string
	if cookie, err := r.Cookie("session"); err == nil {
		token = cookie.Value
	} else if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	return GetSession(db, token)
}

// GetSessionFromContext returns the session placed by Middleware.
func GetSessionFromContext(r *http.Request) *Session {
	if session, ok := r.Context().Value(SessionKey).(*Session); ok {
		return session
	}
	return nil
}
