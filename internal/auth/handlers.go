package auth

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
)

func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// Status reports whether the caller is authenticated.
func Status(db *sql.DB, enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := GetSessionFromRequest(db, r)
		var username string
		if session != nil {
			username = session.Username
		}
		jsonResponse(w, map[string]any{
			"auth_enabled":  enabled,
			"authenticated": session != nil,
			"username":      username,
		})
	}
}

// Login authenticates an operator and opens a session.
func Login(db *sql.DB, enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !enabled {
			jsonResponse(w, map[string]any{"success": true, "message": "Authentication disabled"})
			return
		}

		var creds struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			jsonError(w, "Invalid request", http.StatusBadRequest)
			return
		}

		var (
			operatorID string
			hash       string
		)
		err := db.QueryRow(`SELECT id, password_hash FROM operators WHERE username = ?`,
			creds.Username).Scan(&operatorID, &hash)
		if err != nil || !CheckPassword(hash, creds.Password) {
			jsonError(w, "Invalid username or password", http.StatusUnauthorized)
			return
		}

		token, expiresAt, err := CreateSession(db, operatorID)
		if err != nil {
			jsonError(w, "Failed to create session", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     "session",
			Value:    token,
			Path:     "/",
			Expires:  expiresAt,
			HttpOnly: true,
			Secure:   isSecureRequest(r),
			SameSite: http.SameSiteLaxMode,
		})
		log.Printf("auth: login %s", creds.Username)
		jsonResponse(w, map[string]any{
			"success":  true,
			"token":    token,
			"username": creds.Username,
		})
	}
}

// Logout closes the caller's session.
func Logout(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := GetSessionFromRequest(db, r)
		if session != nil {
			DeleteSession(db, session.Token)
			log.Printf("auth: logout %s", session.Username)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     "session",
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   isSecureRequest(r),
			SameSite: http.SameSiteLaxMode,
		})
		jsonResponse(w, map[string]string{"status": "logged_out"})
	}
}

// ChangePassword updates the authenticated operator's password.
func ChangePassword(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := GetSessionFromContext(r)
		if session == nil {
			jsonError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req struct {
			CurrentPassword string `json:"current_password"`
			NewPassword     string `json:"new_password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "Invalid request", http.StatusBadRequest)
			return
		}
		if len(req.NewPassword) < minPassword {
			jsonError(w, "Password must be at least 6 characters", http.StatusBadRequest)
			return
		}

		var currentHash string
		db.QueryRow(`SELECT password_hash FROM operators WHERE id = ?`,
			session.OperatorID).Scan(&currentHash)
		if !CheckPassword(currentHash, req.CurrentPassword) {
			jsonError(w, "Current password is incorrect", http.StatusUnauthorized)
			return
		}

		newHash, err := HashPassword(req.NewPassword)
		if err != nil {
			jsonError(w, "Failed to hash password", http.StatusInternalServerError)
			return
		}
		if _, err := db.Exec(`UPDATE operators SET password_hash = ? WHERE id = ?`,
			newHash, session.OperatorID); err != nil {
			jsonError(w, "Failed to update password", http.StatusInternalServerError)
			return
		}
		log.Printf("auth: password changed for %s", session.Username)
		jsonResponse(w, map[string]string{"status": "password_changed"})
	}
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("auth: encode response: %v", err)
	}
}

func jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
