package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	timeFormat  = "2006-01-02 15:04:05"
	sessionTTL  = 7 * 24 * time.Hour
	minPassword = 6
)

// Session is an authenticated operator session.
type Session struct {
	Token      string
	OperatorID string
	Username   string
	ExpiresAt  time.Time
}

// HashPassword creates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken creates a secure random token.
func GenerateToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GetSession returns the unexpired session for a token, or nil.
func GetSession(db *sql.DB, token string) *Session {
	if token == "" {
		return nil
	}

	var s Session
	err := db.QueryRow(`
		SELECT s.token, s.operator_id, o.username, s.expires_at
		FROM sessions s JOIN operators o ON o.id = s.operator_id
		WHERE s.token = ? AND s.expires_at > datetime('now')`,
		token).Scan(&s.Token, &s.OperatorID, &s.Username, &s.ExpiresAt)
	if err != nil {
		return nil
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	return &s
}

// CreateSession opens a new session for an operator.
func CreateSession(db *sql.DB, operatorID string) (string, time.Time, error) {
	token := GenerateToken()
	expiresAt := time.Now().UTC().Add(sessionTTL)

	_, err := db.Exec(`INSERT INTO sessions (token, operator_id, expires_at) VALUES (?, ?, ?)`,
		token, operatorID, expiresAt.Format(timeFormat))
	return token, expiresAt, err
}

// DeleteSession removes a session.
func DeleteSession(db *sql.DB, token string) {
	db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
}

// CleanupExpiredSessions removes expired sessions.
func CleanupExpiredSessions(db *sql.DB) {
	db.Exec(`DELETE FROM sessions WHERE expires_at < datetime('now')`)
}

// CreateDefaultAdmin seeds the initial operator account when none
// exists yet. With no configured password a random one is generated
// and logged once.
func CreateDefaultAdmin(db *sql.DB, username, password string) {
	var count int
	db.QueryRow(`SELECT COUNT(*) FROM operators`).Scan(&count)
	if count > 0 {
		return
	}

	if password == "" {
		password = GenerateToken()[:12]
		log.Printf("auth: generated admin password: %s", password)
		log.Printf("auth: set ADMIN_PASS to use a fixed password")
	}

	hash, err := HashPassword(password)
	if err != nil {
		log.Printf("auth: could not hash admin password: %v", err)
		return
	}
	_, err = db.Exec(`INSERT INTO operators (id, username, password_hash) VALUES (?, ?, ?)`,
		uuid.NewString(), username, hash)
	if err != nil {
		log.Printf("auth: could not create admin operator: %v", err)
		return
	}
	log.Printf("auth: created admin operator %q", username)
}
