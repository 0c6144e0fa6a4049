package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"herald/internal/db"
	"herald/internal/directory"
)

// ListUsers returns all users.
// GET /api/users
func ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := directory.ListUsers(db.DB)
	if err != nil {
		log.Printf("handlers: list users: %v", err)
		JSONError(w, "Failed to list users", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []directory.User{}
	}
	JSONResponse(w, users)
}

// CreateUser registers a user.
// POST /api/users
func CreateUser(w http.ResponseWriter, r *http.Request) {
	var u directory.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		JSONError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if u.Email == "" {
		JSONError(w, "Email is required", http.StatusBadRequest)
		return
	}

	if err := directory.CreateUser(db.DB, &u); err != nil {
		log.Printf("handlers: create user: %v", err)
		JSONError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	JSONResponse(w, u)
}

// GetUser returns a single user.
// GET /api/users/{id}
func GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := directory.GetUser(db.DB, r.PathValue("id"))
	if err != nil {
		log.Printf("handlers: get user: %v", err)
		JSONError(w, "Failed to get user", http.StatusInternalServerError)
		return
	}
	if u == nil {
		JSONError(w, "User not found", http.StatusNotFound)
		return
	}
	JSONResponse(w, u)
}

// GetPreference returns a user's notification preferences; users who
// never saved any get the defaults.
// GET /api/users/{id}/preferences
func GetPreference(w http.ResponseWriter, r *http.Request) {
	pref, err := directory.GetPreference(db.DB, r.PathValue("id"))
	if err != nil {
		log.Printf("handlers: get preference: %v", err)
		JSONError(w, "Failed to get preferences", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, pref)
}

// PutPreference saves a user's notification preferences.
// PUT /api/users/{id}/preferences
func PutPreference(w http.ResponseWriter, r *http.Request) {
	var pref directory.Preference
	if err := json.NewDecoder(r.Body).Decode(&pref); err != nil {
		JSONError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	pref.UserID = r.PathValue("id")

	u, err := directory.GetUser(db.DB, pref.UserID)
	if err != nil || u == nil {
		JSONError(w, "User not found", http.StatusNotFound)
		return
	}

	if err := directory.UpsertPreference(db.DB, &pref); err != nil {
		log.Printf("handlers: save preference: %v", err)
		JSONError(w, "Failed to save preferences", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, pref)
}
