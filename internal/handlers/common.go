package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"herald/internal/notify"
	"herald/internal/runner"
)

// Run and Dispatch are set from main.go.
var (
	Run      *runner.Runner
	Dispatch *notify.Dispatcher
)

// JSONResponse sends a JSON response.
func JSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("handlers: encode response: %v", err)
	}
}

// JSONError sends a JSON error response.
func JSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// queryInt reads an integer query parameter, falling back when absent
// or malformed.
func queryInt(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
