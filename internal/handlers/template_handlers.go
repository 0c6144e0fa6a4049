package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"herald/internal/db"
	"herald/internal/template"
)

// ListTemplates returns all templates.
// GET /api/templates
func ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := template.List(db.DB)
	if err != nil {
		log.Printf("handlers: list templates: %v", err)
		JSONError(w, "Failed to list templates", http.StatusInternalServerError)
		return
	}
	if templates == nil {
		templates = []template.Template{}
	}
	JSONResponse(w, templates)
}

// GetTemplate returns a single template.
// GET /api/templates/{id}
func GetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := template.Get(db.DB, r.PathValue("id"))
	if err != nil {
		log.Printf("handlers: get template: %v", err)
		JSONError(w, "Failed to get template", http.StatusInternalServerError)
		return
	}
	if tpl == nil {
		JSONError(w, "Template not found", http.StatusNotFound)
		return
	}
	JSONResponse(w, tpl)
}

// CreateTemplate adds a new template.
// POST /api/templates
func CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl template.Template
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		JSONError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if tpl.Type == "" || tpl.Subject == "" {
		JSONError(w, "Type and subject are required", http.StatusBadRequest)
		return
	}

	if err := template.Create(db.DB, &tpl); err != nil {
		log.Printf("handlers: create template: %v", err)
		JSONError(w, "Failed to create template", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	JSONResponse(w, tpl)
}

// UpdateTemplate replaces a template.
// PUT /api/templates/{id}
func UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl template.Template
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		JSONError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	tpl.ID = r.PathValue("id")

	if err := template.Update(db.DB, &tpl); err != nil {
		log.Printf("handlers: update template: %v", err)
		JSONError(w, "Failed to update template", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, tpl)
}

// DeleteTemplate removes a template.
// DELETE /api/templates/{id}
func DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := template.Delete(db.DB, r.PathValue("id")); err != nil {
		log.Printf("handlers: delete template: %v", err)
		JSONError(w, "Failed to delete template", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]string{"status": "deleted"})
}
