package template

import "time"

// Template is a stored notification template for one notification type.
// Bodies use {{name}} placeholders substituted at render time.
type Template struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Subject     string    `json:"subject"`
	HTMLBody    string    `json:"html_body"`
	TextBody    string    `json:"text_body"`
	PreviewText string    `json:"preview_text,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Rendered is a template with all placeholders substituted.
type Rendered struct {
	Subject     string `json:"subject"`
	HTMLBody    string `json:"html_body"`
	TextBody    string `json:"text_body"`
	PreviewText string `json:"preview_text,omitempty"`
}
