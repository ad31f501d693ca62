package telegram

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var requiredTemplates = []string{
	"featured_digest.tmpl",
	"window_digest.tmpl",
}

// TemplateManager renders notification templates
type TemplateManager struct {
	templates *template.Template
}

// NewTemplateManager parses the embedded templates
func NewTemplateManager() (*TemplateManager, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	for _, name := range requiredTemplates {
		if templates.Lookup(name) == nil {
			return nil, fmt.Errorf("required template not found: %s", name)
		}
	}
	return &TemplateManager{templates: templates}, nil
}

// Execute renders a named template
func (tm *TemplateManager) Execute(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tm.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
