// Package notification delivers operator emails for events that need a
// human: exhausted emission queue entries and issued reports.
package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type operatorAlertData struct {
	Title   string
	Heading string
	Lines   []string
}

func renderOperatorAlert(data operatorAlertData) (string, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/operator_alert.html")
	if err != nil {
		return "", fmt.Errorf("parse email template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email template: %w", err)
	}
	return buf.String(), nil
}
