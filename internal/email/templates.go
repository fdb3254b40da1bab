package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

func renderEmailTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func newLeadSubject(data NewLeadEmail) string {
	if data.TierLabel == "" {
		return fmt.Sprintf("New referral for %s", data.TrialID)
	}
	return fmt.Sprintf("New referral for %s (%s)", data.TrialID, data.TierLabel)
}
