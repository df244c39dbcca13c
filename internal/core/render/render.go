// Package render substitutes named variables into message templates. A
// variable missing from the supplied set is left untouched in the output and
// reported back to the caller; it is a data-quality signal, not a fault.
package render

import (
	"regexp"

	"github.com/pulsehq/insight-engine/internal/database/models"
)

var variablePattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Render replaces every {{name}} occurrence in template with vars[name].
// Returns the rendered text and the variable names referenced by the
// template but absent from vars, in order of first appearance.
func Render(template string, vars map[string]string) (string, []string) {
	var missing []string
	seen := make(map[string]bool)

	rendered := variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]
		value, ok := vars[name]
		if !ok {
			if !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
			return match
		}
		return value
	})

	return rendered, missing
}

// Variables extracts the distinct variable names a template references.
func Variables(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, match := range variablePattern.FindAllStringSubmatch(template, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	return names
}

// Personalize augments vars with recipient fields according to the
// notification template's personalization flags, so template bodies can
// reference {{recipient_name}} and {{recipient_role}} uniformly.
func Personalize(template *models.NotificationTemplate, recipient *models.Recipient, vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars)+2)
	for k, v := range vars {
		out[k] = v
	}
	if recipient != nil {
		if template.UseRecipientName {
			out["recipient_name"] = recipient.Name
		}
		if template.UseRecipientRole {
			out["recipient_role"] = recipient.Role
		}
	}
	return out
}
