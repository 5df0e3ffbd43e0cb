package actions

import (
	"strings"

	"selestial_backend/internal/contacts"
)

// Render substitutes the supported personalization tokens against a contact.
// Unknown tokens pass through untouched.
func Render(template string, contact contacts.Contact) string {
	replacer := strings.NewReplacer(
		"{{first_name}}", contact.FirstName,
		"{{last_name}}", contact.LastName,
		"{{email}}", contact.Email,
	)
	return replacer.Replace(template)
}
