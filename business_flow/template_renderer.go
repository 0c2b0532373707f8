package businessflow

import (
	"regexp"

	"github.com/amirphl/smsflow/models"
	"github.com/amirphl/smsflow/utils"
)

// placeholderPattern matches {{name}}; names cannot contain braces
var placeholderPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// TemplateVariable documents one built-in placeholder
type TemplateVariable struct {
	Placeholder string
	Description string
}

// BuiltinTemplateVariables lists the placeholders every contact can fill
var BuiltinTemplateVariables = []TemplateVariable{
	{Placeholder: "{{first_name}}", Description: "Contact first name"},
	{Placeholder: "{{last_name}}", Description: "Contact last name"},
	{Placeholder: "{{full_name}}", Description: "Contact full name"},
	{Placeholder: "{{phone_number}}", Description: "Contact phone number"},
	{Placeholder: "{{email}}", Description: "Contact email address"},
}

// templateValues collects the substitution values for a contact.
// Custom fields are applied last and win over built-ins with the same name.
func templateValues(contact *models.CampaignContact) map[string]string {
	values := make(map[string]string, 5+len(contact.CustomFields))
	values["first_name"] = utils.Deref(contact.FirstName)
	values["last_name"] = utils.Deref(contact.LastName)
	values["full_name"] = contact.FullName()
	values["phone_number"] = contact.PhoneNumber
	values["email"] = utils.Deref(contact.Email)
	for k, v := range contact.CustomFields {
		values[k] = v
	}
	return values
}

// RenderTemplate substitutes contact values into template in a single pass.
// Replacement text is never re-scanned and unknown placeholders stay verbatim.
func RenderTemplate(template string, contact *models.CampaignContact) string {
	values := templateValues(contact)
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		if v, ok := values[match[2:len(match)-2]]; ok {
			return v
		}
		return match
	})
}
