package businessflow

import (
	"strings"

	"github.com/amirphl/outreach-autopilot/models"
)

// RenderTemplate substitutes recipient and campaign placeholders such as {{first_name}}.
// Unknown placeholders are left as they are; missing values render as empty strings.
func RenderTemplate(tmpl string, recipient *models.Recipient, campaign *models.Campaign) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	var senderName string
	if campaign != nil {
		senderName = deref(campaign.Context.SenderName)
	}
	r := strings.NewReplacer(
		"{{first_name}}", deref(recipient.FirstName),
		"{{last_name}}", deref(recipient.LastName),
		"{{company}}", deref(recipient.Company),
		"{{title}}", deref(recipient.Title),
		"{{email}}", recipient.Address,
		"{{sender_name}}", senderName,
	)
	return r.Replace(tmpl)
}
