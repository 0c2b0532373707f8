package businessflow

import (
	"testing"

	"github.com/amirphl/smsflow/models"
	"github.com/amirphl/smsflow/utils"
	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	ana := &models.CampaignContact{
		FirstName:   utils.ToPtr("Ana"),
		PhoneNumber: "+14155550000",
	}

	tests := []struct {
		name     string
		template string
		contact  *models.CampaignContact
		want     string
	}{
		{
			name:     "first name",
			template: "Hi {{first_name}}, ...",
			contact:  ana,
			want:     "Hi Ana, ...",
		},
		{
			name:     "null built-in renders empty",
			template: "[{{last_name}}][{{email}}]",
			contact:  ana,
			want:     "[][]",
		},
		{
			name:     "full name falls back to phone",
			template: "{{full_name}}",
			contact:  &models.CampaignContact{PhoneNumber: "+14155550000"},
			want:     "+14155550000",
		},
		{
			name:     "full name trims",
			template: "{{full_name}}!",
			contact:  &models.CampaignContact{LastName: utils.ToPtr("Lee"), PhoneNumber: "+14155550000"},
			want:     "Lee!",
		},
		{
			name:     "unknown placeholder kept verbatim",
			template: "Code {{coupon}} for {{first_name}}",
			contact:  ana,
			want:     "Code {{coupon}} for Ana",
		},
		{
			name:     "custom field",
			template: "Your plan: {{plan}}",
			contact: &models.CampaignContact{
				PhoneNumber:  "+14155550000",
				CustomFields: models.CustomFields{"plan": "gold"},
			},
			want: "Your plan: gold",
		},
		{
			name:     "replacement is not rescanned",
			template: "{{first_name}} {{plan}}",
			contact: &models.CampaignContact{
				FirstName:    utils.ToPtr("{{plan}}"),
				PhoneNumber:  "+14155550000",
				CustomFields: models.CustomFields{"plan": "gold"},
			},
			want: "{{plan}} gold",
		},
		{
			name:     "repeated placeholder",
			template: "{{first_name}}{{first_name}}",
			contact:  ana,
			want:     "AnaAna",
		},
		{
			name:     "no placeholders",
			template: "Plain text",
			contact:  ana,
			want:     "Plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.template, tt.contact))
		})
	}
}

func TestRenderTemplate_Idempotent(t *testing.T) {
	contact := &models.CampaignContact{FirstName: utils.ToPtr("Ana"), PhoneNumber: "+14155550000"}
	once := RenderTemplate("Hi {{first_name}} ({{phone_number}})", contact)
	assert.Equal(t, once, RenderTemplate(once, contact))
}
