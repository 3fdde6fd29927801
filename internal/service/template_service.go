// internal/service/template_service.go
package service

import (
	"fmt"

	"github.com/osteele/liquid"

	"github.com/unclebandit/crm-backend/internal/config"
	"github.com/unclebandit/crm-backend/internal/model"
)

// DefaultBodyTemplate lists the campaign contents for the user.
const DefaultBodyTemplate = `Hi {{ name | default: email }},
{% for c in contents %}
- {{ c.name }}{% if c.url != "" %}: {{ c.url }}{% endif %}{% endfor %}
`

var defaultSubjects = map[model.CampaignKind]string{
	model.KindWelcome: "Welcome",
	model.KindRecall:  "Recall",
	model.KindRemind:  "Remind",
}

// TemplateService renders campaign emails with a Liquid body template.
type TemplateService struct {
	Sender   string
	subjects map[model.CampaignKind]string
	body     *liquid.Template
}

func NewTemplateService(sender string, cfg config.CampaignsConfig) (*TemplateService, error) {
	src := cfg.BodyTemplate
	if src == "" {
		src = DefaultBodyTemplate
	}
	tpl, err := liquid.NewEngine().ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}

	subjects := make(map[model.CampaignKind]string, len(defaultSubjects))
	for k, v := range defaultSubjects {
		subjects[k] = v
	}
	for k, v := range cfg.Subjects {
		subjects[model.CampaignKind(k)] = v
	}
	return &TemplateService{Sender: sender, subjects: subjects, body: tpl}, nil
}

func (t *TemplateService) Subject(kind model.CampaignKind) string {
	return t.subjects[kind]
}

// Builder prepares message building for one campaign call. The contents
// binding is built once and shared by every message.
func (t *TemplateService) Builder(campaignID string, kind model.CampaignKind, snapshot *model.ContentSnapshot) *MessageBuilder {
	contents := make([]map[string]any, 0, snapshot.Len())
	for _, c := range snapshot.All() {
		contents = append(contents, map[string]any{
			"id":          c.ID,
			"name":        c.Name,
			"description": c.Description,
			"url":         c.URL,
			"type":        c.Type,
		})
	}
	return &MessageBuilder{
		tpl:      t.body,
		sender:   t.Sender,
		subject:  t.Subject(kind),
		campaign: campaignID,
		contents: contents,
	}
}

// MessageBuilder builds one email per user.
type MessageBuilder struct {
	tpl      *liquid.Template
	sender   string
	subject  string
	campaign string
	contents []map[string]any
}

func (b *MessageBuilder) Build(user model.UserRecord) (model.Message, error) {
	body, err := b.tpl.RenderString(map[string]any{
		"name":     user.Name,
		"email":    user.Email,
		"campaign": b.campaign,
		"contents": b.contents,
	})
	if err != nil {
		return nil, fmt.Errorf("render body for %s: %w", user.Email, err)
	}
	return model.NewEmail(b.sender, []string{user.Email}, b.subject, body), nil
}
