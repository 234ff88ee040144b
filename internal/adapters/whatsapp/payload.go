package whatsapp

import (
	"fmt"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
)

type messagePayload struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type,omitempty"`
	Context          *messageContext  `json:"context,omitempty"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *textPayload     `json:"text,omitempty"`
	Template         *templatePayload `json:"template,omitempty"`
}

type messageContext struct {
	MessageID string `json:"message_id"`
}

type textPayload struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type templatePayload struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []component `json:"components"`
}

type language struct {
	Code string `json:"code"`
}

type component struct {
	Type       string      `json:"type"`
	SubType    string      `json:"sub_type,omitempty"`
	Index      string      `json:"index,omitempty"`
	Parameters []parameter `json:"parameters,omitempty"`
	Cards      []card      `json:"cards,omitempty"`
}

type card struct {
	CardIndex  int         `json:"card_index"`
	Components []component `json:"components"`
}

type parameter struct {
	Type  string     `json:"type"`
	Text  string     `json:"text,omitempty"`
	Image *mediaLink `json:"image,omitempty"`
}

type mediaLink struct {
	ID string `json:"id"`
}

func buildPayload(msg entities.OutboundMessage) (messagePayload, error) {
	switch msg.Type {
	case entities.OutboundText:
		p := messagePayload{
			MessagingProduct: messagingProduct,
			RecipientType:    "individual",
			To:               msg.To,
			Type:             string(entities.OutboundText),
			Text:             &textPayload{PreviewURL: false, Body: msg.Text},
		}
		if msg.ReplyToMessageID != "" {
			p.Context = &messageContext{MessageID: msg.ReplyToMessageID}
		}
		return p, nil

	case entities.OutboundTemplate:
		if msg.Template == nil {
			return messagePayload{}, fmt.Errorf("template message to %s has no template", msg.To)
		}
		return messagePayload{
			MessagingProduct: messagingProduct,
			To:               msg.To,
			Type:             string(entities.OutboundTemplate),
			Template:         buildTemplate(msg.Template),
		}, nil
	}
	return messagePayload{}, fmt.Errorf("unsupported outbound type %q", msg.Type)
}

func buildTemplate(t *entities.Template) *templatePayload {
	body := component{Type: "body"}
	for _, p := range t.BodyParameters {
		body.Parameters = append(body.Parameters, parameter{Type: "text", Text: p})
	}

	carousel := component{Type: "carousel"}
	for _, c := range t.Cards {
		carousel.Cards = append(carousel.Cards, card{
			CardIndex: c.Index,
			Components: []component{
				{Type: "header", Parameters: []parameter{{Type: "image", Image: &mediaLink{ID: c.HeaderImageID}}}},
				{Type: "body", Parameters: []parameter{{Type: "text", Text: c.Title}}},
				{Type: "button", SubType: "quick_reply", Index: "0", Parameters: []parameter{{Type: "text", Text: c.ButtonText}}},
			},
		})
	}

	return &templatePayload{
		Name:       t.Name,
		Language:   language{Code: t.LanguageCode},
		Components: []component{body, carousel},
	}
}
