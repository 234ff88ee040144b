package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/ports"
)

// Course catalog template defaults.
const (
	DefaultTemplateName     = "course_catalog_v10"
	DefaultTemplateLanguage = "en"
)

// DefaultBodyParameters fill the template body placeholders.
func DefaultBodyParameters() []string {
	return []string{"Cloud Computing", "Machine Learning", "Data Science"}
}

// DefaultCards is the built-in catalog carousel, in display order.
func DefaultCards() []entities.Card {
	return []entities.Card{
		NewCard("Programming", "1068347741892049"),
		NewCard("Cloud Computing", "704959258834752"),
		NewCard("Data Science", "1282410307004034"),
		NewCard("Machine Learning", "722423164071961"),
	}
}

// NewCard builds a card whose quick-reply button asks for courses on title.
func NewCard(title, headerImageID string) entities.Card {
	return entities.Card{
		Title:         title,
		HeaderImageID: headerImageID,
		ButtonText:    entities.ButtonTextFor(title),
	}
}

// Interpret drains the agent's event stream into an AgentReply.
// Trace events are only logged. A custom JSON object answer is decoded into Structured.
func Interpret(ctx context.Context, events <-chan ports.AgentEvent, log logrus.FieldLogger) (entities.AgentReply, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return entities.AgentReply{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return interpretText(sb.String()), nil
			}
			switch {
			case ev.Err != nil:
				return entities.AgentReply{}, fmt.Errorf("reading agent stream: %w", ev.Err)
			case ev.Trace != nil:
				log.WithField("trace", ev.Trace).Debug("Agent trace")
			default:
				sb.Write(ev.Chunk)
			}
		}
	}
}

func interpretText(raw string) entities.AgentReply {
	reply := entities.AgentReply{RawText: raw}

	trimmed := strings.TrimSpace(raw)
	if !gjson.Valid(trimmed) {
		return reply
	}
	parsed := gjson.Parse(trimmed)
	if !parsed.IsObject() {
		return reply
	}
	if format := parsed.Get("messageFormat"); format.String() == customMessageFormat {
		reply.Structured = &entities.StructuredReply{
			MessageFormat: format.String(),
			ResponseType:  parsed.Get("responseType").String(),
			Message:       parsed.Get("message").String(),
		}
	}
	return reply
}

// TemplateSettings names the pre-approved carousel template.
type TemplateSettings struct {
	Name           string
	LanguageCode   string
	BodyParameters []string
}

// Renderer turns an AgentReply into the channel message to send.
type Renderer struct {
	catalog  ports.CarouselCatalog
	settings TemplateSettings
}

// NewRenderer creates a Renderer. A nil catalog uses DefaultCards.
func NewRenderer(catalog ports.CarouselCatalog, settings TemplateSettings) *Renderer {
	if settings.Name == "" {
		settings.Name = DefaultTemplateName
	}
	if settings.LanguageCode == "" {
		settings.LanguageCode = DefaultTemplateLanguage
	}
	if len(settings.BodyParameters) == 0 {
		settings.BodyParameters = DefaultBodyParameters()
	}
	return &Renderer{catalog: catalog, settings: settings}
}

// Render picks the carousel template for a carousel reply and plain text otherwise.
func (r *Renderer) Render(msg entities.ChannelMessage, reply entities.AgentReply) entities.OutboundMessage {
	if reply.Structured.IsCarousel() {
		return r.Carousel(msg)
	}
	return r.Text(msg, reply.RawText)
}

// Text renders text verbatim as a reply to msg.
func (r *Renderer) Text(msg entities.ChannelMessage, text string) entities.OutboundMessage {
	return entities.OutboundMessage{
		To:               recipient(msg.SessionKey),
		Type:             entities.OutboundText,
		ReplyToMessageID: msg.MessageID,
		Text:             text,
		ReplyMetadata:    msg.ReplyMetadata,
	}
}

// Carousel renders the course catalog template.
func (r *Renderer) Carousel(msg entities.ChannelMessage) entities.OutboundMessage {
	var cards []entities.Card
	if r.catalog != nil {
		cards = r.catalog.Cards()
	}
	if len(cards) == 0 {
		cards = DefaultCards()
	}

	indexed := make([]entities.Card, len(cards))
	for i, c := range cards {
		c.Index = i
		indexed[i] = c
	}

	return entities.OutboundMessage{
		To:   recipient(msg.SessionKey),
		Type: entities.OutboundTemplate,
		Template: &entities.Template{
			Name:           r.settings.Name,
			LanguageCode:   r.settings.LanguageCode,
			BodyParameters: append([]string(nil), r.settings.BodyParameters...),
			Cards:          indexed,
		},
		ReplyMetadata: msg.ReplyMetadata,
	}
}

func recipient(sessionKey string) string {
	if strings.HasPrefix(sessionKey, "+") {
		return sessionKey
	}
	return "+" + sessionKey
}
