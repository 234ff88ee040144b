package usecases

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
)

// Errors for inbound records that cannot become a ChannelMessage.
var (
	ErrMissingSender = errors.New("message has no sender")
	ErrEmptyMessage  = errors.New("no text could be extracted from message")
)

const (
	fieldMessages               = "messages"
	fieldTemplateStatusUpdate   = "message_template_status_update"
	templateStatusPrefix        = "TEMPLATE_"
	statusEventDateLayout       = "2006-01-02"
	statusEventTimeLayout       = "15:04:05"
	interactiveButtonReplyType  = "button_reply"
	interactiveListReplyType    = "list_reply"
	interactiveButtonTextPrefix = "Button: "
	interactiveListTextPrefix   = "List selection: "
)

// Normalizer converts webhook records into channel-independent messages.
type Normalizer struct {
	now func() time.Time
	log logrus.FieldLogger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(log logrus.FieldLogger) *Normalizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Normalizer{now: time.Now, log: log.WithField("component", "inbound")}
}

// NormalizeEntry extracts every usable message of one webhook entry.
// Records that cannot be used are reported in errs and never abort the rest.
func (n *Normalizer) NormalizeEntry(entry entities.WebhookEntry, meta entities.ReplyMetadata) (msgs []entities.ChannelMessage, errs []error) {
	for _, change := range entry.Changes {
		for _, raw := range change.Value.Messages {
			msg, err := n.Normalize(raw, meta)
			if err != nil {
				n.log.WithError(err).WithField("message_id", raw.ID).Error("Dropping inbound message")
				errs = append(errs, err)
				continue
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs, errs
}

// Normalize converts one message record.
func (n *Normalizer) Normalize(raw entities.WebhookMessage, meta entities.ReplyMetadata) (entities.ChannelMessage, error) {
	if raw.From == "" {
		return entities.ChannelMessage{}, fmt.Errorf("message %s: %w", raw.ID, ErrMissingSender)
	}

	subtype, text := extractText(raw)
	if text == "" {
		return entities.ChannelMessage{}, fmt.Errorf("message %s (%s): %w", raw.ID, raw.Type, ErrEmptyMessage)
	}

	return entities.ChannelMessage{
		MessageID:     raw.ID,
		SessionKey:    raw.From,
		Text:          text,
		Subtype:       subtype,
		ReplyMetadata: meta,
	}, nil
}

func extractText(raw entities.WebhookMessage) (entities.MessageSubtype, string) {
	switch entities.MessageSubtype(raw.Type) {
	case entities.SubtypeText:
		if raw.Text == nil {
			return entities.SubtypeText, ""
		}
		return entities.SubtypeText, raw.Text.Body
	case entities.SubtypeButton:
		if raw.Button == nil {
			return entities.SubtypeButton, ""
		}
		return entities.SubtypeButton, raw.Button.Payload
	case entities.SubtypeInteractive:
		return entities.SubtypeInteractive, interactiveText(raw.Interactive)
	default:
		return entities.SubtypeOther, fmt.Sprintf("[Received %s message]", raw.Type)
	}
}

func interactiveText(in *entities.WebhookInteractive) string {
	if in == nil {
		return ""
	}
	switch in.Type {
	case interactiveButtonReplyType:
		if in.ButtonReply != nil {
			return interactiveButtonTextPrefix + in.ButtonReply.Title
		}
		return interactiveButtonTextPrefix
	case interactiveListReplyType:
		if in.ListReply != nil {
			return interactiveListTextPrefix + in.ListReply.Title
		}
		return interactiveListTextPrefix
	}
	return ""
}

// StatusSource describes the notification that carried a webhook entry.
type StatusSource struct {
	NotificationID string // Falls back to the status or entry id
	AccountID      string
	ReceivedAt     time.Time // Defaults to now
}

// StatusEvents extracts delivery and template status updates from one entry.
func (n *Normalizer) StatusEvents(entry entities.WebhookEntry, src StatusSource) []entities.StatusEvent {
	at := src.ReceivedAt
	if at.IsZero() {
		at = n.now()
	}
	at = at.UTC()

	base := func(fallbackID string) entities.StatusEvent {
		id := src.NotificationID
		if id == "" {
			id = fallbackID
		}
		return entities.StatusEvent{
			ID:        id,
			EventDate: at.Format(statusEventDateLayout),
			EventTime: at.Format(statusEventTimeLayout),
			AccountID: src.AccountID,
		}
	}

	var events []entities.StatusEvent
	for _, change := range entry.Changes {
		switch change.Field {
		case fieldTemplateStatusUpdate:
			ev := base(entry.ID)
			ev.Status = templateStatusPrefix + change.Value.Event
			ev.TemplateName = optional(change.Value.MessageTemplateName)
			ev.TemplateLanguage = optional(change.Value.MessageTemplateLanguage)
			events = append(events, ev)
		case fieldMessages:
			for _, st := range change.Value.Statuses {
				ev := base(st.ID)
				ev.Status = st.Status
				ev.RecipientID = optional(st.RecipientID)
				if st.Conversation != nil {
					ev.ConversationID = optional(st.Conversation.ID)
				}
				if st.Pricing != nil {
					ev.Billable = st.Pricing.Billable
					ev.PricingModel = optional(st.Pricing.PricingModel)
					ev.PricingCategory = optional(st.Pricing.Category)
				}
				events = append(events, ev)
			}
		}
	}
	return events
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
