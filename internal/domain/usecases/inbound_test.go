package usecases

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
)

var testMeta = entities.ReplyMetadata{
	OriginationNumberID:  "phone-number-id-01",
	OriginationNumberARN: "arn:aws:social-messaging:ap-south-1:123:phone-number-id/01",
}

func entryWith(t *testing.T, raw string) entities.WebhookEntry {
	t.Helper()
	var entry entities.WebhookEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	return entry
}

func TestNormalize_Subtypes(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		want    string
		subtype entities.MessageSubtype
	}{
		{
			name:    "text",
			msg:     `{"id":"m1","from":"919800000001","type":"text","text":{"body":"hi there"}}`,
			want:    "hi there",
			subtype: entities.SubtypeText,
		},
		{
			name:    "button",
			msg:     `{"id":"m2","from":"919800000001","type":"button","button":{"payload":"Show me some Programming courses","text":"Programming"}}`,
			want:    "Show me some Programming courses",
			subtype: entities.SubtypeButton,
		},
		{
			name:    "interactive button reply",
			msg:     `{"id":"m3","from":"919800000001","type":"interactive","interactive":{"type":"button_reply","button_reply":{"id":"b1","title":"Cloud"}}}`,
			want:    "Button: Cloud",
			subtype: entities.SubtypeInteractive,
		},
		{
			name:    "interactive list reply",
			msg:     `{"id":"m4","from":"919800000001","type":"interactive","interactive":{"type":"list_reply","list_reply":{"id":"l1","title":"Data Science"}}}`,
			want:    "List selection: Data Science",
			subtype: entities.SubtypeInteractive,
		},
		{
			name:    "image",
			msg:     `{"id":"m5","from":"919800000001","type":"image","image":{"id":"img"}}`,
			want:    "[Received image message]",
			subtype: entities.SubtypeOther,
		},
	}
	n := NewNormalizer(quietLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw entities.WebhookMessage
			require.NoError(t, json.Unmarshal([]byte(tt.msg), &raw))

			got, err := n.Normalize(raw, testMeta)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Text)
			assert.Equal(t, tt.subtype, got.Subtype)
			assert.Equal(t, "919800000001", got.SessionKey)
			assert.Equal(t, raw.ID, got.MessageID)
			assert.Equal(t, testMeta, got.ReplyMetadata)
		})
	}
}

func TestNormalize_Drops(t *testing.T) {
	n := NewNormalizer(quietLogger())

	_, err := n.Normalize(entities.WebhookMessage{ID: "m1", Type: "text", Text: &entities.WebhookText{Body: "hi"}}, testMeta)
	assert.ErrorIs(t, err, ErrMissingSender)

	_, err = n.Normalize(entities.WebhookMessage{ID: "m2", From: "91", Type: "text", Text: &entities.WebhookText{}}, testMeta)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = n.Normalize(entities.WebhookMessage{ID: "m3", From: "91", Type: "interactive",
		Interactive: &entities.WebhookInteractive{Type: "nfm_reply"}}, testMeta)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestNormalizeEntry_MalformedRecordDoesNotAbortBatch(t *testing.T) {
	entry := entryWith(t, `{
		"id": "waba-1",
		"changes": [{
			"field": "messages",
			"value": {"messages": [
				{"id": "m1", "type": "text", "text": {"body": "no sender"}},
				{"id": "m2", "from": "919800000002", "type": "interactive",
				 "interactive": {"type": "button_reply", "button_reply": {"id": "x", "title": "Cloud"}}},
				{"id": "m3", "from": "919800000003", "type": "text", "text": {"body": ""}}
			]}
		}]
	}`)

	msgs, errs := NewNormalizer(quietLogger()).NormalizeEntry(entry, testMeta)

	require.Len(t, msgs, 1)
	assert.Len(t, errs, 2)
	assert.Equal(t, "Button: Cloud", msgs[0].Text)
	assert.Equal(t, "919800000002", msgs[0].SessionKey)
}

func TestStatusEvents_DeliveryStatus(t *testing.T) {
	entry := entryWith(t, `{
		"id": "waba-1",
		"changes": [{
			"field": "messages",
			"value": {"statuses": [{
				"id": "wamid.1", "status": "delivered", "recipient_id": "919800000001",
				"conversation": {"id": "conv-1"},
				"pricing": {"billable": true, "pricing_model": "CBP", "category": "service"}
			}]}
		}]
	}`)
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	events := NewNormalizer(quietLogger()).StatusEvents(entry, StatusSource{
		NotificationID: "sns-1", AccountID: "123456789012", ReceivedAt: at,
	})

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "sns-1", ev.ID)
	assert.Equal(t, "2025-01-02", ev.EventDate)
	assert.Equal(t, "03:04:05", ev.EventTime)
	assert.Equal(t, "123456789012", ev.AccountID)
	assert.Equal(t, "delivered", ev.Status)
	assert.Equal(t, "919800000001", *ev.RecipientID)
	assert.Equal(t, "conv-1", *ev.ConversationID)
	assert.True(t, ev.Billable)
	assert.Equal(t, "CBP", *ev.PricingModel)
	assert.Equal(t, "service", *ev.PricingCategory)
	assert.Nil(t, ev.TemplateName)
}

func TestStatusEvents_TemplateUpdate(t *testing.T) {
	entry := entryWith(t, `{
		"id": "waba-1",
		"changes": [{
			"field": "message_template_status_update",
			"value": {"event": "APPROVED", "message_template_name": "course_catalog_v10", "message_template_language": "en"}
		}]
	}`)

	events := NewNormalizer(quietLogger()).StatusEvents(entry, StatusSource{})

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "waba-1", ev.ID)
	assert.Equal(t, "TEMPLATE_APPROVED", ev.Status)
	assert.Equal(t, "course_catalog_v10", *ev.TemplateName)
	assert.Equal(t, "en", *ev.TemplateLanguage)
	assert.Nil(t, ev.RecipientID)
	assert.False(t, ev.Billable)
	assert.NotEmpty(t, ev.EventDate)
}

func TestStatusEvents_MessagesOnlyEntryHasNone(t *testing.T) {
	entry := entryWith(t, `{"changes":[{"field":"messages","value":{"messages":[{"id":"m1","from":"91","type":"text","text":{"body":"hi"}}]}}]}`)

	assert.Empty(t, NewNormalizer(quietLogger()).StatusEvents(entry, StatusSource{}))
}
