package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/usecases"
)

// ErrMalformedWebhook is returned for bodies that are neither SNS notifications nor Meta webhooks.
var ErrMalformedWebhook = errors.New("malformed webhook payload")

// ParseWebhook accepts either an SNS notification batch wrapping WhatsApp webhook
// entries or a direct Meta webhook payload. Records that cannot be decoded are
// returned in skipped; they never fail the batch.
func ParseWebhook(body []byte) (entries []usecases.InboundEntry, skipped []error, err error) {
	if !gjson.ValidBytes(body) {
		return nil, nil, ErrMalformedWebhook
	}
	root := gjson.ParseBytes(body)

	switch {
	case root.Get("Records").IsArray():
		for i, rec := range root.Get("Records").Array() {
			entry, err := parseSNSRecord(rec)
			if err != nil {
				skipped = append(skipped, fmt.Errorf("record %d: %w", i, err))
				continue
			}
			entries = append(entries, entry)
		}
		return entries, skipped, nil

	case root.Get("entry").IsArray():
		var payload entities.WebhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrMalformedWebhook, err)
		}
		for i, entry := range payload.Entry {
			phoneID := root.Get(fmt.Sprintf("entry.%d.changes.0.value.metadata.phone_number_id", i)).String()
			entries = append(entries, usecases.InboundEntry{
				Entry:    entry,
				Metadata: entities.ReplyMetadata{OriginationNumberID: phoneID},
			})
		}
		return entries, nil, nil
	}

	return nil, nil, ErrMalformedWebhook
}

func parseSNSRecord(rec gjson.Result) (usecases.InboundEntry, error) {
	sns := rec.Get("Sns")
	message := sns.Get("Message").String()
	if !gjson.Valid(message) {
		return usecases.InboundEntry{}, errors.New("sns message is not JSON")
	}
	msg := gjson.Parse(message)

	rawEntry := msg.Get("whatsAppWebhookEntry").String()
	if rawEntry == "" {
		return usecases.InboundEntry{}, errors.New("no whatsAppWebhookEntry")
	}
	var entry entities.WebhookEntry
	if err := json.Unmarshal([]byte(rawEntry), &entry); err != nil {
		return usecases.InboundEntry{}, fmt.Errorf("decoding whatsAppWebhookEntry: %w", err)
	}

	phone := msg.Get("context.MetaPhoneNumberIds.0")
	receivedAt, _ := time.Parse(time.RFC3339Nano, sns.Get("Timestamp").String())

	return usecases.InboundEntry{
		Entry: entry,
		Metadata: entities.ReplyMetadata{
			OriginationNumberID:  phone.Get("metaPhoneNumberId").String(),
			OriginationNumberARN: phone.Get("arn").String(),
		},
		Source: usecases.StatusSource{
			NotificationID: sns.Get("MessageId").String(),
			AccountID:      msg.Get("aws_account_id").String(),
			ReceivedAt:     receivedAt,
		},
	}, nil
}
