package whatsapp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
)

func instantPolicy() resilience.Policy {
	p := resilience.DefaultPolicy()
	p.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	p.Jitter = func() time.Duration { return 0 }
	return p
}

func TestSender_TextMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v20.0/PN-1/messages", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "whatsapp", gjson.GetBytes(body, "messaging_product").String())
		assert.Equal(t, "individual", gjson.GetBytes(body, "recipient_type").String())
		assert.Equal(t, "wamid.IN", gjson.GetBytes(body, "context.message_id").String())
		assert.Equal(t, "+919800000001", gjson.GetBytes(body, "to").String())
		assert.Equal(t, "text", gjson.GetBytes(body, "type").String())
		assert.False(t, gjson.GetBytes(body, "text.preview_url").Bool())
		assert.True(t, gjson.GetBytes(body, "text.preview_url").Exists())
		assert.Equal(t, "Here are some courses", gjson.GetBytes(body, "text.body").String())

		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.OUT"}]}`))
	}))
	defer server.Close()

	sender := NewSender(Config{GraphURL: server.URL, AccessToken: "token-123"}, instantPolicy(), nil)
	err := sender.Send(context.Background(), entities.OutboundMessage{
		To:               "+919800000001",
		Type:             entities.OutboundText,
		ReplyToMessageID: "wamid.IN",
		Text:             "Here are some courses",
		ReplyMetadata:    entities.ReplyMetadata{OriginationNumberID: "PN-1"},
	})
	require.NoError(t, err)
}

func TestSender_CarouselTemplate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/PN-CFG/messages", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "template", gjson.GetBytes(body, "type").String())
		assert.False(t, gjson.GetBytes(body, "context").Exists())
		assert.Equal(t, "course_catalog_v10", gjson.GetBytes(body, "template.name").String())
		assert.Equal(t, "en", gjson.GetBytes(body, "template.language.code").String())
		assert.Equal(t, "Cloud Computing", gjson.GetBytes(body, "template.components.0.parameters.0.text").String())

		cards := gjson.GetBytes(body, "template.components.1.cards").Array()
		require.Len(t, cards, 2)
		second := cards[1]
		assert.Equal(t, int64(1), second.Get("card_index").Int())
		assert.Equal(t, "img-2", second.Get("components.0.parameters.0.image.id").String())
		assert.Equal(t, "Data Science", second.Get("components.1.parameters.0.text").String())
		assert.Equal(t, "quick_reply", second.Get("components.2.sub_type").String())
		assert.Equal(t, "0", second.Get("components.2.index").String())
		assert.Equal(t, "Show me some Data Science courses", second.Get("components.2.parameters.0.text").String())
	}))
	defer server.Close()

	sender := NewSender(Config{GraphURL: server.URL, APIVersion: "v21.0", PhoneNumberID: "PN-CFG"}, instantPolicy(), nil)
	err := sender.Send(context.Background(), entities.OutboundMessage{
		To:   "+919800000001",
		Type: entities.OutboundTemplate,
		Template: &entities.Template{
			Name:           "course_catalog_v10",
			LanguageCode:   "en",
			BodyParameters: []string{"Cloud Computing"},
			Cards: []entities.Card{
				{Index: 0, Title: "Programming", HeaderImageID: "img-1", ButtonText: "Show me some Programming courses"},
				{Index: 1, Title: "Data Science", HeaderImageID: "img-2", ButtonText: "Show me some Data Science courses"},
			},
		},
	})
	require.NoError(t, err)
}

func TestSender_RetriesRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Rate limit hit","code":130429}}`))
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.OUT"}]}`))
	}))
	defer server.Close()

	sender := NewSender(Config{GraphURL: server.URL, PhoneNumberID: "PN"}, instantPolicy(), nil)
	err := sender.Send(context.Background(), entities.OutboundMessage{To: "+1", Type: entities.OutboundText, Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSender_FatalErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","code":190}}`))
	}))
	defer server.Close()

	sender := NewSender(Config{GraphURL: server.URL, PhoneNumberID: "PN"}, instantPolicy(), nil)
	err := sender.Send(context.Background(), entities.OutboundMessage{To: "+1", Type: entities.OutboundText, Text: "hi"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrFatalDependency))
	var statusErr *resilience.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "Invalid OAuth access token", statusErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSender_RequiresPhoneNumberID(t *testing.T) {
	sender := NewSender(Config{}, instantPolicy(), nil)
	err := sender.Send(context.Background(), entities.OutboundMessage{To: "+1", Type: entities.OutboundText})
	assert.ErrorIs(t, err, ErrNoPhoneNumberID)
}

func TestBuildPayload_RejectsTemplateWithoutBody(t *testing.T) {
	_, err := buildPayload(entities.OutboundMessage{To: "+1", Type: entities.OutboundTemplate})
	assert.Error(t, err)

	_, err = buildPayload(entities.OutboundMessage{To: "+1", Type: "sticker"})
	assert.Error(t, err)
}
