// Package whatsapp sends replies through the WhatsApp Cloud API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
)

const (
	DefaultGraphURL    = "https://graph.facebook.com"
	DefaultAPIVersion  = "v20.0"
	DefaultRatePerSec  = 20.0
	messagingProduct   = "whatsapp"
	defaultSendTimeout = 15 * time.Second
)

// ErrNoPhoneNumberID is returned when neither the message nor the config names a sending number.
var ErrNoPhoneNumberID = errors.New("no origination phone number id")

// Config configures a Sender.
type Config struct {
	GraphURL      string
	APIVersion    string
	PhoneNumberID string // Used when the inbound message did not carry one
	AccessToken   string
	RatePerSecond float64
}

// Sender implements ports.ChannelSender.
type Sender struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	policy  resilience.Policy
	log     logrus.FieldLogger
}

// NewSender creates a sender. Sends are paced by a token bucket and retried under policy.
func NewSender(cfg Config, policy resilience.Policy, log logrus.FieldLogger) *Sender {
	if cfg.GraphURL == "" {
		cfg.GraphURL = DefaultGraphURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSec
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg.GraphURL = strings.TrimRight(cfg.GraphURL, "/")

	return &Sender{
		cfg:     cfg,
		client:  &http.Client{Timeout: defaultSendTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), int(cfg.RatePerSecond)+1),
		policy:  policy,
		log:     log.WithField("component", "whatsapp"),
	}
}

// Send delivers one rendered reply.
func (s *Sender) Send(ctx context.Context, msg entities.OutboundMessage) error {
	phoneNumberID := msg.ReplyMetadata.OriginationNumberID
	if phoneNumberID == "" {
		phoneNumberID = s.cfg.PhoneNumberID
	}
	if phoneNumberID == "" {
		return ErrNoPhoneNumberID
	}

	payload, err := buildPayload(msg)
	if err != nil {
		return err
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for send slot: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages", s.cfg.GraphURL, s.cfg.APIVersion, url.PathEscape(phoneNumberID))
	return resilience.Do(ctx, s.policy, "whatsapp.send", func(ctx context.Context) error {
		return s.post(ctx, endpoint, jsonData)
	})
}

func (s *Sender) post(ctx context.Context, endpoint string, jsonData []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling graph api: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		s.log.WithField("wamid", gjson.GetBytes(body, "messages.0.id").String()).Debug("Message accepted")
		return nil
	}

	message := gjson.GetBytes(body, "error.message").String()
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	code := ""
	// Graph API rate limit codes: app, account and pair rate limits.
	switch gjson.GetBytes(body, "error.code").Int() {
	case 4, 80007, 130429, 131056:
		code = "TooManyRequestsException"
	}
	return &resilience.StatusError{StatusCode: resp.StatusCode, Code: code, Message: message}
}
