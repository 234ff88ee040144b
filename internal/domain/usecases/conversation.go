package usecases

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/ports"
	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
)

// Apologies sent instead of an agent answer.
const (
	MsgNotConfigured   = "Sorry, the system is not properly configured. Please try again later."
	MsgProcessingError = "Sorry, I encountered an error processing your message. Please try again later."
)

// Message outcomes reported to the Recorder.
const (
	OutcomeReplied      = "replied"
	OutcomeApologized   = "apologized"
	OutcomeDuplicate    = "duplicate"
	OutcomeDropped      = "dropped"
	OutcomeSendFailed   = "send_failed"
	OutcomeUnconfigured = "unconfigured"
)

// AgentSettings identifies the agent that answers users.
type AgentSettings struct {
	AgentID      string
	AgentAliasID string
	EnableTrace  bool
}

// Configured reports whether both agent ids are set.
func (s AgentSettings) Configured() bool {
	return s.AgentID != "" && s.AgentAliasID != ""
}

// InboundEntry is one webhook entry with the routing data of its notification.
type InboundEntry struct {
	Entry    entities.WebhookEntry
	Metadata entities.ReplyMetadata
	Source   StatusSource
}

// BatchResult summarizes one processed webhook batch.
type BatchResult struct {
	Processed int `json:"processed"`
	Dropped   int `json:"dropped"`
	Statuses  int `json:"statuses"`
}

// Conversation carries inbound messages to the agent and its answers back to the user.
type Conversation struct {
	agent      ports.AgentInvoker
	sender     ports.ChannelSender
	normalizer *Normalizer
	renderer   *Renderer
	settings   AgentSettings
	policy     resilience.Policy
	workers    int

	deduper  ports.MessageDeduper
	archiver ports.StatusArchiver
	recorder ports.Recorder
	log      logrus.FieldLogger
}

// ConversationOption configures optional collaborators.
type ConversationOption func(*Conversation)

// WithDeduper skips messages whose id was already seen.
func WithDeduper(d ports.MessageDeduper) ConversationOption {
	return func(c *Conversation) { c.deduper = d }
}

// WithArchiver archives status events found in webhook entries.
func WithArchiver(a ports.StatusArchiver) ConversationOption {
	return func(c *Conversation) { c.archiver = a }
}

// WithRecorder reports message and status counters.
func WithRecorder(r ports.Recorder) ConversationOption {
	return func(c *Conversation) { c.recorder = r }
}

// WithWorkers processes up to n messages of a batch concurrently.
func WithWorkers(n int) ConversationOption {
	return func(c *Conversation) { c.workers = n }
}

// NewConversation creates a Conversation.
func NewConversation(
	agent ports.AgentInvoker,
	sender ports.ChannelSender,
	normalizer *Normalizer,
	renderer *Renderer,
	settings AgentSettings,
	policy resilience.Policy,
	log logrus.FieldLogger,
	opts ...ConversationOption,
) *Conversation {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Conversation{
		agent:      agent,
		sender:     sender,
		normalizer: normalizer,
		renderer:   renderer,
		settings:   settings,
		policy:     policy,
		workers:    1,
		recorder:   nopRecorder{},
		log:        log.WithField("component", "conversation"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers < 1 {
		c.workers = 1
	}
	return c
}

// ProcessBatch handles every entry of one webhook delivery. A failing
// message never affects the others.
func (c *Conversation) ProcessBatch(ctx context.Context, entries []InboundEntry) BatchResult {
	var (
		result BatchResult
		msgs   []entities.ChannelMessage
	)

	for _, in := range entries {
		result.Statuses += c.archiveStatuses(ctx, in)

		normalized, errs := c.normalizer.NormalizeEntry(in.Entry, in.Metadata)
		msgs = append(msgs, normalized...)
		result.Dropped += len(errs)
		for range errs {
			c.recorder.MessageHandled(OutcomeDropped)
		}
	}
	result.Processed = len(msgs)

	if c.workers == 1 || len(msgs) < 2 {
		for _, msg := range msgs {
			c.HandleMessage(ctx, msg)
		}
		return result
	}

	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, msg := range msgs {
		g.Go(func() error {
			c.HandleMessage(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// HandleMessage answers one user message. Failures are logged and
// turned into an apology when possible; nothing escapes.
func (c *Conversation) HandleMessage(ctx context.Context, msg entities.ChannelMessage) {
	log := c.log.WithFields(logrus.Fields{
		"message_id":  msg.MessageID,
		"session_key": msg.SessionKey,
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Message handler panicked")
			c.recorder.MessageHandled(OutcomeApologized)
			c.apologize(ctx, log, msg)
		}
	}()

	if c.deduper != nil && msg.MessageID != "" {
		first, err := c.deduper.FirstSeen(ctx, msg.MessageID)
		if err != nil {
			log.WithError(err).Warn("Dedupe check failed, processing anyway")
		} else if !first {
			log.Info("Skipping redelivered message")
			c.recorder.MessageHandled(OutcomeDuplicate)
			return
		}
	}

	if !c.settings.Configured() {
		log.Error("Agent ID or agent alias ID not configured")
		c.send(ctx, log, c.renderer.Text(msg, MsgNotConfigured), OutcomeUnconfigured)
		return
	}

	log.WithField("text", truncate(msg.Text, 120)).Info("Forwarding message to agent")
	reply, err := c.ask(ctx, msg)
	if err != nil {
		log.WithError(err).Error("Agent invocation failed")
		c.send(ctx, log, c.renderer.Text(msg, MsgProcessingError), OutcomeApologized)
		return
	}

	log.WithFields(logrus.Fields{
		"reply":      truncate(reply.RawText, 120),
		"structured": reply.Structured != nil,
	}).Info("Agent replied")
	c.send(ctx, log, c.renderer.Render(msg, reply), OutcomeReplied)
}

func (c *Conversation) ask(ctx context.Context, msg entities.ChannelMessage) (entities.AgentReply, error) {
	req := ports.AgentRequest{
		AgentID:      c.settings.AgentID,
		AgentAliasID: c.settings.AgentAliasID,
		SessionID:    msg.SessionKey,
		InputText:    msg.Text,
		EnableTrace:  c.settings.EnableTrace,
	}

	events, err := resilience.Execute(ctx, c.policy, "agent.invoke", func(ctx context.Context) (<-chan ports.AgentEvent, error) {
		return c.agent.Invoke(ctx, req)
	})
	if err != nil {
		return entities.AgentReply{}, err
	}
	return Interpret(ctx, events, c.log)
}

// apologize makes one best-effort attempt at the processing-error reply after a panic.
func (c *Conversation) apologize(ctx context.Context, log logrus.FieldLogger, msg entities.ChannelMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Apology reply panicked")
		}
	}()
	if err := c.sender.Send(ctx, c.renderer.Text(msg, MsgProcessingError)); err != nil {
		log.WithError(err).Error("Failed to send apology")
	}
}

func (c *Conversation) send(ctx context.Context, log logrus.FieldLogger, out entities.OutboundMessage, outcome string) {
	if err := c.sender.Send(ctx, out); err != nil {
		log.WithError(err).WithField("type", out.Type).Error("Failed to send reply")
		c.recorder.MessageHandled(OutcomeSendFailed)
		return
	}
	c.recorder.MessageHandled(outcome)
}

// archiveStatuses returns the number of status events found in the entry.
func (c *Conversation) archiveStatuses(ctx context.Context, in InboundEntry) int {
	events := c.normalizer.StatusEvents(in.Entry, in.Source)
	if c.archiver == nil {
		return len(events)
	}
	for _, ev := range events {
		err := c.archiver.Archive(ctx, ev)
		if err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"status":     ev.Status,
				"message_id": ev.ID,
			}).Error("Failed to archive status event")
		}
		c.recorder.StatusArchived(ev.Status, err == nil)
	}
	return len(events)
}

type nopRecorder struct{}

func (nopRecorder) MessageHandled(string)       {}
func (nopRecorder) StatusArchived(string, bool) {}
