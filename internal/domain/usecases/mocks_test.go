package usecases

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/ports"
	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// instantPolicy retries like the default policy without sleeping.
func instantPolicy() resilience.Policy {
	p := resilience.DefaultPolicy()
	p.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	p.Jitter = func() time.Duration { return 0 }
	return p
}

// mockEmbedder implements ports.EmbeddingService for testing
type mockEmbedder struct {
	embedFn func(text string) ([]float32, error)
	calls   []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls = append(m.calls, text)
	if m.embedFn != nil {
		return m.embedFn(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) Dimensions() int { return 3 }

// mockIndex implements ports.CourseIndex for testing
type mockIndex struct {
	courses  []entities.Course
	searchFn func(k int, filters []entities.Filter) ([]entities.Course, error)
	stored   []entities.Course
	storeErr error

	lastK       int
	lastFilters []entities.Filter
}

func (m *mockIndex) Search(ctx context.Context, vector []float32, k int, filters []entities.Filter) ([]entities.Course, error) {
	m.lastK, m.lastFilters = k, filters
	if m.searchFn != nil {
		return m.searchFn(k, filters)
	}
	out := append([]entities.Course(nil), m.courses...)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *mockIndex) Index(ctx context.Context, course entities.Course, vector []float32) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.stored = append(m.stored, course)
	return nil
}

// mockExtractor implements ports.TextExtractor, answering by prompt content.
type mockExtractor struct {
	answerFn func(prompt string) (string, error)
}

func (m *mockExtractor) Extract(ctx context.Context, prompt string) (string, error) {
	if m.answerFn != nil {
		return m.answerFn(prompt)
	}
	return "NONE", nil
}

// mockAgent implements ports.AgentInvoker by replaying events.
type mockAgent struct {
	events    []ports.AgentEvent
	invokeErr error

	mu       sync.Mutex
	requests []ports.AgentRequest
}

func (m *mockAgent) Invoke(ctx context.Context, req ports.AgentRequest) (<-chan ports.AgentEvent, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.invokeErr != nil {
		return nil, m.invokeErr
	}
	ch := make(chan ports.AgentEvent, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func textEvents(parts ...string) []ports.AgentEvent {
	events := make([]ports.AgentEvent, len(parts))
	for i, p := range parts {
		events[i] = ports.AgentEvent{Chunk: []byte(p)}
	}
	return events
}

// mockSender implements ports.ChannelSender for testing
type mockSender struct {
	err error

	mu   sync.Mutex
	sent []entities.OutboundMessage
}

func (m *mockSender) Send(ctx context.Context, msg entities.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *mockSender) messages() []entities.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.OutboundMessage(nil), m.sent...)
}

// mockDeduper implements ports.MessageDeduper in memory.
type mockDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (m *mockDeduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

// mockArchiver implements ports.StatusArchiver for testing
type mockArchiver struct {
	err      error
	archived []entities.StatusEvent
}

func (m *mockArchiver) Archive(ctx context.Context, ev entities.StatusEvent) error {
	m.archived = append(m.archived, ev)
	return m.err
}

// mockRecorder implements ports.Recorder for testing
type mockRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	statuses map[string]int
}

func (m *mockRecorder) MessageHandled(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[outcome]++
}

func (m *mockRecorder) StatusArchived(status string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses == nil {
		m.statuses = map[string]int{}
	}
	if ok {
		m.statuses[status]++
	}
}

type staticCatalog []entities.Card

func (c staticCatalog) Cards() []entities.Card { return c }
