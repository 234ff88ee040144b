// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
)

// EmbeddingService turns text into a fixed-length vector.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions is the fixed length of the vectors Embed returns.
	Dimensions() int
}

// CourseIndex is the vector index holding course records.
type CourseIndex interface {
	// Search returns up to k courses nearest to vector that match every filter,
	// most relevant first, with Course.Score set.
	Search(ctx context.Context, vector []float32, k int, filters []entities.Filter) ([]entities.Course, error)

	// Index stores a course under its embedding, replacing any record with the same ID.
	Index(ctx context.Context, course entities.Course, vector []float32) error
}

// TextExtractor runs a short single-turn completion, used to pull
// criteria like subject or level out of free text.
type TextExtractor interface {
	Extract(ctx context.Context, prompt string) (string, error)
}

// AgentRequest starts one agent turn.
type AgentRequest struct {
	AgentID      string `json:"agentId"`
	AgentAliasID string `json:"agentAliasId"`
	SessionID    string `json:"sessionId"`
	InputText    string `json:"inputText"`
	EnableTrace  bool   `json:"enableTrace"`
}

// AgentEvent is one event of the agent's answer stream.
// Exactly one of Chunk, Trace or Err is set.
type AgentEvent struct {
	Chunk []byte
	Trace map[string]any
	Err   error
}

// AgentInvoker sends user text to the conversational agent.
type AgentInvoker interface {
	// Invoke returns the agent's answer as an ordered event stream.
	// The channel is closed when the answer is complete.
	Invoke(ctx context.Context, req AgentRequest) (<-chan AgentEvent, error)
}

// ChannelSender delivers rendered replies on the messaging channel.
type ChannelSender interface {
	Send(ctx context.Context, msg entities.OutboundMessage) error
}

// StatusArchiver persists delivery and template status events.
type StatusArchiver interface {
	Archive(ctx context.Context, event entities.StatusEvent) error
}

// MessageDeduper remembers inbound message ids.
type MessageDeduper interface {
	// FirstSeen records id and reports whether it had not been seen before.
	FirstSeen(ctx context.Context, id string) (bool, error)
}

// CarouselCatalog supplies the cards of the course catalog carousel.
type CarouselCatalog interface {
	Cards() []entities.Card
}

// Recorder receives counters about processed traffic.
type Recorder interface {
	// MessageHandled counts one inbound message by outcome.
	MessageHandled(outcome string)
	// StatusArchived counts one status event by status and archive result.
	StatusArchived(status string, ok bool)
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
