package chat

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/api"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

// MetaEvent opens every turn.
type MetaEvent struct {
	ConversationID string               `json:"conversationId"`
	IntentType     types.IntentType     `json:"intentType"`
	PlanningMode   bool                 `json:"planningMode"`
	PlanningState  *types.PlanningState `json:"planningState,omitempty"`
}

type Delta struct {
	Content string `json:"content"`
}

type Choice struct {
	Delta Delta `json:"delta"`
}

// ChunkEvent carries one model chunk in the OpenAI delta shape.
type ChunkEvent struct {
	Choices       []Choice             `json:"choices"`
	PlanningState *types.PlanningState `json:"planningState,omitempty"`
}

func NewChunkEvent(content string, state *types.PlanningState) ChunkEvent {
	return ChunkEvent{Choices: []Choice{{Delta: Delta{Content: content}}}, PlanningState: state}
}

type ErrorEvent struct {
	Error string `json:"error"`
}

// EventWriter receives the events of one turn. Done is called exactly once, last.
type EventWriter interface {
	WriteEvent(payload any) error
	Done() error
}

type SSEWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func NewSSEWriter(w io.Writer, flusher http.Flusher) *SSEWriter {
	return &SSEWriter{w: w, flusher: flusher}
}

func (s *SSEWriter) WriteEvent(payload any) error {
	return api.WriteSSEData(s.w, s.flusher, payload)
}

func (s *SSEWriter) Done() error {
	return api.WriteSSEDone(s.w, s.flusher)
}

// BufferWriter collects a turn in memory for channels that cannot stream.
type BufferWriter struct {
	mu     sync.Mutex
	events []any
	text   strings.Builder
	done   bool
}

func NewBufferWriter() *BufferWriter {
	return &BufferWriter{}
}

func (b *BufferWriter) WriteEvent(payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, payload)
	if ev, ok := payload.(ChunkEvent); ok {
		for _, c := range ev.Choices {
			b.text.WriteString(c.Delta.Content)
		}
	}
	return nil
}

func (b *BufferWriter) Done() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
	return nil
}

func (b *BufferWriter) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text.String()
}

func (b *BufferWriter) Events() []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]any(nil), b.events...)
}

func (b *BufferWriter) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}
