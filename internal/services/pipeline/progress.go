package pipeline

import (
	"sync"
	"time"
)

// Stage identifies which pipeline step an event belongs to.
type Stage string

const (
	StageFetch      Stage = "fetch"
	StageTranscript Stage = "transcript"
	StageDownload   Stage = "download"
	StageTranscribe Stage = "transcribe"
	StageSummarize  Stage = "summarize"
	StageEpisode    Stage = "episode"
)

// State is the lifecycle position of a stage for one episode.
type State string

const (
	StateStarted   State = "started"
	StateCached    State = "cached"
	StateRetrying  State = "retrying"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Event is one progress observation. Attempt is set on retries; Error
// carries the failure message on failed states.
type Event struct {
	Stage   Stage     `json:"stage"`
	Podcast string    `json:"podcast"`
	Title   string    `json:"title"`
	State   State     `json:"state"`
	Attempt int       `json:"attempt,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// ProgressFunc receives pipeline events as they happen. Callbacks run on
// worker goroutines and must not block.
type ProgressFunc func(Event)

// maxBufferedEvents bounds the broker; a 50-episode full run emits a few
// hundred events, so the tail of a large run stays visible.
const maxBufferedEvents = 256

// Broker retains the most recent pipeline events so pollers (the run
// events endpoint) can catch up without a live subscription.
type Broker struct {
	mu     sync.Mutex
	events []Event
}

func NewBroker() *Broker {
	return &Broker{events: make([]Event, 0, 64)}
}

// Publish appends an event, evicting the oldest beyond the buffer cap.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) >= maxBufferedEvents {
		copy(b.events, b.events[1:])
		b.events = b.events[:len(b.events)-1]
	}
	b.events = append(b.events, ev)
}

// Snapshot returns a copy of the buffered events, oldest first.
func (b *Broker) Snapshot() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Reset clears the buffer at the start of a new run.
func (b *Broker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = b.events[:0]
}
