package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Sink receives built events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Tracker builds events and fans them out to its sinks. Sink failures are
// logged and never surface to callers.
type Tracker struct {
	sinks        []Sink
	nowFn        func() time.Time
	newSessionID func() string
}

// NewTracker constructs a Tracker writing to sinks.
func NewTracker(sinks ...Sink) *Tracker {
	filtered := make([]Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}
	return &Tracker{
		sinks:        filtered,
		nowFn:        time.Now,
		newSessionID: func() string { return "session-" + uuid.NewString() },
	}
}

// Build assembles an event with session, phase and source defaults.
func (t *Tracker) Build(name string, props Properties, evCtx *Context) Event {
	if props == nil {
		props = Properties{}
	}
	source := SourceServer
	sessionID := ""
	if evCtx != nil {
		if evCtx.Source != "" {
			source = evCtx.Source
		}
		sessionID = evCtx.SessionID
	}
	if sessionID == "" {
		sessionID = t.newSessionID()
	}
	return Event{
		Name:       name,
		UserID:     resolveUserID(props, evCtx),
		SessionID:  sessionID,
		Timestamp:  t.nowFn().UTC(),
		Source:     source,
		Phase:      Phase,
		Properties: props,
	}
}

// Track builds and dispatches a server event.
func (t *Tracker) Track(ctx context.Context, name string, props Properties) {
	t.TrackWithContext(ctx, name, props, nil)
}

// TrackWithContext builds and dispatches an event using evCtx overrides.
func (t *Tracker) TrackWithContext(ctx context.Context, name string, props Properties, evCtx *Context) {
	if t == nil {
		return
	}
	event := t.Build(name, props, evCtx)
	for _, sink := range t.sinks {
		t.dispatch(ctx, sink, event)
	}
}

func (t *Tracker) dispatch(ctx context.Context, sink Sink, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("event", event.Name).Warnf("analytics: sink panicked: %v", r)
		}
	}()
	if errWrite := sink.Write(ctx, event); errWrite != nil {
		log.WithError(errWrite).WithField("event", event.Name).Warn("analytics: sink write failed")
	}
}
