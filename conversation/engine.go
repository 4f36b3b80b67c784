// Package conversation runs guided multi-step dialogs. Every (chat, user) pair
// has at most one active session; each inbound event is dispatched to the
// handler registered for the session's current state.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.skobk.in/skobkin/telegram-report-relay-bot/chat"
)

type FlowID string

type State string

// Key identifies the owner of a session
type Key struct {
	ChatID int64
	UserID int64
}

func KeyOf(ev *chat.Event) Key {
	return Key{ChatID: ev.ChatID, UserID: ev.UserID}
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.ChatID, k.UserID)
}

// Session is the register entry of one active dialog.
// Scratch belongs to the flow that owns the session.
type Session struct {
	Key       Key
	Flow      FlowID
	State     State
	Scratch   any
	StartedAt time.Time
	UpdatedAt time.Time
}

// Result tells the engine what to do with the session after a handler ran
type Result struct {
	next State
	stay bool
	end  bool
}

// Next moves the session to state
func Next(state State) Result {
	return Result{next: state}
}

// Stay keeps the session in its current state
func Stay() Result {
	return Result{stay: true}
}

// End terminates the session and drops its scratch data
func End() Result {
	return Result{end: true}
}

func (r Result) Ended() bool {
	return r.end
}

type Matcher func(ev *chat.Event) bool

type Handler func(ctx context.Context, ev *chat.Event, s *Session) (Result, error)

// Transition binds a handler to the events its matcher accepts
type Transition struct {
	Match  Matcher
	Handle Handler
}

// Flow is one state machine. Entries start a new session, States continue one.
type Flow struct {
	ID      FlowID
	Entries []Transition
	States  map[State][]Transition
	// Otherwise handles events no transition of the current state accepts.
	// When nil such events are ignored and the session stays where it is.
	Otherwise Handler
}

// Hook is called for engine level events that do not belong to a flow
type Hook func(ctx context.Context, ev *chat.Event, active *Session) error

type Options struct {
	// Cancel matches events that abort any active session
	Cancel Matcher
	// OnCancel runs after a cancel event, active is nil when there was no session
	OnCancel Hook
	// OnBusy runs when an entry point is hit while another session is active
	OnBusy Hook
	// IdleTimeout drops sessions untouched for longer than this, zero keeps them forever
	IdleTimeout time.Duration
	Now         func() time.Time
}

// Engine holds the session register. Handle must not be called concurrently
// for the same key; callers serialize events per key.
type Engine struct {
	mu       sync.Mutex
	flows    []*Flow
	byID     map[FlowID]*Flow
	sessions map[Key]*Session
	opts     Options
}

// NewEngine creates an engine evaluating flow entry points in the given order
func NewEngine(opts Options, flows ...*Flow) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	byID := make(map[FlowID]*Flow, len(flows))
	for _, f := range flows {
		if _, dup := byID[f.ID]; dup {
			panic(fmt.Sprintf("conversation: duplicate flow %q", f.ID))
		}
		byID[f.ID] = f
	}

	return &Engine{
		flows:    flows,
		byID:     byID,
		sessions: make(map[Key]*Session),
		opts:     opts,
	}
}

// Handle dispatches ev. It returns false when no session is active and no
// entry point accepted the event.
func (e *Engine) Handle(ctx context.Context, ev *chat.Event) (bool, error) {
	key := KeyOf(ev)
	active := e.lookup(key)

	if e.opts.Cancel != nil && e.opts.Cancel(ev) {
		if active != nil {
			e.drop(key)
			slog.Info("conversation: Session cancelled", "key", key.String(),
				"flow", active.Flow, "state", active.State)
		}
		if e.opts.OnCancel != nil {
			return true, e.opts.OnCancel(ctx, ev, active)
		}
		return true, nil
	}

	if active != nil {
		return true, e.continueSession(ctx, ev, active)
	}

	for _, f := range e.flows {
		for _, tr := range f.Entries {
			if !tr.Match(ev) {
				continue
			}
			return true, e.start(ctx, ev, f, tr)
		}
	}

	return false, nil
}

func (e *Engine) continueSession(ctx context.Context, ev *chat.Event, s *Session) error {
	f, ok := e.byID[s.Flow]
	if !ok {
		slog.Error("conversation: Session of unknown flow dropped", "key", s.Key.String(), "flow", s.Flow)
		e.drop(s.Key)
		return nil
	}

	for _, tr := range f.States[s.State] {
		if tr.Match(ev) {
			return e.run(ctx, ev, s, tr.Handle)
		}
	}

	if e.matchesEntry(ev) {
		slog.Debug("conversation: Entry point rejected, session active", "key", s.Key.String(), "flow", s.Flow)
		if e.opts.OnBusy != nil {
			return e.opts.OnBusy(ctx, ev, s)
		}
		return nil
	}

	if f.Otherwise != nil {
		return e.run(ctx, ev, s, f.Otherwise)
	}

	return nil
}

func (e *Engine) start(ctx context.Context, ev *chat.Event, f *Flow, tr Transition) error {
	now := e.opts.Now()
	s := &Session{
		Key:       KeyOf(ev),
		Flow:      f.ID,
		StartedAt: now,
		UpdatedAt: now,
	}

	res, err := tr.Handle(ctx, ev, s)
	if err != nil {
		return err
	}
	if res.end || res.stay {
		// Entry points that finish at once never occupy the register
		return nil
	}

	s.State = res.next
	e.mu.Lock()
	e.sessions[s.Key] = s
	e.mu.Unlock()

	slog.Debug("conversation: Session started", "key", s.Key.String(), "flow", f.ID, "state", s.State)
	return nil
}

func (e *Engine) run(ctx context.Context, ev *chat.Event, s *Session, h Handler) error {
	res, err := h(ctx, ev, s)
	if err != nil {
		return err
	}

	if res.end {
		e.drop(s.Key)
		slog.Debug("conversation: Session finished", "key", s.Key.String(), "flow", s.Flow)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// A session dropped by the handler itself stays dropped
	if e.sessions[s.Key] != s {
		return nil
	}
	if !res.stay {
		s.State = res.next
	}
	s.UpdatedAt = e.opts.Now()

	return nil
}

func (e *Engine) matchesEntry(ev *chat.Event) bool {
	for _, f := range e.flows {
		for _, tr := range f.Entries {
			if tr.Match(ev) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) lookup(key Key) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[key]
	if !ok {
		return nil
	}

	if e.opts.IdleTimeout > 0 && e.opts.Now().Sub(s.UpdatedAt) > e.opts.IdleTimeout {
		delete(e.sessions, key)
		slog.Info("conversation: Idle session expired", "key", key.String(), "flow", s.Flow, "state", s.State)
		return nil
	}

	return s
}

func (e *Engine) drop(key Key) {
	e.mu.Lock()
	delete(e.sessions, key)
	e.mu.Unlock()
}

// Active returns a copy of the session registered for key
func (e *Engine) Active(key Key) (Session, bool) {
	s := e.lookup(key)
	if s == nil {
		return Session{}, false
	}
	return *s, true
}

// Len returns the number of registered sessions
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}
