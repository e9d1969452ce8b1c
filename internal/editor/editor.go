// Package editor owns the lifecycle of the embedded rich-text editor widget:
// bounded-retry attachment polling, one-time content injection, debounced
// change propagation, and teardown.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/evdealer/contractedit/internal/placeholder"
)

var (
	// ErrInitTimeout means the container never attached within the polling
	// budget. The session must be closed and reopened; the manager will not
	// retry on its own.
	ErrInitTimeout = errors.New("editor container never attached")

	// ErrNotReady means no live widget is available to serve the request.
	ErrNotReady = errors.New("editor is not ready")

	// ErrClosed means the manager was closed while the attachment flow was
	// still running; the attempt's result has been discarded.
	ErrClosed = errors.New("editor closed during attachment")
)

// State is the lifecycle state of the Manager.
type State int

const (
	StateUninitialized State = iota
	StatePolling
	StateReady
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePolling:
		return "polling"
	case StateReady:
		return "ready"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Options tune the polling and debounce behaviour. Zero values fall back to
// the defaults below.
type Options struct {
	PollInterval time.Duration // delay between attachment checks
	PollAttempts int           // checks before giving up
	Debounce     time.Duration // quiet window before change propagation
}

const (
	defaultPollInterval = 150 * time.Millisecond
	defaultPollAttempts = 15
	defaultDebounce     = 300 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.PollAttempts <= 0 {
		o.PollAttempts = defaultPollAttempts
	}
	if o.Debounce <= 0 {
		o.Debounce = defaultDebounce
	}
	return o
}

// Manager drives one editor widget per open. It constructs the widget once
// the container attaches, injects content exactly once per Ready transition,
// and forwards user edits (decoded back to raw placeholder tokens) through
// onContent after a debounce window.
type Manager struct {
	opts      Options
	onContent func(raw string)

	mu        sync.Mutex
	gen       int // bumped on Close; an Open holding an older gen discards its result
	state     State
	widget    Widget
	injected  bool
	injecting bool
	initErr   error
	debounce  *time.Timer
}

// New creates a Manager. onContent receives the debounced, raw (decoded)
// body after user edits; it may be nil.
func New(onContent func(raw string), opts Options) *Manager {
	return &Manager{
		opts:      opts.withDefaults(),
		onContent: onContent,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Open polls c until it reports attached, builds the widget via f, disables
// native spell checking and injects body (placeholder-decorated) exactly
// once. It blocks for the duration of the polling loop; ctx cancellation
// tears the attempt down. After a polling failure the manager stays failed
// until Close.
func (m *Manager) Open(ctx context.Context, c Container, f Factory, body string) error {
	m.mu.Lock()
	switch {
	case m.initErr != nil:
		err := m.initErr
		m.mu.Unlock()
		return err
	case m.state == StatePolling || m.state == StateReady:
		m.mu.Unlock()
		return fmt.Errorf("editor already open (state %s)", m.state)
	}
	m.state = StatePolling
	gen := m.gen
	m.mu.Unlock()

	attached := false
	for attempt := 0; attempt < m.opts.PollAttempts; attempt++ {
		if c.Attached() {
			attached = true
			break
		}
		select {
		case <-ctx.Done():
			m.mu.Lock()
			if m.gen == gen {
				m.state = StateDestroyed
			}
			m.mu.Unlock()
			return ctx.Err()
		case <-time.After(m.opts.PollInterval):
		}
	}

	// Close may have intervened while polling; its teardown wins and this
	// attempt's outcome is discarded.
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return ErrClosed
	}
	if !attached {
		m.initErr = ErrInitTimeout
		m.mu.Unlock()
		return ErrInitTimeout
	}
	m.mu.Unlock()

	w, err := f.New(c)
	if err != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.gen != gen {
			return ErrClosed
		}
		m.initErr = fmt.Errorf("creating editor widget: %w", err)
		return m.initErr
	}
	w.DisableSpellcheck()

	// Injection runs outside the lock: widgets may fire change events
	// synchronously from SetHTML, and those must reach HandleChange's
	// suppression check instead of deadlocking.
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		w.Destroy()
		return ErrClosed
	}
	inject := !m.injected
	m.injecting = inject
	m.mu.Unlock()

	if inject {
		setErr := w.SetHTML(placeholder.ToEditable(body))
		m.mu.Lock()
		m.injecting = false
		if m.gen != gen {
			m.mu.Unlock()
			w.Destroy()
			return ErrClosed
		}
		if setErr != nil {
			m.initErr = fmt.Errorf("injecting content: %w", setErr)
			err = m.initErr
			m.mu.Unlock()
			w.Destroy()
			return err
		}
		m.injected = true
		m.mu.Unlock()
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		w.Destroy()
		return ErrClosed
	}
	m.widget = w
	m.state = StateReady
	m.mu.Unlock()
	return nil
}

// HandleChange receives a change event from the widget transport. Events
// fired while content is being injected programmatically are dropped so a
// fresh load never marks the session dirty. The decoded content is forwarded
// to onContent after the debounce window, with later events superseding
// earlier ones.
func (m *Manager) HandleChange(editorHTML string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateReady || m.injecting {
		return
	}

	if m.debounce != nil {
		m.debounce.Stop()
	}
	raw := placeholder.ToRaw(editorHTML)
	m.debounce = time.AfterFunc(m.opts.Debounce, func() {
		m.mu.Lock()
		ready := m.state == StateReady
		m.mu.Unlock()
		// The manager may have been torn down while the timer was pending.
		if ready && m.onContent != nil {
			m.onContent(raw)
		}
	})
}

// LiveContent reads the widget's current HTML and decodes it to the raw
// body. It fails with ErrNotReady when no live widget exists; callers decide
// whether a fallback read is acceptable.
func (m *Manager) LiveContent() (string, error) {
	m.mu.Lock()
	w := m.widget
	ready := m.state == StateReady
	m.mu.Unlock()

	if !ready || w == nil {
		return "", ErrNotReady
	}
	h, err := w.HTML()
	if err != nil {
		return "", fmt.Errorf("reading editor content: %w", err)
	}
	return placeholder.ToRaw(h), nil
}

// SetContent replaces the widget content programmatically, e.g. when the
// session resets to its baseline. Change events raised by the replacement
// are suppressed.
func (m *Manager) SetContent(body string) error {
	m.mu.Lock()
	if m.state != StateReady || m.widget == nil {
		m.mu.Unlock()
		return ErrNotReady
	}
	w := m.widget
	m.injecting = true
	m.mu.Unlock()

	err := w.SetHTML(placeholder.ToEditable(body))

	m.mu.Lock()
	m.injecting = false
	m.mu.Unlock()

	if err != nil {
		return fmt.Errorf("replacing editor content: %w", err)
	}
	return nil
}

// Close destroys the widget and resets the manager so a subsequent Open
// starts clean: the injected flag, any pending debounce and a recorded init
// failure are all cleared.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.debounce != nil {
		m.debounce.Stop()
		m.debounce = nil
	}
	if m.widget != nil {
		m.widget.Destroy()
		m.widget = nil
	}
	m.injected = false
	m.initErr = nil
	m.gen++
	m.state = StateUninitialized
}
