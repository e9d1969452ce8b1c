// Package session owns one editing session per dialog open: the load →
// edit → (save | reset | close) flow, the dirty flag, and the teardown
// guards that keep late asynchronous results from leaking into the next
// session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/evdealer/contractedit/internal/editor"
	"github.com/evdealer/contractedit/internal/gateway"
	"github.com/evdealer/contractedit/internal/htmldoc"
)

var (
	// ErrStaleContent means the live editor content could not be read while
	// unsaved changes exist. Saving the last known body instead could
	// silently drop the user's most recent edits, so the save is refused.
	ErrStaleContent = errors.New("live editor content unavailable while changes are unsaved")

	// ErrNoChanges means save was requested with nothing to save.
	ErrNoChanges = errors.New("no unsaved changes")

	// ErrNotLoaded means the session has no template content yet.
	ErrNotLoaded = errors.New("template not loaded")

	// ErrClosed means the session was torn down while the operation was in
	// flight; its result has been discarded.
	ErrClosed = errors.New("session closed")
)

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateClean
	StateDirty
	StateSaving
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Gateway is the slice of the persistence gateway the session needs.
type Gateway interface {
	Load(ctx context.Context, templateID string) (*gateway.Template, error)
	Save(ctx context.Context, req gateway.SaveRequest) (*gateway.SaveResult, error)
}

// Confirmer answers the destructive-action prompts the session raises
// (discarding unsaved changes on reset or close).
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Session is the ephemeral state of one open editing dialog.
type Session struct {
	id         string
	templateID string
	gw         Gateway
	confirm    Confirmer
	editor     *editor.Manager

	mu           sync.Mutex
	gen          int // bumped on teardown; in-flight results with an older gen are dropped
	editGen      int // bumped on every edit; a save snapshots it to spot edits landing mid-flight
	state        State
	name         string
	structure    htmldoc.Structure
	content      string
	baseline     string
	dirty        bool
	loaded       bool
	fallbackLive bool // content was updated through the raw-HTML fallback
	lastSave     *gateway.SaveResult
}

// New creates a Session for templateID. Edits flowing out of the editor
// manager are applied to the session after the manager's debounce window.
func New(templateID string, gw Gateway, confirm Confirmer, editorOpts editor.Options) *Session {
	s := &Session{
		id:         uuid.New().String(),
		templateID: templateID,
		gw:         gw,
		confirm:    confirm,
		state:      StateIdle,
	}
	s.editor = editor.New(func(raw string) { s.applyEdit(raw, false) }, editorOpts)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// TemplateID returns the template this session edits.
func (s *Session) TemplateID() string { return s.templateID }

// Editor returns the editor lifecycle manager owned by this session.
func (s *Session) Editor() *editor.Manager { return s.editor }

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dirty reports whether unsaved changes exist.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Name returns the template name reported by the backend.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Content returns the current (possibly unsaved) raw body.
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// LastSave returns the result of the most recent successful save, or nil.
func (s *Session) LastSave() *gateway.SaveResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSave
}

// Load fetches and decomposes the template document. The fetched body
// becomes both the working content and the clean baseline. Load runs at most
// once per session; a fetch failure returns the session to idle so the user
// can retry explicitly.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return fmt.Errorf("template %s already loaded", s.templateID)
	}
	if s.state != StateIdle {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot load in state %s", st)
	}
	s.state = StateLoading
	gen := s.gen
	s.mu.Unlock()

	tpl, err := s.gw.Load(ctx, s.templateID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrClosed
	}
	if err != nil {
		s.state = StateIdle
		return fmt.Errorf("loading template: %w", err)
	}

	s.structure = htmldoc.Parse(tpl.HTML)
	s.name = tpl.Name
	s.baseline = s.structure.Body
	s.content = s.structure.Body
	s.dirty = false
	s.fallbackLive = false
	s.loaded = true
	s.state = StateClean
	return nil
}

// AttachEditor mounts the editor widget for this session: it runs the
// manager's attachment polling and injects the loaded body. Load must have
// completed first, so injection is never attempted before content exists.
func (s *Session) AttachEditor(ctx context.Context, c editor.Container, f editor.Factory) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	body := s.content
	s.mu.Unlock()

	return s.editor.Open(ctx, c, f, body)
}

// UpdateContent applies an edit made through the raw-HTML fallback textarea.
func (s *Session) UpdateContent(raw string) error {
	s.mu.Lock()
	loaded := s.loaded
	closed := s.state == StateClosed
	s.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !loaded {
		return ErrNotLoaded
	}
	s.applyEdit(raw, true)
	return nil
}

// applyEdit records a user edit. Edits arriving after teardown are dropped.
func (s *Session) applyEdit(raw string, viaFallback bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded || s.state == StateClosed {
		return
	}
	s.content = raw
	s.dirty = true
	s.editGen++
	if viaFallback {
		s.fallbackLive = true
	}
	if s.state == StateClean {
		s.state = StateDirty
	}
}

// Save submits the current content through the gateway. It reads the live
// editor content first; when the editor cannot answer, the raw-HTML fallback
// content is used if the user edited through it. If neither source can vouch
// for the latest keystrokes, the save is refused with ErrStaleContent before
// any network call.
func (s *Session) Save(ctx context.Context) (*gateway.SaveResult, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return nil, ErrNotLoaded
	}
	if s.state == StateSaving {
		s.mu.Unlock()
		return nil, fmt.Errorf("save already in progress")
	}
	if !s.dirty {
		s.mu.Unlock()
		return nil, ErrNoChanges
	}
	s.mu.Unlock()

	var body string
	live, err := s.editor.LiveContent()

	s.mu.Lock()
	switch {
	case err == nil:
		body = live
		s.content = live
	case s.fallbackLive:
		body = s.content
	default:
		s.mu.Unlock()
		return nil, ErrStaleContent
	}
	s.state = StateSaving
	gen := s.gen
	editGen := s.editGen
	req := gateway.SaveRequest{
		TemplateID: s.templateID,
		Subject:    s.name,
		Body:       body,
		Structure:  s.structure,
	}
	s.mu.Unlock()

	res, saveErr := s.gw.Save(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil, ErrClosed
	}
	if saveErr != nil {
		s.state = StateDirty
		return nil, fmt.Errorf("saving template: %w", saveErr)
	}

	s.baseline = body
	s.lastSave = res
	if s.editGen != editGen {
		// An edit landed while the save was on the wire. The persisted body
		// becomes the new baseline, but the newer content stays dirty.
		if s.dirty {
			s.state = StateDirty
		} else {
			s.state = StateClean
		}
		return res, nil
	}
	s.content = body
	s.dirty = false
	s.fallbackLive = false
	s.state = StateClean
	return res, nil
}

// Reset discards unsaved changes and restores the baseline, after the user
// confirms the irreversible loss. It reports whether the revert happened.
func (s *Session) Reset(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return false, ErrNotLoaded
	}
	if !s.dirty {
		s.mu.Unlock()
		return false, nil
	}
	gen := s.gen
	s.mu.Unlock()

	ok, err := s.confirm.Confirm(ctx, "Discard all unsaved changes? This cannot be undone.")
	if err != nil {
		return false, fmt.Errorf("confirming reset: %w", err)
	}
	if !ok {
		return false, nil
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false, ErrClosed
	}
	baseline := s.baseline
	s.content = baseline
	s.editGen++
	s.dirty = false
	s.fallbackLive = false
	if s.state == StateDirty {
		s.state = StateClean
	}
	s.mu.Unlock()

	if err := s.editor.SetContent(baseline); err != nil && !errors.Is(err, editor.ErrNotReady) {
		log.Printf("session %s: restoring editor content: %v", s.id, err)
	}
	return true, nil
}

// Close ends the session. With no unsaved changes it closes immediately;
// otherwise the user chooses between discard-and-close and staying. It
// reports whether the session actually closed.
func (s *Session) Close(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return true, nil
	}
	dirty := s.dirty
	s.mu.Unlock()

	if dirty {
		ok, err := s.confirm.Confirm(ctx, "You have unsaved changes. Discard them and close?")
		if err != nil {
			return false, fmt.Errorf("confirming close: %w", err)
		}
		if !ok {
			return false, nil
		}
	}

	s.teardown()
	return true, nil
}

// Discard tears the session down unconditionally, without confirmation.
// Used when the surrounding server shuts down.
func (s *Session) Discard() {
	s.teardown()
}

// teardown resets every structural field and invalidates in-flight results
// so a later open starts from a blank session.
func (s *Session) teardown() {
	s.mu.Lock()
	s.gen++
	s.state = StateClosed
	s.structure = htmldoc.Structure{}
	s.content = ""
	s.baseline = ""
	s.name = ""
	s.dirty = false
	s.loaded = false
	s.fallbackLive = false
	s.lastSave = nil
	s.mu.Unlock()

	s.editor.Close()
}
