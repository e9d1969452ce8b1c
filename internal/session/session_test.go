package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evdealer/contractedit/internal/editor"
	"github.com/evdealer/contractedit/internal/gateway"
)

const sampleHTML = `<html lang="vi"><head><style>p{color:red}</style></head>` +
	`<body><p>Hello {{ name }}</p></body></html>`

type fakeGateway struct {
	mu        sync.Mutex
	tpl       *gateway.Template
	loadErr   error
	saveErr   error
	saveCalls int
	lastSave  gateway.SaveRequest
	block     chan struct{} // when set, Save waits on it
}

func (g *fakeGateway) Load(ctx context.Context, id string) (*gateway.Template, error) {
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	return g.tpl, nil
}

func (g *fakeGateway) Save(ctx context.Context, req gateway.SaveRequest) (*gateway.SaveResult, error) {
	g.mu.Lock()
	g.saveCalls++
	g.lastSave = req
	block := g.block
	err := g.saveErr
	g.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &gateway.SaveResult{Success: true, DownloadURL: "https://cdn.example/contract.pdf"}, nil
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saveCalls
}

// promptRecorder is a Confirmer with a fixed answer that counts prompts.
type promptRecorder struct {
	mu      sync.Mutex
	answer  bool
	prompts int
}

func (p *promptRecorder) Confirm(ctx context.Context, prompt string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts++
	return p.answer, nil
}

func (p *promptRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prompts
}

// stubWidget is a minimal live editor for attach tests.
type stubWidget struct {
	mu   sync.Mutex
	html string
}

func (w *stubWidget) SetHTML(html string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.html = html
	return nil
}

func (w *stubWidget) HTML() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.html, nil
}

func (w *stubWidget) DisableSpellcheck() {}
func (w *stubWidget) Destroy()           {}

type attachedContainer struct{}

func (attachedContainer) Attached() bool { return true }

func fastEditorOpts() editor.Options {
	return editor.Options{PollInterval: time.Millisecond, PollAttempts: 3, Debounce: 2 * time.Millisecond}
}

func newLoadedSession(t *testing.T, gw *fakeGateway, confirm Confirmer) *Session {
	t.Helper()
	if gw.tpl == nil {
		gw.tpl = &gateway.Template{ID: "tpl-1", Name: "Purchase Contract", HTML: sampleHTML}
	}
	if confirm == nil {
		confirm = &promptRecorder{answer: true}
	}
	s := New("tpl-1", gw, confirm, fastEditorOpts())
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func attachStubEditor(t *testing.T, s *Session, w *stubWidget) {
	t.Helper()
	factory := editor.FactoryFunc(func(editor.Container) (editor.Widget, error) { return w, nil })
	if err := s.AttachEditor(context.Background(), attachedContainer{}, factory); err != nil {
		t.Fatalf("AttachEditor: %v", err)
	}
}

func TestLoadDecomposesTemplate(t *testing.T) {
	gw := &fakeGateway{}
	s := newLoadedSession(t, gw, nil)

	if s.State() != StateClean {
		t.Errorf("expected clean, got %s", s.State())
	}
	if s.Content() != "<p>Hello {{ name }}</p>" {
		t.Errorf("unexpected body: %q", s.Content())
	}
	if !strings.Contains(s.structure.StyleBlocks, "p{color:red}") {
		t.Errorf("style block not captured: %q", s.structure.StyleBlocks)
	}
	if s.Name() != "Purchase Contract" {
		t.Errorf("unexpected name: %q", s.Name())
	}
	if s.Dirty() {
		t.Error("fresh load must not be dirty")
	}
}

func TestLoadFailureReturnsToIdle(t *testing.T) {
	gw := &fakeGateway{loadErr: gateway.ErrNotFound}
	s := New("tpl-1", gw, &promptRecorder{}, fastEditorOpts())

	if err := s.Load(context.Background()); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle after failed load, got %s", s.State())
	}
}

func TestInjectionNeverDirtiesButEditsDo(t *testing.T) {
	gw := &fakeGateway{}
	s := newLoadedSession(t, gw, nil)
	w := &stubWidget{}
	attachStubEditor(t, s, w)

	// The widget received the decorated body; the session stayed clean.
	if !strings.Contains(w.html, "placeholder-variable") {
		t.Errorf("widget did not receive decorated content: %q", w.html)
	}
	if s.Dirty() {
		t.Fatal("content injection marked the session dirty")
	}

	// A user-originated change event makes it dirty after the debounce.
	s.Editor().HandleChange("<p>edited</p>")
	time.Sleep(50 * time.Millisecond)

	if !s.Dirty() {
		t.Fatal("user edit did not mark the session dirty")
	}
	if s.State() != StateDirty {
		t.Errorf("expected dirty state, got %s", s.State())
	}
	if s.Content() != "<p>edited</p>" {
		t.Errorf("unexpected content: %q", s.Content())
	}
}

func TestSaveThroughLiveEditor(t *testing.T) {
	gw := &fakeGateway{}
	s := newLoadedSession(t, gw, nil)
	w := &stubWidget{}
	attachStubEditor(t, s, w)

	edited := `<p>Signed by <span class="placeholder-variable">${{ customer.name }}</span></p>`
	w.SetHTML(edited) // the change originates in the widget's own content
	s.Editor().HandleChange(edited)
	time.Sleep(50 * time.Millisecond)

	res, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !res.Success {
		t.Error("expected successful save result")
	}

	// The submitted body is the live, decoded editor content.
	if gw.lastSave.Body != "<p>Signed by {{ customer.name }}</p>" {
		t.Errorf("unexpected saved body: %q", gw.lastSave.Body)
	}
	if gw.lastSave.Subject != "Purchase Contract" {
		t.Errorf("unexpected subject: %q", gw.lastSave.Subject)
	}
	if !strings.Contains(gw.lastSave.Structure.StyleBlocks, "p{color:red}") {
		t.Error("structure zones were not passed through to the save")
	}

	if s.Dirty() {
		t.Error("successful save must clear the dirty flag")
	}
	if s.State() != StateClean {
		t.Errorf("expected clean after save, got %s", s.State())
	}
	if s.LastSave() == nil || s.LastSave().DownloadURL == "" {
		t.Error("save result was not retained")
	}
}

func TestSaveWithoutChanges(t *testing.T) {
	gw := &fakeGateway{}
	s := newLoadedSession(t, gw, nil)

	if _, err := s.Save(context.Background()); !errors.Is(err, ErrNoChanges) {
		t.Fatalf("expected ErrNoChanges, got %v", err)
	}
	if gw.calls() != 0 {
		t.Error("save without changes must not reach the gateway")
	}
}

func TestSaveRefusesStaleContent(t *testing.T) {
	gw := &fakeGateway{}
	s := newLoadedSession(t, gw, nil)

	// Edits arrived through the editor, but the editor is gone and no
	// fallback read exists: saving the last known body could drop the
	// user's newest keystrokes.
	s.applyEdit("<p>latest from editor</p>", false)

	if _, err := s.Save(context.Background()); !errors.Is(err, ErrStaleContent) {
		t.Fatalf("expected ErrStaleContent, got %v", err)
	}
	if gw.calls() != 0 {
		t.Error("stale-guarded save must not reach the gateway")
	}
}

func TestSaveUsesRawFallback(t *testing.T) {
	gw := &fakeGateway{}
	s := newLoadedSession(t, gw, nil)

	if err := s.UpdateContent("<p>edited in the raw textarea</p>"); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if _, err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if gw.lastSave.Body != "<p>edited in the raw textarea</p>" {
		t.Errorf("unexpected saved body: %q", gw.lastSave.Body)
	}
}

func TestSaveFailureStaysDirty(t *testing.T) {
	gw := &fakeGateway{saveErr: gateway.ErrTimeout}
	s := newLoadedSession(t, gw, nil)

	s.UpdateContent("<p>changed</p>")
	if _, err := s.Save(context.Background()); !errors.Is(err, gateway.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !s.Dirty() {
		t.Error("failed save must keep the session dirty")
	}
	if s.State() != StateDirty {
		t.Errorf("expected dirty after failed save, got %s", s.State())
	}
}

func TestResetRestoresBaseline(t *testing.T) {
	gw := &fakeGateway{}
	confirm := &promptRecorder{answer: true}
	s := newLoadedSession(t, gw, confirm)
	baseline := s.Content()

	s.UpdateContent("<p>first</p>")
	s.UpdateContent("<p>second</p>")
	s.UpdateContent("<p>third</p>")

	reverted, err := s.Reset(context.Background())
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !reverted {
		t.Fatal("expected reset to revert")
	}
	if confirm.count() != 1 {
		t.Errorf("expected one confirmation prompt, got %d", confirm.count())
	}
	if s.Content() != baseline {
		t.Errorf("content not restored:\nwant %q\ngot  %q", baseline, s.Content())
	}
	if s.Dirty() {
		t.Error("reset must clear the dirty flag")
	}
}

func TestResetDeclined(t *testing.T) {
	gw := &fakeGateway{}
	s := newLoadedSession(t, gw, &promptRecorder{answer: false})

	s.UpdateContent("<p>keep me</p>")
	reverted, err := s.Reset(context.Background())
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if reverted {
		t.Fatal("declined reset must not revert")
	}
	if s.Content() != "<p>keep me</p>" || !s.Dirty() {
		t.Error("declined reset lost the unsaved edit")
	}
}

func TestCloseCleanNeverPrompts(t *testing.T) {
	gw := &fakeGateway{}
	confirm := &promptRecorder{answer: false}
	s := newLoadedSession(t, gw, confirm)

	closed, err := s.Close(context.Background())
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closed {
		t.Fatal("clean close must succeed")
	}
	if confirm.count() != 0 {
		t.Errorf("clean close prompted %d times", confirm.count())
	}
}

func TestCloseDirtyOffersStay(t *testing.T) {
	gw := &fakeGateway{}
	confirm := &promptRecorder{answer: false}
	s := newLoadedSession(t, gw, confirm)
	s.UpdateContent("<p>unsaved</p>")

	closed, err := s.Close(context.Background())
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed {
		t.Fatal("declining the prompt must keep the session open")
	}
	if !s.Dirty() || s.Content() != "<p>unsaved</p>" {
		t.Error("staying must never lose data")
	}

	// Accepting the prompt discards and closes.
	confirm.answer = true
	closed, err = s.Close(context.Background())
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closed {
		t.Fatal("confirmed close must succeed")
	}
	if s.State() != StateClosed {
		t.Errorf("expected closed, got %s", s.State())
	}
	if err := s.UpdateContent("<p>late</p>"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed for edits after close, got %v", err)
	}
}

func TestInFlightSaveDiscardedAfterTeardown(t *testing.T) {
	gw := &fakeGateway{block: make(chan struct{})}
	s := newLoadedSession(t, gw, nil)
	s.UpdateContent("<p>racing</p>")

	done := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background())
		done <- err
	}()

	// Wait until the save is in flight, then tear the session down.
	for i := 0; i < 100 && gw.calls() == 0; i++ {
		time.Sleep(time.Millisecond)
	}
	s.Discard()
	close(gw.block)

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed for late save result, got %v", err)
	}
	if s.LastSave() != nil {
		t.Error("late save result leaked into the torn-down session")
	}
}

func TestEditDuringSaveStaysDirty(t *testing.T) {
	gw := &fakeGateway{block: make(chan struct{})}
	s := newLoadedSession(t, gw, nil)
	s.UpdateContent("<p>first edit</p>")

	done := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background())
		done <- err
	}()

	// Wait until the save is in flight, type some more, then let the
	// backend answer.
	for i := 0; i < 100 && gw.calls() == 0; i++ {
		time.Sleep(time.Millisecond)
	}
	if err := s.UpdateContent("<p>second edit</p>"); err != nil {
		t.Fatalf("UpdateContent during save: %v", err)
	}
	close(gw.block)

	if err := <-done; err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := s.Content(); got != "<p>second edit</p>" {
		t.Errorf("mid-save edit was clobbered, content = %q", got)
	}
	if !s.Dirty() {
		t.Error("session reports clean although the mid-save edit was never persisted")
	}
	if s.State() != StateDirty {
		t.Errorf("expected dirty state, got %s", s.State())
	}
	if s.LastSave() == nil {
		t.Error("completed save result was not recorded")
	}

	// The next save picks up the newer content.
	if _, err := s.Save(context.Background()); err != nil {
		t.Fatalf("second save: %v", err)
	}
	gw.mu.Lock()
	body := gw.lastSave.Body
	gw.mu.Unlock()
	if body != "<p>second edit</p>" {
		t.Errorf("second save submitted %q", body)
	}
}
