package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/evdealer/contractedit/internal/audit"
	"github.com/evdealer/contractedit/internal/editor"
	"github.com/evdealer/contractedit/internal/gateway"
	"github.com/evdealer/contractedit/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// confirmKey carries the caller's confirmation answer through the request
// context, so destructive session operations see the per-request decision.
type confirmKey struct{}

func withConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmKey{}, confirmed)
}

// requestConfirmer answers session prompts from the confirm flag of the
// current request. An unconfirmed request declines, which surfaces as a
// "confirmation required" answer to the dashboard.
var requestConfirmer = session.ConfirmFunc(func(ctx context.Context, prompt string) (bool, error) {
	confirmed, _ := ctx.Value(confirmKey{}).(bool)
	return confirmed, nil
})

// sessionInfo is the session state representation returned to the dashboard.
type sessionInfo struct {
	ID         string              `json:"id"`
	TemplateID string              `json:"template_id"`
	Name       string              `json:"name"`
	State      string              `json:"state"`
	Dirty      bool                `json:"dirty"`
	Editor     string              `json:"editor"`
	Content    string              `json:"content,omitempty"`
	LastSave   *gateway.SaveResult `json:"last_save,omitempty"`
}

func infoFor(sess *session.Session, withContent bool) sessionInfo {
	info := sessionInfo{
		ID:         sess.ID(),
		TemplateID: sess.TemplateID(),
		Name:       sess.Name(),
		State:      sess.State().String(),
		Dirty:      sess.Dirty(),
		Editor:     sess.Editor().State().String(),
		LastSave:   sess.LastSave(),
	}
	if withContent {
		info.Content = sess.Content()
	}
	return info
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type openRequest struct {
	TemplateID string `json:"template_id"`
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TemplateID == "" {
		writeError(w, http.StatusBadRequest, "template_id is required")
		return
	}

	sess := session.New(req.TemplateID, s.gw, requestConfirmer, s.editorOpts)
	if err := sess.Load(r.Context()); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.register(sess)
	writeJSON(w, http.StatusCreated, infoFor(sess, true))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(chi.URLParam(r, "id"))
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, infoFor(sess, r.URL.Query().Get("content") == "true"))
}

type contentRequest struct {
	Body string `json:"body"`
}

// handleUpdateContent applies an edit made through the dashboard's raw-HTML
// fallback textarea.
func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(chi.URLParam(r, "id"))
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := sess.UpdateContent(req.Body); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, infoFor(sess, false))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(chi.URLParam(r, "id"))
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	start := time.Now()
	res, err := sess.Save(r.Context())
	s.recordSave(r, sess, err, time.Since(start))

	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoChanges):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, session.ErrStaleContent):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, gateway.ErrEmptyBody):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, gateway.ErrMalformed):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, gateway.ErrTimeout):
			writeError(w, http.StatusGatewayTimeout, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// recordSave writes one audit entry per save attempt. Audit failures are
// logged, never surfaced to the dashboard.
func (s *Server) recordSave(r *http.Request, sess *session.Session, saveErr error, took time.Duration) {
	outcome := audit.OutcomeSaved
	detail := ""
	if saveErr != nil {
		detail = saveErr.Error()
		if errors.Is(saveErr, session.ErrStaleContent) ||
			errors.Is(saveErr, session.ErrNoChanges) ||
			errors.Is(saveErr, gateway.ErrEmptyBody) ||
			errors.Is(saveErr, gateway.ErrMalformed) {
			outcome = audit.OutcomeRejected
		} else {
			outcome = audit.OutcomeFailed
		}
	}

	actor := r.Header.Get("X-Actor")
	if actor == "" {
		actor = "dashboard"
	}

	_, err := s.auditStore.Create(r.Context(), audit.Entry{
		TemplateID: sess.TemplateID(),
		SessionID:  sess.ID(),
		Actor:      actor,
		Outcome:    outcome,
		Detail:     detail,
		BodyBytes:  len(sess.Content()),
		DurationMS: took.Milliseconds(),
	})
	if err != nil {
		log.Printf("api: recording save audit: %v", err)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(chi.URLParam(r, "id"))
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	confirmed := r.URL.Query().Get("confirm") == "true"
	reverted, err := sess.Reset(withConfirmation(r.Context(), confirmed))
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if !reverted && sess.Dirty() {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"requires_confirmation": true,
			"message":               "Discard all unsaved changes? This cannot be undone. Retry with confirm=true.",
		})
		return
	}
	writeJSON(w, http.StatusOK, infoFor(sess, true))
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess := s.lookup(id)
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	confirmed := r.URL.Query().Get("confirm") == "true"
	closed, err := sess.Close(withConfirmation(r.Context(), confirmed))
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if !closed {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"requires_confirmation": true,
			"message":               "You have unsaved changes. Retry with confirm=true to discard them and close.",
		})
		return
	}

	s.unregister(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// handleEditorSocket upgrades the rich-text widget's connection and runs the
// editor attachment flow for the session. The connection stays open for the
// life of the editing dialog; change events stream in over it.
func (s *Server) handleEditorSocket(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(chi.URLParam(r, "id"))
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: websocket upgrade: %v", err)
		return
	}

	widget := editor.NewWSWidget(conn, sess.Editor().HandleChange)
	factory := editor.FactoryFunc(func(editor.Container) (editor.Widget, error) {
		return widget, nil
	})

	// The polling budget bounds this call; the request context is not used
	// because the connection outlives the HTTP handshake.
	if err := sess.AttachEditor(context.Background(), widget, factory); err != nil {
		log.Printf("api: session %s: attaching editor: %v", sess.ID(), err)
		widget.Destroy()
	}
}
