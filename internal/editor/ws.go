package editor

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsMessage is the frame format exchanged with the browser-side widget.
type wsMessage struct {
	Type    string `json:"type"`              // attached | change | html | set_html | get_html | spellcheck | destroy
	ID      string `json:"id,omitempty"`      // correlates get_html/html pairs
	HTML    string `json:"html,omitempty"`
	Enabled bool   `json:"enabled,omitempty"` // spellcheck toggle
}

// htmlReadTimeout bounds how long HTML waits for the widget to answer a
// get_html request.
const htmlReadTimeout = 2 * time.Second

// WSWidget bridges the embedded rich-text widget over a WebSocket
// connection. It is both the Container (attachment is signalled by the
// widget once its DOM node is mounted) and the Widget.
type WSWidget struct {
	conn *websocket.Conn

	mu       sync.Mutex
	attached bool
	closed   bool
	onChange func(html string)
	pending  map[string]chan string
}

// NewWSWidget wraps conn and starts reading widget frames. onChange receives
// every user-originated change event.
func NewWSWidget(conn *websocket.Conn, onChange func(html string)) *WSWidget {
	w := &WSWidget{
		conn:     conn,
		onChange: onChange,
		pending:  make(map[string]chan string),
	}
	go w.readLoop()
	return w
}

func (w *WSWidget) readLoop() {
	for {
		var msg wsMessage
		if err := w.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("editor: websocket read: %v", err)
			}
			w.mu.Lock()
			w.closed = true
			w.attached = false
			for id, ch := range w.pending {
				close(ch)
				delete(w.pending, id)
			}
			w.mu.Unlock()
			return
		}

		switch msg.Type {
		case "attached":
			w.mu.Lock()
			w.attached = true
			w.mu.Unlock()
		case "change":
			if w.onChange != nil {
				w.onChange(msg.HTML)
			}
		case "html":
			w.mu.Lock()
			if ch, ok := w.pending[msg.ID]; ok {
				ch <- msg.HTML
				delete(w.pending, msg.ID)
			}
			w.mu.Unlock()
		default:
			log.Printf("editor: unknown widget message type %q", msg.Type)
		}
	}
}

func (w *WSWidget) write(msg wsMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("widget connection closed")
	}
	return w.conn.WriteJSON(msg)
}

// Attached reports whether the widget has signalled that its DOM node is
// mounted inside the host dialog.
func (w *WSWidget) Attached() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attached && !w.closed
}

// SetHTML pushes content into the widget.
func (w *WSWidget) SetHTML(html string) error {
	return w.write(wsMessage{Type: "set_html", HTML: html})
}

// HTML asks the widget for its live content and waits for the answer.
func (w *WSWidget) HTML() (string, error) {
	id := uuid.New().String()
	ch := make(chan string, 1)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return "", fmt.Errorf("widget connection closed")
	}
	w.pending[id] = ch
	w.mu.Unlock()

	if err := w.write(wsMessage{Type: "get_html", ID: id}); err != nil {
		w.mu.Lock()
		delete(w.pending, id)
		w.mu.Unlock()
		return "", err
	}

	select {
	case html, ok := <-ch:
		if !ok {
			return "", fmt.Errorf("widget connection closed")
		}
		return html, nil
	case <-time.After(htmlReadTimeout):
		w.mu.Lock()
		delete(w.pending, id)
		w.mu.Unlock()
		return "", fmt.Errorf("widget did not answer within %s", htmlReadTimeout)
	}
}

// DisableSpellcheck turns off native spell-check decoration in the widget.
func (w *WSWidget) DisableSpellcheck() {
	if err := w.write(wsMessage{Type: "spellcheck", Enabled: false}); err != nil {
		log.Printf("editor: disabling spellcheck: %v", err)
	}
}

// Destroy tells the widget to tear down and closes the connection.
func (w *WSWidget) Destroy() {
	_ = w.write(wsMessage{Type: "destroy"})
	w.conn.Close()
}
