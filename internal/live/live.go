// Package live runs questionnaire section operations over a websocket, so a
// page can update one section without a full form post.
package live

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/parisxmas/intake/internal/auth"
	"github.com/parisxmas/intake/internal/questionnaire"
	"github.com/parisxmas/intake/internal/session"
	"github.com/parisxmas/intake/internal/wizard"
)

// Message types sent by the server.
const (
	TypeSection = "section"
	TypeError   = "error"
)

// ClientMessage is one section operation. ID is echoed in the reply.
type ClientMessage struct {
	ID string `json:"id,omitempty"`
	questionnaire.Op
}

type ServerMessage struct {
	Type      string                     `json:"type"`
	RequestID string                     `json:"requestId,omitempty"`
	Section   *questionnaire.SectionView `json:"section,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

var errSessionChanged = errors.New("your session changed, reload the page")

// Handler serves the live channel of a signed-in user's session.
type Handler struct {
	sessions *session.Manager
	catalog  *questionnaire.Catalog
	ids      *questionnaire.IDSource
}

func NewHandler(sessions *session.Manager, catalog *questionnaire.Catalog, ids *questionnaire.IDSource) *Handler {
	return &Handler{sessions: sessions, catalog: catalog, ids: ids}
}

// ServeHTTP checks the session belongs to the signed-in user, upgrades to
// WebSocket and runs the message loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUser(r.Context())
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	c, err := r.Cookie(session.CookieName)
	if err != nil || c.Value == "" {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}
	sess, err := h.sessions.Load(r.Context(), c.Value)
	if err != nil || sess.UserID != claims.UserID {
		http.Error(w, errSessionChanged.Error(), http.StatusConflict)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("live: websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.Printf("live: read: %v", err)
			}
			return
		}
		reply := ServerMessage{Type: TypeSection, RequestID: msg.ID}
		view, err := h.apply(ctx, sess.ID, claims.UserID, msg.Op)
		if err != nil {
			reply.Type, reply.Error = TypeError, err.Error()
		} else {
			reply.Section = &view
		}
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			log.Printf("live: write: %v", err)
			return
		}
	}
}

// apply runs op against the stored session. As in the page handlers, the
// session is locked before it is reloaded, and stays locked until saved.
func (h *Handler) apply(ctx context.Context, sessionID, userID string, op questionnaire.Op) (questionnaire.SectionView, error) {
	release, err := h.sessions.Acquire(sessionID)
	if err != nil {
		return questionnaire.SectionView{}, err
	}
	defer release()

	sess, err := h.sessions.Load(ctx, sessionID)
	if err != nil {
		return questionnaire.SectionView{}, errSessionChanged
	}
	if sess.UserID != userID {
		return questionnaire.SectionView{}, errSessionChanged
	}
	if sess.Questionnaire.Submitted {
		return questionnaire.SectionView{}, wizard.ErrAlreadySubmitted
	}

	q := questionnaire.New(h.catalog, questionnaire.NewFormData(sess.FormData, sess.Seeded), h.ids)
	view, err := q.Do(op)
	if err != nil {
		return questionnaire.SectionView{}, err
	}
	sess.FormData = q.Data.Values()
	sess.Seeded = q.Data.Seeded()
	if err := h.sessions.Save(ctx, sess); err != nil {
		log.Printf("live: session save: %v", err)
		return questionnaire.SectionView{}, errors.New("could not save your answer")
	}
	return view, nil
}
