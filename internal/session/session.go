// Package session keeps per-visitor wizard, signature and questionnaire
// state between requests.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parisxmas/intake/internal/signature"
	"github.com/parisxmas/intake/internal/wizard"
)

// CookieName is the cookie carrying the session id.
const CookieName = "intake_session"

// ErrBusy is returned while another save or submit for the same session is
// still running.
var ErrBusy = errors.New("a save or submit is already in progress")

// Data is everything remembered for one visitor.
type Data struct {
	ID            string            `msgpack:"id"`
	UserID        string            `msgpack:"user_id"`
	Intake        wizard.State      `msgpack:"intake"`
	Signature     signature.Capture `msgpack:"signature"`
	Questionnaire wizard.State      `msgpack:"questionnaire"`
	FormData      map[string]any    `msgpack:"form_data"`
	Seeded        map[string]bool   `msgpack:"seeded"`
	CreatedAt     time.Time         `msgpack:"created_at"`
	UpdatedAt     time.Time         `msgpack:"updated_at"`

	// Flash and FlashError are shown once on the next page render.
	Flash      string `msgpack:"flash"`
	FlashError string `msgpack:"flash_error"`
}

// TakeFlash returns and clears the pending messages.
func (d *Data) TakeFlash() (notice, errMsg string) {
	notice, errMsg = d.Flash, d.FlashError
	d.Flash, d.FlashError = "", ""
	return notice, errMsg
}

// Manager loads and saves session data and serializes in-flight work per
// session.
type Manager struct {
	store  Store
	ser    *Serializer
	ttl    time.Duration
	secure bool

	mu       sync.Mutex
	inflight map[string]bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

func NewManager(store Store, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		ser:      NewSerializer(),
		ttl:      ttl,
		inflight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// New starts an empty session. It is not stored until Save.
func (m *Manager) New() *Data {
	now := time.Now().UTC()
	return &Data{
		ID:        uuid.New().String(),
		FormData:  map[string]any{},
		Seeded:    map[string]bool{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (m *Manager) Load(ctx context.Context, id string) (*Data, error) {
	raw, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var d Data
	if err := m.ser.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	if d.FormData == nil {
		d.FormData = map[string]any{}
	}
	if d.Seeded == nil {
		d.Seeded = map[string]bool{}
	}
	return &d, nil
}

func (m *Manager) Save(ctx context.Context, d *Data) error {
	d.UpdatedAt = time.Now().UTC()
	raw, err := m.ser.Marshal(d)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, d.ID, raw, m.ttl)
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// FromRequest loads the session named by the request cookie, or starts a
// new one and sets its cookie on w.
func (m *Manager) FromRequest(w http.ResponseWriter, r *http.Request) (*Data, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		d, err := m.Load(r.Context(), c.Value)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidData) {
			return nil, err
		}
	}
	d := m.New()
	http.SetCookie(w, m.Cookie(d.ID))
	return d, nil
}

// Cookie builds the session cookie for id.
func (m *Manager) Cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Acquire marks a save or submit as running for id. The returned release
// must be called when it finishes.
func (m *Manager) Acquire(id string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight[id] {
		return nil, ErrBusy
	}
	m.inflight[id] = true
	return func() {
		m.mu.Lock()
		delete(m.inflight, id)
		m.mu.Unlock()
	}, nil
}
