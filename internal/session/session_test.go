package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/intake/internal/signature"
	"github.com/parisxmas/intake/internal/wizard"
)

func TestSerializerRoundTrip(t *testing.T) {
	s := NewSerializer()
	small := map[string]any{"a": "b"}
	raw, err := s.Marshal(small)
	require.NoError(t, err)
	assert.Equal(t, markerPlain, raw[0])

	big := map[string]any{"notes": strings.Repeat("x", 4096)}
	raw, err = s.Marshal(big)
	require.NoError(t, err)
	assert.Equal(t, markerGzip, raw[0])
	assert.Less(t, len(raw), 4096)

	var out map[string]any
	require.NoError(t, s.Unmarshal(raw, &out))
	assert.Equal(t, big, out)

	assert.ErrorIs(t, s.Unmarshal(nil, &out), ErrInvalidData)
	assert.ErrorIs(t, s.Unmarshal([]byte{9, 1, 2}, &out), ErrInvalidData)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ms := NewMemoryStore(time.Hour)
	defer ms.Close()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ms.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, ms.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, ms.Set(ctx, "forever", []byte("v"), 0))
	got, err := ms.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, err = ms.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, ms.sweep())
	assert.Equal(t, 1, ms.Len())

	require.NoError(t, ms.Close())
	_, err = ms.Get(ctx, "forever")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestManagerSaveLoad(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	m := NewManager(store, time.Hour)
	ctx := context.Background()

	d := m.New()
	d.Intake = wizard.State{CurrentStep: 2, AllStepsData: []map[string]any{{"first_name": "Ada"}, {}}}
	d.Signature = signature.Capture{Mode: signature.MethodUpload, Active: signature.MethodUpload, Uploaded: "data:image/png;base64,AA=="}
	d.FormData["has_debts"] = "yes"
	d.FormData["debts"] = []any{map[string]any{"id": "1", "responsible": []string{"self"}}}
	d.Seeded["debts"] = true
	require.NoError(t, m.Save(ctx, d))

	got, err := m.Load(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Intake.CurrentStep)
	assert.Equal(t, "Ada", got.Intake.AllStepsData[0]["first_name"])
	assert.Equal(t, signature.MethodUpload, got.Signature.Active)
	assert.Equal(t, "yes", got.FormData["has_debts"])
	assert.True(t, got.Seeded["debts"])

	entries := got.FormData["debts"].([]any)
	entry := entries[0].(map[string]any)
	assert.Equal(t, []any{"self"}, entry["responsible"])

	_, err = m.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFromRequestSetsCookie(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	m := NewManager(store, time.Hour)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/apply", nil)
	d, err := m.FromRequest(rec, req)
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, d.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	require.NoError(t, m.Save(context.Background(), d))
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/apply", nil)
	req.AddCookie(cookies[0])
	again, err := m.FromRequest(rec, req)
	require.NoError(t, err)
	assert.Equal(t, d.ID, again.ID)
	assert.Empty(t, rec.Result().Cookies())
}

func TestAcquireRejectsConcurrentWork(t *testing.T) {
	m := NewManager(NewMemoryStore(time.Hour), time.Hour)
	release, err := m.Acquire("s1")
	require.NoError(t, err)

	_, err = m.Acquire("s1")
	assert.ErrorIs(t, err, ErrBusy)

	other, err := m.Acquire("s2")
	require.NoError(t, err)
	other()

	release()
	release2, err := m.Acquire("s1")
	require.NoError(t, err)
	release2()
}
