package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/intake/internal/auth"
	"github.com/parisxmas/intake/internal/questionnaire"
	"github.com/parisxmas/intake/internal/session"
)

const secret = "live-test-secret"

type fixture struct {
	server   *httptest.Server
	sessions *session.Manager
	sess     *session.Data
	header   http.Header
}

func newFixture(t *testing.T, owner, caller string) *fixture {
	t.Helper()
	store := session.NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })
	sessions := session.NewManager(store, time.Hour)

	cat, err := questionnaire.LoadCatalog()
	require.NoError(t, err)

	sess := sessions.New()
	sess.UserID = owner
	require.NoError(t, sessions.Save(context.Background(), sess))

	token, err := auth.GenerateToken(secret, caller, caller+"@example.com", "client", time.Hour)
	require.NoError(t, err)

	h := NewHandler(sessions, cat, questionnaire.NewIDSource())
	srv := httptest.NewServer(auth.Optional(secret)(h))
	t.Cleanup(srv.Close)

	header := http.Header{}
	header.Add("Cookie", session.CookieName+"="+sess.ID)
	header.Add("Cookie", auth.CookieName+"="+token)
	return &fixture{server: srv, sessions: sessions, sess: sess, header: header}
}

func (f *fixture) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: f.header})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func TestSectionOperationsOverWebsocket(t *testing.T) {
	f := newFixture(t, "u1", "u1")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := f.dial(t, ctx)

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{
		ID: "1",
		Op: questionnaire.Op{Op: questionnaire.OpTopic, Section: "prior_addresses", Value: "yes"},
	}))
	var reply ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, TypeSection, reply.Type)
	assert.Equal(t, "1", reply.RequestID)
	require.NotNil(t, reply.Section)
	assert.True(t, reply.Section.Shown)
	assert.Len(t, reply.Section.Entries, 1)

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{
		ID: "2",
		Op: questionnaire.Op{Op: questionnaire.OpAdd, Section: "prior_addresses"},
	}))
	reply = ServerMessage{}
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	require.NotNil(t, reply.Section)
	assert.Len(t, reply.Section.Entries, 2)

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{
		ID: "3",
		Op: questionnaire.Op{Op: questionnaire.OpRemove, Section: "prior_addresses", Index: 9},
	}))
	reply = ServerMessage{}
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, TypeError, reply.Type)
	assert.Equal(t, "3", reply.RequestID)
	assert.Nil(t, reply.Section)

	stored, err := f.sessions.Load(ctx, f.sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "yes", stored.FormData["has_prior_addresses"])
	assert.Len(t, stored.FormData["prior_addresses"], 2)
}

func TestRefusesForeignSession(t *testing.T) {
	f := newFixture(t, "u1", "u2")

	req, err := http.NewRequest(http.MethodGet, f.server.URL, nil)
	require.NoError(t, err)
	req.Header = f.header
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRequiresLogin(t *testing.T) {
	f := newFixture(t, "u1", "u1")

	resp, err := http.Get(f.server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
