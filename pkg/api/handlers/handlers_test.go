package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"mesgd/pkg/api"
	"mesgd/pkg/auth"
	"mesgd/pkg/blob"
	"mesgd/pkg/config"
	"mesgd/pkg/facade"
	"mesgd/pkg/models"
	"mesgd/pkg/store"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := facade.New(st, 32, 0)
	t.Cleanup(f.Close)

	blobs, err := blob.NewFS(t.TempDir(), "")
	require.NoError(t, err)

	var secCfg config.SecurityConfig
	secCfg.APIKeys.AllowUnauth = true
	srv := httptest.NewServer(auth.Middleware(secCfg)(api.Router(f, blobs)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, identity string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	if identity != "" {
		req.Header.Set(auth.IdentityHeader, identity)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, out
}

func TestIdentityRequired(t *testing.T) {
	srv := newServer(t)
	resp, _ := doJSON(t, srv, http.MethodGet, "/v1/conversations", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConversationLifecycle(t *testing.T) {
	srv := newServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/v1/conversations", "alice", map[string]any{
		"participants": []string{"alice", "bob"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var conv models.Conversation
	require.NoError(t, json.Unmarshal(body, &conv))
	require.True(t, conv.HasParticipant("alice"))
	require.True(t, conv.HasParticipant("bob"))

	resp, body = doJSON(t, srv, http.MethodPost, "/v1/conversations/"+conv.ID+"/messages", "alice", map[string]any{
		"payload": map[string]any{"type": "text", "text": "hello bob"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var msg models.Message
	require.NoError(t, json.Unmarshal(body, &msg))
	require.EqualValues(t, 1, msg.Seq)
	require.Equal(t, []string{"alice"}, msg.ReadBy)

	// outsiders cannot read history
	resp, _ = doJSON(t, srv, http.MethodGet, "/v1/conversations/"+conv.ID+"/messages", "mallory", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/conversations/"+conv.ID+"/messages", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &listing))
	require.Len(t, listing.Messages, 1)

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/conversations/"+conv.ID+"/summary", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sum models.ConversationSummary
	require.NoError(t, json.Unmarshal(body, &sum))
	require.Equal(t, 1, sum.Unread["bob"])
	require.Equal(t, "hello bob", sum.LastPreview)

	resp, _ = doJSON(t, srv, http.MethodPost, "/v1/conversations/"+conv.ID+"/read", "bob", map[string]any{
		"upto_seq": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = doJSON(t, srv, http.MethodGet, "/v1/conversations/"+conv.ID+"/summary", "bob", nil)
	require.NoError(t, json.Unmarshal(body, &sum))
	require.Equal(t, 0, sum.Unread["bob"])

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/conversations", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var inbox struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(body, &inbox))
	require.Len(t, inbox.Conversations, 1)

	// unknown conversation maps to 404
	resp, _ = doJSON(t, srv, http.MethodGet, "/v1/conversations/conv-missing/messages", "bob", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReactionEndpoints(t *testing.T) {
	srv := newServer(t)

	_, body := doJSON(t, srv, http.MethodPost, "/v1/conversations", "alice", map[string]any{
		"participants": []string{"alice", "bob"},
	})
	var conv models.Conversation
	require.NoError(t, json.Unmarshal(body, &conv))

	_, body = doJSON(t, srv, http.MethodPost, "/v1/conversations/"+conv.ID+"/messages", "alice", map[string]any{
		"payload": map[string]any{"type": "text", "text": "react"},
	})
	var msg models.Message
	require.NoError(t, json.Unmarshal(body, &msg))

	resp, body := doJSON(t, srv, http.MethodPost, "/v1/messages/"+msg.ID+"/reactions", "bob", map[string]any{
		"emoji": "🔥",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Message
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, []string{"bob"}, got.Reactions["🔥"])

	resp, body = doJSON(t, srv, http.MethodDelete, "/v1/messages/"+msg.ID+"/reactions/🔥", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = models.Message{}
	require.NoError(t, json.Unmarshal(body, &got))
	require.Empty(t, got.Reactions["🔥"])
}

func TestStatusEndpoints(t *testing.T) {
	srv := newServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/v1/statuses", "alice", map[string]any{
		"payload": map[string]any{"type": "text", "text": "busy"},
		"ttl":     "1h",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var post models.StatusPost
	require.NoError(t, json.Unmarshal(body, &post))

	resp, _ = doJSON(t, srv, http.MethodPost, "/v1/statuses/"+post.ID+"/view", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/statuses", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var visible struct {
		Statuses []models.StatusGroup `json:"statuses"`
	}
	require.NoError(t, json.Unmarshal(body, &visible))
	require.Len(t, visible.Statuses, 1)
	require.Equal(t, "alice", visible.Statuses[0].Owner)

	_, body = doJSON(t, srv, http.MethodGet, "/v1/statuses/mine", "alice", nil)
	var mine struct {
		Statuses []models.StatusPost `json:"statuses"`
	}
	require.NoError(t, json.Unmarshal(body, &mine))
	require.Len(t, mine.Statuses, 1)
	require.Equal(t, []string{"bob"}, mine.Statuses[0].Viewers)

	// only the owner deletes
	resp, _ = doJSON(t, srv, http.MethodDelete, "/v1/statuses/"+post.ID, "bob", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = doJSON(t, srv, http.MethodDelete, "/v1/statuses/"+post.ID, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMediaRoundTrip(t *testing.T) {
	srv := newServer(t)
	payload := []byte("not really a png")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/media", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set(auth.IdentityHeader, "alice")
	req.Header.Set("Content-Type", "image/png")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var up struct {
		Ref string `json:"ref"`
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(body, &up))
	require.NotEmpty(t, up.Ref)

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/media/"+up.Ref, "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, payload, body)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestSubscribeWebsocket(t *testing.T) {
	srv := newServer(t)

	_, body := doJSON(t, srv, http.MethodPost, "/v1/conversations", "alice", map[string]any{
		"participants": []string{"alice", "bob"},
	})
	var conv models.Conversation
	require.NoError(t, json.Unmarshal(body, &conv))

	_, body = doJSON(t, srv, http.MethodPost, "/v1/conversations/"+conv.ID+"/messages", "alice", map[string]any{
		"payload": map[string]any{"type": "text", "text": "before"},
	})
	var first models.Message
	require.NoError(t, json.Unmarshal(body, &first))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/conversations/" + conv.ID + "/subscribe?after_seq=0"
	hdr := http.Header{}
	hdr.Set(auth.IdentityHeader, "bob")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, hdr)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	// the backlog is replayed first
	var ev struct {
		Type    string          `json:"type"`
		Message *models.Message `json:"message"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, "message", ev.Type)
	require.Equal(t, first.ID, ev.Message.ID)

	// then live messages arrive
	_, body = doJSON(t, srv, http.MethodPost, "/v1/conversations/"+conv.ID+"/messages", "alice", map[string]any{
		"payload": map[string]any{"type": "text", "text": "after"},
	})
	var second models.Message
	require.NoError(t, json.Unmarshal(body, &second))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, "message", ev.Type)
	require.Equal(t, second.ID, ev.Message.ID)

	// outsiders are rejected before the upgrade
	badHdr := http.Header{}
	badHdr.Set(auth.IdentityHeader, "mallory")
	_, resp, err = websocket.DefaultDialer.Dial(wsURL, badHdr)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}
