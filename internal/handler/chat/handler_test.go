package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/weather-chat/backend/internal/model/chat"
)

type stubRelay struct {
	mu       sync.Mutex
	requests []chat.Request
	reply    string
	err      error
}

func (s *stubRelay) Handle(_ context.Context, req chat.Request) (chat.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return chat.Response{}, s.err
	}
	return chat.Response{Response: s.reply}, nil
}

func setupRouter(relay Relay) *chi.Mux {
	r := chi.NewRouter()
	New(relay, zap.NewNop()).RegisterRoutes(r)
	return r
}

func TestChatReturnsRelayResponse(t *testing.T) {
	relay := &stubRelay{reply: "It's sunny."}
	r := setupRouter(relay)

	payload := []byte(`{"message":"What's the weather in my location?","history":[{"sender":"user","text":"Hi"},{"sender":"assistant","text":"Hello"}],"user_ip":"81.2.69.142"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "It's sunny.", body["response"])

	require.Len(t, relay.requests, 1)
	got := relay.requests[0]
	assert.Equal(t, "What's the weather in my location?", got.Message)
	assert.Len(t, got.History, 2)
	assert.Equal(t, "81.2.69.142", got.IP())
}

func TestChatDefaultsMissingFields(t *testing.T) {
	relay := &stubRelay{reply: "ok"}
	r := setupRouter(relay)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, relay.requests, 1)
	assert.Empty(t, relay.requests[0].Message)
	assert.Empty(t, relay.requests[0].History)
	assert.Nil(t, relay.requests[0].UserIP)
}

func TestChatInvalidBody(t *testing.T) {
	relay := &stubRelay{}
	r := setupRouter(relay)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":`))
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, relay.requests)
}

func TestChatNullBody(t *testing.T) {
	relay := &stubRelay{}
	r := setupRouter(relay)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`null`))
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, relay.requests)
}

func TestChatRelayFailure(t *testing.T) {
	relay := &stubRelay{err: errors.New("completion failed")}
	r := setupRouter(relay)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hello"}`))
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["error"])
}

func dialWebSocket(t *testing.T, relay Relay) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(setupRouter(relay))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketRelaysEachFrame(t *testing.T) {
	relay := &stubRelay{reply: "Cloudy today."}
	conn := dialWebSocket(t, relay)

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.WriteJSON(chat.Request{Message: "weather in my location"}))

		var reply chat.Response
		require.NoError(t, conn.ReadJSON(&reply))
		assert.Equal(t, "Cloudy today.", reply.Response)
	}

	relay.mu.Lock()
	defer relay.mu.Unlock()
	assert.Len(t, relay.requests, 2)
}

func TestWebSocketReportsErrors(t *testing.T) {
	relay := &stubRelay{err: errors.New("boom")}
	conn := dialWebSocket(t, relay)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	var first errorFrame
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "invalid request body", first.Error)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`null`)))
	var nullFrame errorFrame
	require.NoError(t, conn.ReadJSON(&nullFrame))
	assert.Equal(t, "invalid request body", nullFrame.Error)

	require.NoError(t, conn.WriteJSON(chat.Request{Message: "hello"}))
	var second errorFrame
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "failed to generate response", second.Error)
}
