package controller

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/broadcaster"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/registry"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/repository/room/inmemory"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/service/room"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/session"
)

const waitFor = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	*httptest.Server
	broadcaster *broadcaster.Local
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	logger := discardLogger()
	b := broadcaster.NewLocal(registry.New(logger), logger)
	svc := room.NewService(inmemory.NewRepo(), logger)
	srv := httptest.NewServer(NewController(svc, b, logger, cfg).GetMux())
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, broadcaster: b}
}

func (s *testServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s *testServer) waitMembers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, members := s.broadcaster.Stats()
		return members == n
	}, waitFor, 5*time.Millisecond)
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(waitFor))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp, err := http.Get(srv.URL + "/api/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestEnsureRoom(t *testing.T) {
	srv := newTestServer(t, Config{})
	post := func(body string) *http.Response {
		resp, err := http.Post(srv.URL+"/api/v1/rooms", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		return resp
	}

	resp := post(`{"therapist_id":"t1","patient_id":"p1"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["created"])
	assert.Equal(t, "1", data["room"].(map[string]any)["id"])

	resp = post(`{"therapist_id":"t1","patient_id":"p1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, false, body["data"].(map[string]any)["created"])

	// trailing slash is accepted
	resp, err := http.Post(srv.URL+"/api/v1/rooms/", "application/json", strings.NewReader(`{"therapist_id":"t2","patient_id":"p2"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestEnsureRoom_BadRequest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKey    string
	}{
		{name: "empty body", body: ``, wantStatus: http.StatusUnprocessableEntity, wantKey: "error"},
		{name: "not json", body: `{`, wantStatus: http.StatusUnprocessableEntity, wantKey: "error"},
		{name: "unknown field", body: `{"therapist_id":"t","patient_id":"p","extra":1}`, wantStatus: http.StatusUnprocessableEntity, wantKey: "error"},
		{name: "missing patient", body: `{"therapist_id":"t"}`, wantStatus: http.StatusBadRequest, wantKey: "error"},
		{name: "too long", body: `{"therapist_id":"` + strings.Repeat("t", 65) + `","patient_id":"p"}`, wantStatus: http.StatusBadRequest, wantKey: "error"},
		{name: "same participant", body: `{"therapist_id":"x","patient_id":"x"}`, wantStatus: http.StatusBadRequest, wantKey: "error"},
	}

	srv := newTestServer(t, Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/rooms", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, decodeBody(t, resp), tt.wantKey)
		})
	}
}

func TestGetRoom(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp, err := http.Get(srv.URL + "/api/v1/rooms/1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/api/v1/rooms", "application/json", strings.NewReader(`{"therapist_id":"t1","patient_id":"p1"}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/v1/rooms/1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, "t1", data["therapist_id"])

	resp, err = http.Get(srv.URL + "/api/v1/patients/p1/room")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data = decodeBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, "1", data["id"])

	resp, err = http.Get(srv.URL + "/api/v1/patients/p2/room")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestJoinRoom_ChatEcho(t *testing.T) {
	srv := newTestServer(t, Config{})

	a := srv.dial(t, "/ws/room/42/")
	b := srv.dial(t, "/ws/room/42")
	srv.waitMembers(t, 2)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"message":"hola"}`)))

	assert.JSONEq(t, `{"message":"hola"}`, readFrame(t, b))
	assert.JSONEq(t, `{"message":"hola"}`, readFrame(t, a))
}

func TestJoinRoom_ExcludeSender(t *testing.T) {
	srv := newTestServer(t, Config{ExcludeSender: true})

	a := srv.dial(t, "/ws/room/42/")
	b := srv.dial(t, "/ws/room/42/")
	srv.waitMembers(t, 2)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"action":"seek","time":30}`)))
	assert.JSONEq(t, `{"action":"seek","time":30}`, readFrame(t, b))

	a.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := a.ReadMessage()
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestJoinRoom_RoomsAreIsolated(t *testing.T) {
	srv := newTestServer(t, Config{})

	a := srv.dial(t, "/ws/room/1/")
	other := srv.dial(t, "/ws/room/2/")
	srv.waitMembers(t, 2)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"action":"play"}`)))
	assert.JSONEq(t, `{"action":"play","time":null}`, readFrame(t, a))

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
}

func TestJoinRoom_MalformedFrameCloses(t *testing.T) {
	srv := newTestServer(t, Config{})

	a := srv.dial(t, "/ws/room/42/")
	srv.waitMembers(t, 1)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`not json`)))

	a.SetReadDeadline(time.Now().Add(waitFor))
	_, _, err := a.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, session.CloseInvalidPayload, closeErr.Code)
	srv.waitMembers(t, 0)
}

func TestJoinRoom_BinaryFrameCloses(t *testing.T) {
	srv := newTestServer(t, Config{})

	a := srv.dial(t, "/ws/room/42/")
	srv.waitMembers(t, 1)

	require.NoError(t, a.WriteMessage(websocket.BinaryMessage, []byte{0xff}))

	a.SetReadDeadline(time.Now().Add(waitFor))
	_, _, err := a.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, session.CloseUnsupportedData, closeErr.Code)
}

func TestJoinRoom_InvalidRoomID(t *testing.T) {
	srv := newTestServer(t, Config{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/room/" + strings.Repeat("x", 65) + "/"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJoinRoom_StrictRooms(t *testing.T) {
	srv := newTestServer(t, Config{StrictRooms: true})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/room/1/"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	created, err := http.Post(srv.URL+"/api/v1/rooms", "application/json", strings.NewReader(`{"therapist_id":"t1","patient_id":"p1"}`))
	require.NoError(t, err)
	created.Body.Close()

	srv.dial(t, "/ws/room/1/")
	srv.waitMembers(t, 1)
}

func TestStats(t *testing.T) {
	srv := newTestServer(t, Config{})

	srv.dial(t, "/ws/room/a/")
	srv.dial(t, "/ws/room/a/")
	srv.dial(t, "/ws/room/b/")
	srv.waitMembers(t, 3)

	resp, err := http.Get(srv.URL + "/api/v1/stats")
	require.NoError(t, err)
	data := decodeBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, float64(2), data["rooms"])
	assert.Equal(t, float64(3), data["members"])
}
