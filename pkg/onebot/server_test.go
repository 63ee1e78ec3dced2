package onebot_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porterhq/porter/pkg/onebot"
)

func newTestServer(t *testing.T, token string) (*onebot.Server, *httptest.Server) {
	t.Helper()
	srv := onebot.NewServer(zerolog.Nop(), "127.0.0.1:0", token)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func dialWS(ts *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	return websocket.DefaultDialer.Dial(url, header)
}

func adapterHeader(selfID, userAgent string) http.Header {
	header := make(http.Header)
	header.Set("X-Self-ID", selfID)
	header.Set("User-Agent", userAgent)
	return header
}

func waitEvent(t *testing.T, srv *onebot.Server) *onebot.EndpointEvent {
	t.Helper()
	select {
	case evt := <-srv.Events():
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestServerAuth(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		authHeader string
		wantStatus int
	}{
		{name: "valid token", token: "secret", authHeader: "Bearer secret"},
		{name: "wrong token", token: "secret", authHeader: "Bearer wrong", wantStatus: http.StatusUnauthorized},
		{name: "missing header", token: "secret", wantStatus: http.StatusUnauthorized},
		{name: "no token configured", token: ""},
		{name: "unexpected header", token: "", authHeader: "Bearer anything", wantStatus: http.StatusUnauthorized},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, ts := newTestServer(t, test.token)
			header := adapterHeader("10001", "LLOneBot/4.0")
			if test.authHeader != "" {
				header.Set("Authorization", test.authHeader)
			}
			conn, resp, err := dialWS(ts, header)
			if test.wantStatus == 0 {
				require.NoError(t, err)
				conn.Close()
				return
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			assert.Equal(t, test.wantStatus, resp.StatusCode)
		})
	}
}

func TestServerRequiresIdentityHeaders(t *testing.T) {
	_, ts := newTestServer(t, "")

	header := make(http.Header)
	header.Set("User-Agent", "LLOneBot/4.0")
	_, resp, err := dialWS(ts, header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	header = make(http.Header)
	header.Set("X-Self-ID", "10001")
	// Suppress the default Go-http-client User-Agent so the request truly
	// carries no User-Agent header.
	header["User-Agent"] = nil
	_, resp, err = dialWS(ts, header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerPlatformInference(t *testing.T) {
	tests := []struct {
		userAgent string
		want      onebot.Platform
	}{
		{"LLOneBot/4.0", onebot.PlatformQQ},
		{"WeChatFerry/39.0", onebot.PlatformWeChat},
		{"SomethingElse/1.0", onebot.PlatformQQ},
	}
	for _, test := range tests {
		t.Run(test.userAgent, func(t *testing.T) {
			srv, ts := newTestServer(t, "")
			conn, _, err := dialWS(ts, adapterHeader("10001", test.userAgent))
			require.NoError(t, err)
			defer conn.Close()

			raw := `{"post_type":"meta_event","meta_event_type":"lifecycle","sub_type":"connect","self_id":10001}`
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))

			evt := waitEvent(t, srv)
			assert.Equal(t, onebot.Endpoint{Platform: test.want, ID: "10001"}, evt.Endpoint)
		})
	}
}

func TestServerEventFlow(t *testing.T) {
	srv, ts := newTestServer(t, "secret")
	header := adapterHeader("10001", "LLOneBot/4.0")
	header.Set("Authorization", "Bearer secret")
	conn, _, err := dialWS(ts, header)
	require.NoError(t, err)
	defer conn.Close()

	raw := `{
		"post_type": "message",
		"message_type": "private",
		"self_id": 10001,
		"user_id": 42,
		"message_id": 7,
		"message": [{"type": "text", "data": {"text": "hi"}}],
		"sender": {"user_id": 42, "nickname": "A"}
	}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))

	evt := waitEvent(t, srv)
	assert.Equal(t, onebot.Endpoint{Platform: onebot.PlatformQQ, ID: "10001"}, evt.Endpoint)
	msg, ok := evt.Event.(*onebot.MessageEvent)
	require.True(t, ok)
	assert.Equal(t, onebot.ID("42"), msg.UserID)

	// Binary frames and garbage must not kill the reader.
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x00}))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
	waitEvent(t, srv)
}

func TestServerCall(t *testing.T) {
	srv, ts := newTestServer(t, "")
	conn, _, err := dialWS(ts, adapterHeader("10001", "LLOneBot/4.0"))
	require.NoError(t, err)
	defer conn.Close()

	// The connect event doubles as a registration barrier.
	connected := `{"post_type":"meta_event","meta_event_type":"lifecycle","sub_type":"connect","self_id":10001}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(connected)))
	waitEvent(t, srv)

	go func() {
		_, data, err := conn.ReadMessage()
		if !assert.NoError(t, err) {
			return
		}
		var req onebot.Request
		if !assert.NoError(t, json.Unmarshal(data, &req)) {
			return
		}
		assert.Equal(t, "get_login_info", req.Action)
		reply := fmt.Sprintf(`{"echo":%q,"status":"ok","retcode":0,"data":{"user_id":10001,"nickname":"bot"}}`, req.Echo)
		assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(reply)))
	}()

	endpoint := onebot.Endpoint{Platform: onebot.PlatformQQ, ID: "10001"}
	resp, err := srv.Call(context.Background(), endpoint, onebot.GetLoginInfo())
	require.NoError(t, err)
	require.True(t, resp.OK())
	user, err := onebot.DecodeData[onebot.UserInfo](resp)
	require.NoError(t, err)
	assert.Equal(t, "bot", user.Nickname)
}

func TestServerCallUnknownEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")
	endpoint := onebot.Endpoint{Platform: onebot.PlatformQQ, ID: "404"}
	_, err := srv.Call(context.Background(), endpoint, onebot.GetLoginInfo())
	require.ErrorContains(t, err, "not found")
}

func TestServerDisconnectEvent(t *testing.T) {
	srv, ts := newTestServer(t, "")
	conn, _, err := dialWS(ts, adapterHeader("10001", "LLOneBot/4.0"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	evt := waitEvent(t, srv)
	meta, ok := evt.Event.(*onebot.MetaEvent)
	require.True(t, ok)
	assert.Equal(t, "lifecycle", meta.MetaEventType)
	assert.Equal(t, onebot.LifecycleDisconnect, meta.SubType)
	assert.Equal(t, onebot.ID("10001"), meta.SelfID)

	// The endpoint is gone from the routing table.
	endpoint := onebot.Endpoint{Platform: onebot.PlatformQQ, ID: "10001"}
	_, err = srv.Call(context.Background(), endpoint, onebot.GetLoginInfo())
	require.ErrorContains(t, err, "not found")
}
