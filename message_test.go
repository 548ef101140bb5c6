package taskagent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskagent/pkg/app"
	"taskagent/pkg/config"
	"taskagent/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp() *app.App {
	return &app.App{
		Logger: logger.NewLogger(config.LogConfig{Level: "error"}),
	}
}

func TestMessageHandlerDispatch(t *testing.T) {
	h := NewMessageHandler(4)
	got := make(chan string, 1)
	h.RegisterHandler("v1/Echo", func(ctx *Context) error {
		var data map[string]string
		if err := ctx.Unmarshal(&data); err != nil {
			return err
		}
		got <- data["key"]
		return nil
	})

	client := NewClient(nil, h, testApp())
	h.HandleMessages(client, 2)

	h.SubmitMessage(&Message{
		Type: "v1/Echo",
		Data: json.RawMessage(`{"key":"value"}`),
	})

	select {
	case v := <-got:
		assert.Equal(t, "value", v)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestMessageHandlerUnknownTypeDoesNotPanic(t *testing.T) {
	h := NewMessageHandler(4)
	got := make(chan struct{})
	h.RegisterHandler("v1/Alive", func(*Context) error {
		close(got)
		return nil
	})
	client := NewClient(nil, h, testApp())
	h.HandleMessages(client, 1)

	h.SubmitMessage(&Message{Type: "v1/Nope"})
	// a follow-up message on the same worker proves it survived
	h.SubmitMessage(&Message{Type: "v1/Alive"})

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive an unknown message type")
	}
}

func TestClientRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan *Message, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		// announce load, then send one request and wait for the reply
		conn.WriteMessage(websocket.TextMessage, []byte("1"))
		out, _ := json.Marshal(&Message{Type: "v1/Echo", Data: json.RawMessage(`{"key":"ping"}`)})
		conn.WriteMessage(websocket.TextMessage, out)

		_, reply, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg := new(Message)
		if json.Unmarshal(reply, msg) == nil {
			received <- msg
		}
	}))
	defer srv.Close()

	h := NewMessageHandler(4)
	h.RegisterHandler("v1/Echo", func(ctx *Context) error {
		ctx.JSONSuccess(map[string]string{"key": "pong"})
		return nil
	})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	server, err := NewServer(wsURL)
	require.NoError(t, err)

	client, err := ConnectToServers([]*Server{server}, h, testApp())
	require.NoError(t, err)
	assert.Equal(t, 1, client.Server.Load)

	h.HandleMessages(client, 1)
	require.NoError(t, client.Start())
	defer client.Stop()

	select {
	case msg := <-received:
		assert.Equal(t, METHOD_RESPONSE, msg.Method)
		assert.Equal(t, CODE_SUCCESS, msg.Code)
		assert.JSONEq(t, `{"key":"pong"}`, string(msg.Data))
	case <-time.After(3 * time.Second):
		t.Fatal("server did not receive the reply")
	}
}
