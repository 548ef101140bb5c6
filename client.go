package taskagent

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"taskagent/pkg/app"
	"taskagent/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client keeps one websocket connection to the control server, reading
// task messages and writing responses and progress events.
type Client struct {
	conn           *websocket.Conn
	send           chan *Message
	Connected      bool
	HostIP         string
	HostName       string
	UUID           string
	Server         *Server
	OS             string
	Arch           string
	messageHandler *MessageHandler
	app            *app.App
	mu             sync.Mutex
	stopped        bool
}

type Server struct {
	Url     *url.URL
	Load    int
	Checked bool
	mu      sync.Mutex
}

func NewClient(server *Server, messageHandler *MessageHandler, a *app.App) *Client {
	return &Client{
		Server:         server,
		send:           make(chan *Message, 16),
		messageHandler: messageHandler,
		app:            a,
	}
}

func NewServer(urlAddress string) (*Server, error) {
	u, err := url.Parse(urlAddress)
	if err != nil {
		return nil, err
	}
	return &Server{
		Url: u,
	}, nil
}

func (c *Client) logger() *logger.Logger {
	if c.app != nil && c.app.Logger != nil {
		return c.app.Logger
	}
	return logger.GetLogger()
}

func (c *Client) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(c.Server.Url.String(), nil)
	if err != nil {
		return err
	}
	// the server announces its load as the first message
	_, message, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return err
	}
	load, err := strconv.Atoi(string(message))
	if err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.Connected = true
	c.mu.Unlock()

	c.Server.mu.Lock()
	c.Server.Load = load
	c.Server.Checked = true
	c.Server.mu.Unlock()
	return nil
}

// ConnectToServers tries every configured server and returns a client
// on the reachable one with the lowest load.
func ConnectToServers(servers []*Server, messageHandler *MessageHandler, a *app.App) (*Client, error) {
	var minLoad int
	var minClient *Client
	for _, server := range servers {
		client := NewClient(server, messageHandler, a)
		if err := client.connect(); err != nil {
			continue
		}
		if minClient == nil || client.Server.Load < minLoad {
			if minClient != nil {
				minClient.conn.Close()
			}
			minLoad = client.Server.Load
			minClient = client
		} else {
			client.conn.Close()
		}
	}
	if minClient == nil {
		return nil, fmt.Errorf("failed to connect to any server")
	}
	return minClient, nil
}

// Start launches the read and write pumps. connect must have succeeded
// (directly or via ConnectToServers) before calling it.
func (c *Client) Start() error {
	if c.conn == nil {
		if err := c.connect(); err != nil {
			return err
		}
	}
	go c.readPump()
	go c.writePump()
	return nil
}

func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Connected = false
	c.stopped = true
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		c.conn.Close()
	}
}

func (c *Client) readPump() {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.logger().Errorf("websocket read failed: %s", err)
			c.mu.Lock()
			c.Connected = false
			stopped := c.stopped
			c.mu.Unlock()
			if stopped {
				return
			}
			// reconnect with a fixed backoff
			time.Sleep(5 * time.Second)
			if err := c.connect(); err != nil {
				c.logger().Errorf("reconnect failed: %s", err)
			}
			continue
		}

		msg := new(Message)
		if err = json.Unmarshal(message, msg); err != nil {
			c.logger().Errorf("message unmarshal failed: %s", err)
			continue
		}
		if c.messageHandler != nil {
			c.messageHandler.SubmitMessage(msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			b, err := json.Marshal(msg)
			if err != nil {
				c.logger().Errorf("message marshal failed: %s", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.logger().Errorf("websocket write failed: %s", err)
				return
			}
		case <-ticker.C:
			// keepalive
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) SendMessage(msg *Message) {
	c.mu.Lock()
	connected := c.Connected
	c.mu.Unlock()
	if connected {
		c.send <- msg
	}
}
