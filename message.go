package taskagent

import (
	"context"
	"encoding/json"

	"taskagent/pkg/logger"
)

const (
	METHOD_REQUEST  = "request"
	METHOD_RESPONSE = "response"

	CODE_SUCCESS   = "success"
	CODE_ERROR     = "error"
	CODE_CANCELLED = "cancelled"
)

// Message is the envelope exchanged with the control server.
type Message struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Id      string          `json:"id"`
	Type    string          `json:"type"`   // handler routing key, e.g. "v1/ExecuteFetch"
	Method  string          `json:"method"` // request or response
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Msg     string          `json:"msg"`
	TraceId string          `json:"traceId"`
	TaskId  string          `json:"taskId"`
}

type HandlerFunc func(ctx *Context) error

// MessageHandler routes incoming messages to registered handlers on a
// small pool of worker goroutines.
type MessageHandler struct {
	handlers map[string]HandlerFunc
	in       chan *Message
}

func NewMessageHandler(bufferSize int) *MessageHandler {
	return &MessageHandler{
		handlers: make(map[string]HandlerFunc),
		in:       make(chan *Message, bufferSize),
	}
}

func (h *MessageHandler) RegisterHandler(messageType string, handler HandlerFunc) {
	if _, exists := h.handlers[messageType]; exists {
		logger.Fatalf("handler already registered for message type: %s", messageType)
	}

	h.handlers[messageType] = handler
}

func (h *MessageHandler) HandleMessages(client *Client, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					client.logger().Errorf("recovered from panic in message handler: %v", r)
				}
			}()

			for msg := range h.in {
				ctx, cancel := context.WithCancel(context.Background())

				mctx := &Context{
					Client:  client,
					Message: msg,
					Ctx:     ctx,
					Cancel:  cancel,
					Extra:   make(map[string]interface{}),
					Logger:  client.logger().With("traceId", msg.TraceId, "taskId", msg.TaskId),
				}

				if handler, ok := h.handlers[msg.Type]; ok {
					if err := handler(mctx); err != nil {
						mctx.Logger.Errorf("error handling message type %s: %s", msg.Type, err)
					}
				} else {
					mctx.Logger.Errorf("no handler registered for message type: %s", msg.Type)
				}
			}
		}()
	}
}

func (h *MessageHandler) SubmitMessage(msg *Message) {
	h.in <- msg
}
