package taskagent

import (
	"context"
	"encoding/json"

	"taskagent/pkg/app"
	"taskagent/pkg/logger"
)

// Context carries one incoming message through its handler, plus the
// client used to answer it.
type Context struct {
	Client  *Client
	Message *Message
	Extra   map[string]interface{}
	Ctx     context.Context
	Cancel  context.CancelFunc
	Logger  *logger.Logger
}

func (ctx *Context) App() *app.App {
	return ctx.Client.app
}

func (ctx *Context) Unmarshal(req interface{}) error {
	return json.Unmarshal(ctx.Message.Data, req)
}

func (ctx *Context) Abort() {
	ctx.Cancel()
}

func (ctx *Context) JSONSuccess(resp interface{}) {
	ctx.SendResponse(CODE_SUCCESS, "ok", resp)
}

func (ctx *Context) JSONError(code string, msg string) {
	ctx.SendResponse(code, msg, nil)
}

func (ctx *Context) JSON(code string, msg string, resp interface{}) {
	ctx.SendResponse(code, msg, resp)
}

func (ctx *Context) SendResponse(code string, msg string, resp interface{}) {
	ctx.Message.Method = METHOD_RESPONSE
	ctx.Message.Code = code
	ctx.Message.Msg = msg
	if resp != nil {
		ctx.Message.Data, _ = json.Marshal(resp)
	}

	ctx.Client.SendMessage(ctx.Message)
}

// SendEvent emits a fire-and-forget request message (used for task
// progress notifications) without altering the original envelope.
func (ctx *Context) SendEvent(messageType string, data interface{}) {
	msg := &Message{
		From:    ctx.Message.To,
		To:      ctx.Message.From,
		Type:    messageType,
		Method:  METHOD_REQUEST,
		TraceId: ctx.Message.TraceId,
		TaskId:  ctx.Message.TaskId,
	}
	msg.Data, _ = json.Marshal(data)
	ctx.Client.SendMessage(msg)
}

func (ctx *Context) SendRequest(req interface{}) {
	ctx.Message.Method = METHOD_REQUEST
	ctx.Message.Data, _ = json.Marshal(req)
	ctx.Client.SendMessage(ctx.Message)
}
