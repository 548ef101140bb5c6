package v1

import (
	"time"

	"taskagent"
)

type HeartBeatMsg struct {
	Time int64 `json:"time"`
}

type AgentController struct {
	handler *taskagent.MessageHandler
}

func NewAgentController(handler *taskagent.MessageHandler) *AgentController {
	controller := &AgentController{
		handler: handler,
	}
	controller.registerHandlers()
	return controller
}

func (ac *AgentController) registerHandlers() {
	ac.handler.RegisterHandler("v1/Register", ac.handleRegister)
	ac.handler.RegisterHandler("v1/Ping", ac.handlePing)
}

// handleRegister answers the control server's identity probe with the
// agent's host information.
func (ac *AgentController) handleRegister(ctx *taskagent.Context) error {
	info := taskagent.CollectAgentInfo()
	ctx.Client.UUID = info.UUID
	ctx.Client.HostName = info.Hostname
	ctx.Client.HostIP = info.IP
	ctx.Client.OS = info.OS
	ctx.Client.Arch = info.Arch
	ctx.JSONSuccess(info)
	return nil
}

func (ac *AgentController) handlePing(ctx *taskagent.Context) error {
	ctx.JSONSuccess(HeartBeatMsg{Time: time.Now().Unix()})
	return nil
}
