package taskagent

import (
	"runtime"

	"taskagent/pkg/config"

	"github.com/google/uuid"
)

// AgentInfo identifies this agent to the control server.
type AgentInfo struct {
	UUID     string `json:"uuid"`
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	Version  string `json:"version"`
}

// CollectAgentInfo gathers host identity for registration. When the
// platform exposes no stable machine ID a random UUID is generated.
func CollectAgentInfo() AgentInfo {
	id := getMachineID()
	if id == "" {
		id = uuid.NewString()
	}
	ips, _ := config.GetLocalIPs()
	return AgentInfo{
		UUID:     id,
		Hostname: getHostName(),
		IP:       ips,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Version:  config.Version,
	}
}
