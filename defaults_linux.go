package taskagent

import (
	"os"
	"strings"
)

const DefaultDownloadDir = "/tmp"

func getMachineID() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if b, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	return ""
}

func getHostName() string {
	if hostname, err := os.Hostname(); err == nil {
		return hostname
	}
	return ""
}
