package taskagent

import "os"

const DefaultDownloadDir = "/tmp"

func getMachineID() string {
	// no stable file-based machine ID on macOS; the caller falls back
	// to a generated UUID
	return ""
}

func getHostName() string {
	if hostname, err := os.Hostname(); err == nil {
		return hostname
	}
	return ""
}
