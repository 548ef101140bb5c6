package taskagent

import "os"

const DefaultDownloadDir = `C:\Temp`

func getMachineID() string {
	return ""
}

func getHostName() string {
	if hostname, err := os.Hostname(); err == nil {
		return hostname
	}
	return ""
}
