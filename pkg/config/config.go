package config

import (
	"encoding/json"
	"log"
	"net"
	"os"
	"strings"
)

const (
	Version = "0.1.0"
)

type Config struct {
	ServerAddress []string  `json:"serverAddress"` // control server addresses
	LogConfig     LogConfig `json:"logConfig"`
	TaskStorePath string    `json:"taskStorePath"` // leveldb directory for task records
	Workers       int       `json:"workers"`       // background pool size
	QueueSize     int       `json:"queueSize"`     // pool and loop queue capacity
	DownloadDir   string    `json:"downloadDir"`   // default destination for download tasks
}

type LogConfig struct {
	Level       string `json:"level"`
	Format      string `json:"format"` // json or console
	MaxSize     int    `json:"maxSize"` // megabytes
	MaxAge      int    `json:"maxAge"`  // days
	Compress    bool   `json:"compress"`
	Filename    string `json:"filename"`
	ShowConsole bool   `json:"showConsole"`
}

var config *Config

func InitConfig() {
	loadConfigFile()
}

func loadConfigFile() {
	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.json"
	}

	b, err := os.ReadFile(configFile)
	if err != nil {
		log.Fatalf("read config file failed: %s", err)
	}
	config = new(Config)
	if err = json.Unmarshal(b, config); err != nil {
		log.Fatalf("parse config file failed: %s", err)
	}
	applyDefaults(config)
}

func applyDefaults(c *Config) {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.TaskStorePath == "" {
		c.TaskStorePath = "taskstore"
	}
}

func GetConfig() *Config {
	return config
}

// GetLocalIPs returns the IPv4 addresses of all non-loopback interfaces,
// comma separated, for agent registration.
func GetLocalIPs() (string, error) {
	var ips []string

	interfaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			switch addr := addr.(type) {
			case *net.IPNet:
				if addr.IP.To4() != nil {
					ips = append(ips, addr.IP.String())
				}
			case *net.IPAddr:
				if addr.IP.To4() != nil {
					ips = append(ips, addr.IP.String())
				}
			}
		}
	}

	return strings.Join(ips, ","), nil
}
