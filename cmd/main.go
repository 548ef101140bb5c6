package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskagent"
	v1 "taskagent/controller/v1"
	"taskagent/pkg/app"
)

func main() {
	a := app.NewApp()
	a.Pool.Start()

	handler := taskagent.NewMessageHandler(a.Config.QueueSize)
	v1.NewTaskController(handler)
	v1.NewAgentController(handler)

	servers := make([]*taskagent.Server, 0, len(a.Config.ServerAddress))
	for _, addr := range a.Config.ServerAddress {
		server, err := taskagent.NewServer(addr)
		if err != nil {
			a.Logger.Fatalf("bad server address %s: %s", addr, err)
		}
		servers = append(servers, server)
	}

	var client *taskagent.Client
	for {
		c, err := taskagent.ConnectToServers(servers, handler, a)
		if err != nil {
			a.Logger.Errorf("connect to servers failed: %s", err)
			time.Sleep(5 * time.Second)
			continue
		}
		client = c
		break
	}

	handler.HandleMessages(client, a.Config.Workers)

	if err := client.Start(); err != nil {
		a.Logger.Fatalf("start client failed: %s", err)
	}
	a.Logger.Infof("connected to %s", client.Server.Url)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		client.Stop()
		a.Shutdown()
	}()

	// the main goroutine is the main context: every task hook runs here
	a.Loop.Run()
}
