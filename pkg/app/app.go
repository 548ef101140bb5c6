package app

import (
	"taskagent/pkg/async"
	"taskagent/pkg/config"
	"taskagent/pkg/logger"
	"taskagent/pkg/task"
)

// App wires the pieces every handler needs: config, logging, the main
// loop and worker pool of the async core, and the task registries.
type App struct {
	Logger      *logger.Logger
	Config      *config.Config
	Loop        *async.Loop
	Pool        *async.Pool
	TaskManager *task.Manager
	TaskStore   *task.Store
}

func NewApp() *App {
	app := &App{}
	config.InitConfig()
	app.Config = config.GetConfig()
	app.Logger = logger.NewLogger(app.Config.LogConfig)
	app.Loop = async.NewLoop(app.Config.QueueSize)
	app.Pool = async.NewPool(app.Config.Workers, app.Config.QueueSize)
	app.TaskManager = task.NewManager()

	var err error
	app.TaskStore, err = task.NewStore(app.Config.TaskStorePath)
	if err != nil {
		app.Logger.Fatalf("open task store failed: %s", err)
	}
	return app
}

// Shutdown stops the pool, drains the loop and closes the store.
func (a *App) Shutdown() {
	a.Pool.Stop()
	a.Loop.Close()
	if a.TaskStore != nil {
		a.TaskStore.Close()
	}
}
