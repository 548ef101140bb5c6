package v1

import (
	"encoding/json"

	"taskagent"
	"taskagent/pkg/app"
	"taskagent/pkg/async"
	"taskagent/pkg/task"

	"github.com/google/uuid"
)

type ReqTaskInfo struct {
	TaskID string `json:"task_id"`
}

type TaskController struct {
	handler *taskagent.MessageHandler
}

func NewTaskController(handler *taskagent.MessageHandler) *TaskController {
	controller := &TaskController{
		handler: handler,
	}
	controller.registerHandlers()
	return controller
}

func (tc *TaskController) registerHandlers() {
	tc.handler.RegisterHandler("v1/ExecuteFetch", tc.handleExecuteFetch)
	tc.handler.RegisterHandler("v1/DownloadFile", tc.handleDownloadFile)
	tc.handler.RegisterHandler("v1/CancelTask", tc.handleCancelTask)
	tc.handler.RegisterHandler("v1/GetTaskInfo", tc.handleGetTaskInfo)
}

func (tc *TaskController) handleExecuteFetch(ctx *taskagent.Context) error {
	req := new(taskagent.FetchTaskRequest)
	if err := ctx.Unmarshal(req); err != nil {
		ctx.JSONError(taskagent.CODE_ERROR, err.Error())
		return err
	}
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	}
	ctx.Message.TaskId = req.TaskID

	a := ctx.App()
	rec := task.NewRecord(req.TaskID, taskagent.TaskTypeFetch, ctx.Message.Data)

	t := async.New(a.Loop, a.Pool, async.Hooks[*taskagent.FetchTaskRequest, taskagent.FetchProgress, *taskagent.FetchResult]{
		OnSetup: func() {
			markRunning(a, rec)
		},
		Run: taskagent.RunFetchTask,
		OnProgress: func(ev taskagent.FetchProgress) {
			ctx.SendEvent("v1/TaskProgress", ev)
		},
		OnComplete: func(res *taskagent.FetchResult) {
			finishCompleted(ctx, a, rec, res)
		},
		OnCancelled: func(fault error) {
			finishCancelled(ctx, a, rec, fault)
		},
	})

	return tc.launch(ctx, a, rec, func() error { return t.Start(req) }, t.RequestCancel)
}

func (tc *TaskController) handleDownloadFile(ctx *taskagent.Context) error {
	req := new(taskagent.DownloadRequest)
	if err := ctx.Unmarshal(req); err != nil {
		ctx.JSONError(taskagent.CODE_ERROR, err.Error())
		return err
	}
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	}
	ctx.Message.TaskId = req.TaskID

	a := ctx.App()
	dir := a.Config.DownloadDir
	if dir == "" {
		dir = taskagent.DefaultDownloadDir
	}
	req.Dest = req.ResolveDest(dir)

	rec := task.NewRecord(req.TaskID, taskagent.TaskTypeDownload, ctx.Message.Data)

	t := async.New(a.Loop, a.Pool, async.Hooks[*taskagent.DownloadRequest, taskagent.DownloadProgress, *taskagent.DownloadResult]{
		OnSetup: func() {
			markRunning(a, rec)
		},
		Run: taskagent.RunDownloadTask,
		OnProgress: func(ev taskagent.DownloadProgress) {
			ctx.SendEvent("v1/TaskProgress", ev)
		},
		OnComplete: func(res *taskagent.DownloadResult) {
			finishCompleted(ctx, a, rec, res)
		},
		OnCancelled: func(fault error) {
			finishCancelled(ctx, a, rec, fault)
		},
	})

	return tc.launch(ctx, a, rec, func() error { return t.Start(req) }, t.RequestCancel)
}

// launch registers the handle and starts the task from the main loop.
func (tc *TaskController) launch(ctx *taskagent.Context, a *app.App, rec *task.Record, start func() error, requestCancel func()) error {
	handle := &task.Handle{
		Record: rec,
		Cancel: func() { a.Loop.Post(requestCancel) },
	}
	if err := a.TaskManager.Add(handle); err != nil {
		ctx.JSONError(taskagent.CODE_ERROR, err.Error())
		return err
	}
	if err := a.TaskStore.Put(rec); err != nil {
		ctx.Logger.Errorf("persist task record failed: %s", err)
	}

	a.Loop.Post(func() {
		if err := start(); err != nil {
			ctx.Logger.Errorf("start task %s failed: %s", rec.ID, err)
		}
	})
	return nil
}

func (tc *TaskController) handleCancelTask(ctx *taskagent.Context) error {
	var req ReqTaskInfo
	if err := ctx.Unmarshal(&req); err != nil {
		ctx.JSONError(taskagent.CODE_ERROR, err.Error())
		return err
	}

	a := ctx.App()
	h, err := a.TaskManager.Get(req.TaskID)
	if err != nil {
		ctx.JSONError(taskagent.CODE_ERROR, err.Error())
		return err
	}

	// the record is owned by the loop once the task is started
	a.Loop.Post(func() {
		h.Record.SetStatus(task.StatusCancelling)
		a.TaskStore.Put(h.Record)
		ctx.JSONSuccess(h.Record)
	})
	h.Cancel()
	return nil
}

func (tc *TaskController) handleGetTaskInfo(ctx *taskagent.Context) error {
	var req ReqTaskInfo
	if err := ctx.Unmarshal(&req); err != nil {
		ctx.JSONError(taskagent.CODE_ERROR, err.Error())
		return err
	}

	a := ctx.App()
	a.Loop.Post(func() {
		// in-flight first, then the persisted record of finished tasks
		if h, err := a.TaskManager.Get(req.TaskID); err == nil {
			ctx.JSONSuccess(h.Record)
			return
		}

		rec, err := a.TaskStore.Get(req.TaskID)
		if err != nil {
			ctx.JSONError(taskagent.CODE_ERROR, err.Error())
			return
		}
		ctx.JSONSuccess(rec)
	})
	return nil
}

func markRunning(a *app.App, rec *task.Record) {
	rec.SetStatus(task.StatusRunning)
	a.TaskStore.Put(rec)
}

func finishCompleted(ctx *taskagent.Context, a *app.App, rec *task.Record, result interface{}) {
	rec.Result, _ = json.Marshal(result)
	rec.SetStatus(task.StatusCompleted)
	a.TaskStore.Put(rec)
	a.TaskManager.Remove(rec.ID)
	ctx.JSONSuccess(result)
}

func finishCancelled(ctx *taskagent.Context, a *app.App, rec *task.Record, fault error) {
	rec.SetStatus(task.StatusCancelled)
	if fault != nil {
		rec.Error = fault.Error()
	}
	a.TaskStore.Put(rec)
	a.TaskManager.Remove(rec.ID)

	if fault != nil {
		ctx.JSONError(taskagent.CODE_ERROR, fault.Error())
	} else {
		ctx.JSONError(taskagent.CODE_CANCELLED, "task cancelled")
	}
}
