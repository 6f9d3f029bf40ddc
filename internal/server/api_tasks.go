package server

import (
	"net/http"

	"kanban/internal/kanban"
)

func (a *api) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	in, err := kanban.ParseNewTask(body)
	if err != nil {
		a.fail(w, "create task", err)
		return
	}
	t, err := a.svc.CreateTask(r.Context(), in)
	if err != nil {
		a.fail(w, "create task", err)
		return
	}
	writeJSON(w, 201, t)
	if bid, e := a.backend.BoardIDByColumn(r.Context(), t.ColumnID); e == nil {
		a.bus.Publish(Event{Type: "task.created", Entity: "task", BoardID: bid, ColumnID: &t.ColumnID, Payload: t})
	}
}

func (a *api) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := a.svc.GetTask(r.Context(), id)
	if err != nil {
		a.fail(w, "get task", err)
		return
	}
	writeJSON(w, 200, t)
}

func (a *api) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	in, err := kanban.ParseTaskUpdate(id, body)
	if err != nil {
		a.fail(w, "update task", err)
		return
	}
	var fromColumn int64
	if prev, e := a.svc.GetTask(r.Context(), id); e == nil {
		fromColumn = prev.ColumnID
	}
	t, err := a.svc.UpdateTask(r.Context(), in)
	if err != nil {
		a.fail(w, "update task", err)
		return
	}
	writeJSON(w, 200, t)

	bid, e := a.backend.BoardIDByColumn(r.Context(), t.ColumnID)
	if e != nil {
		return
	}
	typ := "task.updated"
	if fromColumn != 0 && fromColumn != t.ColumnID {
		typ = "task.moved"
	}
	a.bus.Publish(Event{Type: typ, Entity: "task", BoardID: bid, ColumnID: &t.ColumnID, Payload: t})
}

func (a *api) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	bid, lookupErr := a.backend.BoardIDByTask(r.Context(), id)
	deleted, err := a.svc.DeleteTask(r.Context(), id)
	if err != nil {
		a.fail(w, "delete task", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "deleted": deleted})
	if deleted && lookupErr == nil {
		a.bus.Publish(Event{Type: "task.deleted", Entity: "task", BoardID: bid, Payload: map[string]int64{"id": id}})
	}
}

func (a *api) handleSetSubtaskCompleted(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	done, err := kanban.ParseSubtaskToggle(body)
	if err != nil {
		a.fail(w, "set subtask", err)
		return
	}
	s, err := a.svc.SetSubtaskCompleted(r.Context(), id, done)
	if err != nil {
		a.fail(w, "set subtask", err)
		return
	}
	writeJSON(w, 200, s)
	if bid, e := a.backend.BoardIDBySubtask(r.Context(), s.ID); e == nil {
		a.bus.Publish(Event{Type: "subtask.updated", Entity: "subtask", BoardID: bid, Payload: s})
	}
}
