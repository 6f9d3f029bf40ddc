package server

import (
	"context"
	"net/http"
	"time"

	"kanban/internal/kanban"
)

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.backend.Ping(ctx); err != nil {
		a.log.Error("health ping", "err", err)
		writeJSON(w, 503, map[string]any{"ok": false, "error": "database unavailable"})
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "ts": time.Now().UTC().Format(time.RFC3339)})
}

func (a *api) handleListBoards(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.ListBoards(r.Context())
	if err != nil {
		a.fail(w, "list boards", err)
		return
	}
	writeJSON(w, 200, items)
}

func (a *api) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	in, err := kanban.ParseNewBoard(body)
	if err != nil {
		a.fail(w, "create board", err)
		return
	}
	b, err := a.svc.CreateBoard(r.Context(), in)
	if err != nil {
		a.fail(w, "create board", err)
		return
	}
	writeJSON(w, 201, b)
	a.bus.Publish(Event{Type: "board.created", Entity: "board", BoardID: b.ID, Payload: b})
}

func (a *api) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := a.svc.GetBoard(r.Context(), id)
	if err != nil {
		a.fail(w, "get board", err)
		return
	}
	writeJSON(w, 200, b)
}

func (a *api) handleUpdateBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	name, err := kanban.ParseBoardRename(body)
	if err != nil {
		a.fail(w, "update board", err)
		return
	}
	b, err := a.svc.UpdateBoard(r.Context(), id, name)
	if err != nil {
		a.fail(w, "update board", err)
		return
	}
	writeJSON(w, 200, b)
	a.bus.Publish(Event{Type: "board.updated", Entity: "board", BoardID: b.ID, Payload: b})
}

func (a *api) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	deleted, err := a.svc.DeleteBoard(r.Context(), id)
	if err != nil {
		a.fail(w, "delete board", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "deleted": deleted})
	if deleted {
		a.bus.Publish(Event{Type: "board.deleted", Entity: "board", BoardID: id})
	}
}

func (a *api) handleBoardEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := a.svc.GetBoard(r.Context(), id); err != nil {
		a.fail(w, "board events", err)
		return
	}
	a.bus.ServeSSE(w, r, id)
}

func (a *api) handleListColumns(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	items, err := a.svc.ListColumns(r.Context(), id)
	if err != nil {
		a.fail(w, "list columns", err)
		return
	}
	writeJSON(w, 200, items)
}

func (a *api) handleCreateColumn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	in, err := kanban.ParseNewColumn(id, body)
	if err != nil {
		a.fail(w, "create column", err)
		return
	}
	c, err := a.svc.CreateColumn(r.Context(), in)
	if err != nil {
		a.fail(w, "create column", err)
		return
	}
	writeJSON(w, 201, c)
	a.bus.Publish(Event{Type: "column.created", Entity: "column", BoardID: c.BoardID, ColumnID: &c.ID, Payload: c})
}

func (a *api) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	// resolve the board first; the row is gone afterwards
	bid, lookupErr := a.backend.BoardIDByColumn(r.Context(), id)
	deleted, err := a.svc.DeleteColumn(r.Context(), id)
	if err != nil {
		a.fail(w, "delete column", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "deleted": deleted})
	if deleted && lookupErr == nil {
		a.bus.Publish(Event{Type: "column.deleted", Entity: "column", BoardID: bid, ColumnID: &id})
	}
}
