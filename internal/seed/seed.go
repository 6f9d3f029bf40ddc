// Package seed loads, numbers and imports board documents of the form
// {"boards":[...]}.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"kanban/internal/kanban"
)

type Document struct {
	Boards []kanban.Board `json:"boards"`
}

// Load decodes a document and validates every board tree. Fields the
// current model no longer has, like a task's free-text status, are ignored.
func Load(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode seed document: %w", err)
	}
	for i := range doc.Boards {
		normalize(&doc.Boards[i])
		if err := kanban.ValidateBoardTree(doc.Boards[i]); err != nil {
			return Document{}, fmt.Errorf("board %d (%q): %w", i, doc.Boards[i].Name, err)
		}
	}
	return doc, nil
}

func normalize(b *kanban.Board) {
	if b.Columns == nil {
		b.Columns = []kanban.Column{}
	}
	for ci := range b.Columns {
		c := &b.Columns[ci]
		if c.Tasks == nil {
			c.Tasks = []kanban.Task{}
		}
		for ti := range c.Tasks {
			if c.Tasks[ti].Subtasks == nil {
				c.Tasks[ti].Subtasks = []kanban.Subtask{}
			}
		}
	}
}

// AssignIDs numbers every entity in document order. Unless overwrite is set,
// ids already in the document are kept and the assigner is advanced past
// them first, so new ids never collide with existing ones. Parent references
// are always rewritten from the nesting.
func AssignIDs(doc *Document, a *kanban.Assigner, overwrite bool) {
	if !overwrite {
		walk(doc, func(k kanban.Kind, id *int64) { a.Observe(k, *id) })
	}
	walk(doc, func(k kanban.Kind, id *int64) {
		if overwrite || *id == 0 {
			*id = a.Next(k)
		}
	})
	for bi := range doc.Boards {
		b := &doc.Boards[bi]
		for ci := range b.Columns {
			c := &b.Columns[ci]
			c.BoardID = b.ID
			for ti := range c.Tasks {
				t := &c.Tasks[ti]
				t.ColumnID = c.ID
				for si := range t.Subtasks {
					t.Subtasks[si].TaskID = t.ID
				}
			}
		}
	}
}

func walk(doc *Document, fn func(kanban.Kind, *int64)) {
	for bi := range doc.Boards {
		b := &doc.Boards[bi]
		fn(kanban.KindBoard, &b.ID)
		for ci := range b.Columns {
			c := &b.Columns[ci]
			fn(kanban.KindColumn, &c.ID)
			for ti := range c.Tasks {
				t := &c.Tasks[ti]
				fn(kanban.KindTask, &t.ID)
				for si := range t.Subtasks {
					fn(kanban.KindSubtask, &t.Subtasks[si].ID)
				}
			}
		}
	}
}

// Write emits the document as indented JSON.
func Write(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

type Importer interface {
	MaxIDs(ctx context.Context) (map[kanban.Kind]int64, error)
	ImportBoard(ctx context.Context, b kanban.Board) error
	SyncSequences(ctx context.Context) error
}

type Failure struct {
	Board string
	ID    int64
	Err   error
}

type Report struct {
	Imported []int64
	Failed   []Failure
}

// Import writes each board in its own transaction. A failing board is
// recorded in the report and does not stop the rest. Ids missing from the
// document are assigned past the highest ids the store has ever issued.
func Import(ctx context.Context, imp Importer, doc Document) (Report, error) {
	maxIDs, err := imp.MaxIDs(ctx)
	if err != nil {
		return Report{}, err
	}
	a := kanban.NewAssigner()
	for k, id := range maxIDs {
		a.Observe(k, id)
	}
	AssignIDs(&doc, a, false)

	var rep Report
	for _, b := range doc.Boards {
		if err := imp.ImportBoard(ctx, b); err != nil {
			rep.Failed = append(rep.Failed, Failure{Board: b.Name, ID: b.ID, Err: err})
			continue
		}
		rep.Imported = append(rep.Imported, b.ID)
	}
	if err := imp.SyncSequences(ctx); err != nil {
		return rep, err
	}
	return rep, nil
}
