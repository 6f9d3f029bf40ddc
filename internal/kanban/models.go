package kanban

import "encoding/json"

type Board struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name" validate:"min=1"`
	Columns []Column `json:"columns" validate:"dive"`
}

// BoardSummary is the selector view of a board: no nested data.
type BoardSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Column struct {
	ID      int64  `json:"id"`
	BoardID int64  `json:"boardId"`
	Name    string `json:"name" validate:"min=1"`
	Tasks   []Task `json:"tasks" validate:"dive"`
}

type ColumnSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Task status is the column it belongs to; there is no separate status field.
type Task struct {
	ID          int64     `json:"id"`
	ColumnID    int64     `json:"columnId"`
	Title       string    `json:"title" validate:"min=1"`
	Description string    `json:"description"`
	Subtasks    []Subtask `json:"subtasks" validate:"dive"`
}

// CompletedSubtasks counts the completed subtasks. It is always derived,
// never stored.
func (t Task) CompletedSubtasks() int {
	n := 0
	for _, st := range t.Subtasks {
		if st.IsCompleted {
			n++
		}
	}
	return n
}

func (t Task) MarshalJSON() ([]byte, error) {
	type plain Task
	return json.Marshal(struct {
		plain
		CompletedSubtasks int `json:"completedSubtasks"`
	}{plain(t), t.CompletedSubtasks()})
}

type Subtask struct {
	ID          int64  `json:"id"`
	TaskID      int64  `json:"taskId"`
	Title       string `json:"title" validate:"min=1"`
	IsCompleted bool   `json:"isCompleted"`
}

// Inputs accepted by the mutation operations. Referenced ids are not
// checked here: whether they exist is answered by the store.

type NewBoard struct {
	Name    string   `json:"name" validate:"min=1"`
	Columns []string `json:"columns" validate:"dive,min=1"`
}

type NewColumn struct {
	BoardID int64  `json:"boardId"`
	Name    string `json:"name" validate:"min=1"`
}

type NewTask struct {
	ColumnID    int64        `json:"columnId"`
	Title       string       `json:"title" validate:"min=1"`
	Description string       `json:"description"`
	Subtasks    []NewSubtask `json:"subtasks" validate:"dive"`
}

type NewSubtask struct {
	Title       string `json:"title" validate:"min=1"`
	IsCompleted bool   `json:"isCompleted"`
}

// TaskUpdate replaces a task's mutable fields. Subtasks are reconciled by
// upsert: entries with an ID are updated, entries without one are created,
// and subtasks not mentioned are left alone unless listed in RemoveSubtasks.
type TaskUpdate struct {
	ID             int64           `json:"id"`
	ColumnID       int64           `json:"columnId"`
	Title          string          `json:"title" validate:"min=1"`
	Description    string          `json:"description"`
	Subtasks       []SubtaskUpsert `json:"subtasks" validate:"dive"`
	RemoveSubtasks []int64         `json:"removeSubtasks"`
}

type SubtaskUpsert struct {
	ID    *int64 `json:"id,omitempty"`
	Title string `json:"title" validate:"min=1"`
	// IsCompleted is left unchanged on update when nil, false on create.
	IsCompleted *bool `json:"isCompleted,omitempty"`
}
