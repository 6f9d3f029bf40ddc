package kanban

import (
	"context"
	"log/slog"
)

// Store is the persistence backend. Each mutating method is expected to run
// as a single transaction and to report missing rows with NotFoundError.
type Store interface {
	ListBoards(ctx context.Context) ([]BoardSummary, error)
	GetBoard(ctx context.Context, id int64) (Board, error)
	CreateBoard(ctx context.Context, in NewBoard) (Board, error)
	RenameBoard(ctx context.Context, id int64, name string) (BoardSummary, error)
	DeleteBoard(ctx context.Context, id int64) error

	ListColumns(ctx context.Context, boardID int64) ([]ColumnSummary, error)
	CreateColumn(ctx context.Context, in NewColumn) (Column, error)
	DeleteColumn(ctx context.Context, id int64) error

	GetTask(ctx context.Context, id int64) (Task, error)
	CreateTask(ctx context.Context, in NewTask) (Task, error)
	UpdateTask(ctx context.Context, in TaskUpdate) (Task, error)
	DeleteTask(ctx context.Context, id int64) error

	SetSubtaskCompleted(ctx context.Context, id int64, completed bool) (Subtask, error)
}

type Service struct {
	store       Store
	log         *slog.Logger
	allowDelete bool
}

type Option func(*Service)

// WithDeletesDisabled turns every delete into a logged no-op.
func WithDeletesDisabled() Option { return func(s *Service) { s.allowDelete = false } }

func NewService(store Store, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{store: store, log: log, allowDelete: true}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) DeletesAllowed() bool { return s.allowDelete }

func (s *Service) ListBoards(ctx context.Context) ([]BoardSummary, error) {
	return s.store.ListBoards(ctx)
}

func (s *Service) GetBoard(ctx context.Context, id int64) (Board, error) {
	return s.store.GetBoard(ctx, id)
}

func (s *Service) CreateBoard(ctx context.Context, in NewBoard) (Board, error) {
	if err := ValidateNewBoard(in); err != nil {
		return Board{}, err
	}
	return s.store.CreateBoard(ctx, in)
}

func (s *Service) UpdateBoard(ctx context.Context, id int64, name string) (BoardSummary, error) {
	if err := ValidateName("name", name); err != nil {
		return BoardSummary{}, err
	}
	return s.store.RenameBoard(ctx, id, name)
}

func (s *Service) DeleteBoard(ctx context.Context, id int64) (bool, error) {
	return s.remove(ctx, KindBoard, id, s.store.DeleteBoard)
}

func (s *Service) ListColumns(ctx context.Context, boardID int64) ([]ColumnSummary, error) {
	return s.store.ListColumns(ctx, boardID)
}

func (s *Service) CreateColumn(ctx context.Context, in NewColumn) (Column, error) {
	if err := ValidateNewColumn(in); err != nil {
		return Column{}, err
	}
	return s.store.CreateColumn(ctx, in)
}

func (s *Service) DeleteColumn(ctx context.Context, id int64) (bool, error) {
	return s.remove(ctx, KindColumn, id, s.store.DeleteColumn)
}

func (s *Service) GetTask(ctx context.Context, id int64) (Task, error) {
	return s.store.GetTask(ctx, id)
}

func (s *Service) CreateTask(ctx context.Context, in NewTask) (Task, error) {
	if err := ValidateNewTask(in); err != nil {
		return Task{}, err
	}
	return s.store.CreateTask(ctx, in)
}

func (s *Service) UpdateTask(ctx context.Context, in TaskUpdate) (Task, error) {
	if err := ValidateTaskUpdate(in); err != nil {
		return Task{}, err
	}
	s.log.Debug("update task", "task_id", in.ID, "column_id", in.ColumnID, "subtasks", len(in.Subtasks), "remove", len(in.RemoveSubtasks))
	return s.store.UpdateTask(ctx, in)
}

func (s *Service) DeleteTask(ctx context.Context, id int64) (bool, error) {
	return s.remove(ctx, KindTask, id, s.store.DeleteTask)
}

// SetSubtaskCompleted is idempotent: setting the current value succeeds.
func (s *Service) SetSubtaskCompleted(ctx context.Context, id int64, completed bool) (Subtask, error) {
	return s.store.SetSubtaskCompleted(ctx, id, completed)
}

func (s *Service) remove(ctx context.Context, k Kind, id int64, del func(context.Context, int64) error) (bool, error) {
	s.log.Info("delete requested", "entity", k.String(), "id", id)
	if !s.allowDelete {
		s.log.Warn("delete disabled, skipping", "entity", k.String(), "id", id)
		return false, nil
	}
	if err := del(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}
