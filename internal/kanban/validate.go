package kanban

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names so callers can map errors onto form fields
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

func ValidateNewBoard(in NewBoard) error     { return check(in) }
func ValidateNewColumn(in NewColumn) error   { return check(in) }
func ValidateNewTask(in NewTask) error       { return check(in) }
func ValidateTaskUpdate(in TaskUpdate) error { return check(in) }

// ValidateBoardTree checks a complete board document, as found in seed files.
func ValidateBoardTree(b Board) error { return check(b) }

func ValidateName(field, name string) error {
	if name == "" {
		return invalid(field, ReasonMinLength, "must not be empty")
	}
	return nil
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: a non-struct was passed, which is a bug
		panic(err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, toFieldError(fe))
	}
	return out
}

func toFieldError(fe validator.FieldError) FieldError {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}
	switch fe.Tag() {
	case "required":
		return FieldError{Field: path, Reason: ReasonRequired, Message: "is required"}
	case "min":
		if fe.Param() == "1" {
			return FieldError{Field: path, Reason: ReasonMinLength, Message: "must not be empty"}
		}
		return FieldError{Field: path, Reason: ReasonMinLength, Message: "must be at least " + fe.Param() + " characters"}
	default:
		return FieldError{Field: path, Reason: fe.Tag(), Message: fmt.Sprintf("failed %q rule", fe.Tag())}
	}
}

// Wire shapes. Pointers distinguish a missing field from a zero value.

type rawNewBoard struct {
	Name    *string  `json:"name"`
	Columns []string `json:"columns"`
}

type rawNewColumn struct {
	Name *string `json:"name"`
}

type rawNewSubtask struct {
	Title       *string `json:"title"`
	IsCompleted *bool   `json:"isCompleted"`
}

type rawNewTask struct {
	ColumnID    *int64          `json:"columnId"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Subtasks    []rawNewSubtask `json:"subtasks"`
}

type rawSubtaskUpsert struct {
	ID          *int64  `json:"id"`
	Title       *string `json:"title"`
	IsCompleted *bool   `json:"isCompleted"`
}

type rawTaskUpdate struct {
	ColumnID       *int64             `json:"columnId"`
	Title          *string            `json:"title"`
	Description    *string            `json:"description"`
	Subtasks       []rawSubtaskUpsert `json:"subtasks"`
	RemoveSubtasks []int64            `json:"removeSubtasks"`
}

type rawToggle struct {
	IsCompleted *bool `json:"isCompleted"`
}

type rawRename struct {
	Name *string `json:"name"`
}

// ParseNewBoard decodes and validates a create-board request.
func ParseNewBoard(raw []byte) (NewBoard, error) {
	var r rawNewBoard
	if err := decodeStrict(raw, &r); err != nil {
		return NewBoard{}, err
	}
	var missing fieldErrors
	missing.require("name", r.Name != nil)
	in := NewBoard{Name: deref(r.Name), Columns: r.Columns}
	return in, merge(missing, ValidateNewBoard(in))
}

func ParseNewColumn(boardID int64, raw []byte) (NewColumn, error) {
	var r rawNewColumn
	if err := decodeStrict(raw, &r); err != nil {
		return NewColumn{}, err
	}
	var missing fieldErrors
	missing.require("name", r.Name != nil)
	in := NewColumn{BoardID: boardID, Name: deref(r.Name)}
	return in, merge(missing, ValidateNewColumn(in))
}

func ParseNewTask(raw []byte) (NewTask, error) {
	var r rawNewTask
	if err := decodeStrict(raw, &r); err != nil {
		return NewTask{}, err
	}
	var missing fieldErrors
	missing.require("columnId", r.ColumnID != nil)
	missing.require("title", r.Title != nil)
	in := NewTask{ColumnID: deref(r.ColumnID), Title: deref(r.Title), Description: deref(r.Description)}
	for i, st := range r.Subtasks {
		missing.require(fmt.Sprintf("subtasks[%d].title", i), st.Title != nil)
		in.Subtasks = append(in.Subtasks, NewSubtask{Title: deref(st.Title), IsCompleted: deref(st.IsCompleted)})
	}
	return in, merge(missing, ValidateNewTask(in))
}

// ParseTaskUpdate decodes the body of an update for task id.
func ParseTaskUpdate(id int64, raw []byte) (TaskUpdate, error) {
	var r rawTaskUpdate
	if err := decodeStrict(raw, &r); err != nil {
		return TaskUpdate{}, err
	}
	var missing fieldErrors
	missing.require("columnId", r.ColumnID != nil)
	missing.require("title", r.Title != nil)
	in := TaskUpdate{
		ID:             id,
		ColumnID:       deref(r.ColumnID),
		Title:          deref(r.Title),
		Description:    deref(r.Description),
		RemoveSubtasks: r.RemoveSubtasks,
	}
	for i, st := range r.Subtasks {
		missing.require(fmt.Sprintf("subtasks[%d].title", i), st.Title != nil)
		in.Subtasks = append(in.Subtasks, SubtaskUpsert{ID: st.ID, Title: deref(st.Title), IsCompleted: st.IsCompleted})
	}
	return in, merge(missing, ValidateTaskUpdate(in))
}

func ParseSubtaskToggle(raw []byte) (bool, error) {
	var r rawToggle
	if err := decodeStrict(raw, &r); err != nil {
		return false, err
	}
	if r.IsCompleted == nil {
		return false, invalid("isCompleted", ReasonRequired, "is required")
	}
	return *r.IsCompleted, nil
}

func ParseBoardRename(raw []byte) (string, error) {
	var r rawRename
	if err := decodeStrict(raw, &r); err != nil {
		return "", err
	}
	if r.Name == nil {
		return "", invalid("name", ReasonRequired, "is required")
	}
	return *r.Name, ValidateName("name", *r.Name)
}

// decodeStrict turns decoding failures into ValidationErrors so that a bad
// type or unknown key is reported against its field.
func decodeStrict(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil {
		if _, extra := dec.Token(); extra != io.EOF {
			return invalid("", ReasonMalformed, "body must contain a single JSON object")
		}
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return invalid(typeErr.Field, ReasonWrongType, "expected "+typeErr.Type.String()+", got "+typeErr.Value)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return invalid(unknownFieldPath(raw, reflect.TypeOf(dst), field), ReasonUnknownField, "unknown field")
	default:
		return invalid("", ReasonMalformed, "malformed JSON: "+err.Error())
	}
}

// unknownFieldPath finds where the decoder met the unknown key name and
// returns its full path, such as subtasks[1].foo. The decoder itself only
// reports the bare key.
func unknownFieldPath(raw []byte, t reflect.Type, name string) string {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return name
	}
	if path, ok := findUnknown(doc, t, "", name); ok {
		return path
	}
	return name
}

func findUnknown(v any, t reflect.Type, path, name string) (string, bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		obj, ok := v.(map[string]any)
		if !ok {
			return "", false
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p := k
			if path != "" {
				p = path + "." + k
			}
			f, known := jsonField(t, k)
			if !known {
				if k == name {
					return p, true
				}
				continue
			}
			if found, ok := findUnknown(obj[k], f.Type, p, name); ok {
				return found, true
			}
		}
	case reflect.Slice:
		arr, ok := v.([]any)
		if !ok {
			return "", false
		}
		for i, el := range arr {
			if found, ok := findUnknown(el, t.Elem(), fmt.Sprintf("%s[%d]", path, i), name); ok {
				return found, true
			}
		}
	}
	return "", false
}

// jsonField matches a key to a struct field the way encoding/json does,
// ignoring case.
func jsonField(t reflect.Type, key string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if strings.EqualFold(name, key) {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

type fieldErrors []FieldError

func (f *fieldErrors) require(field string, present bool) {
	if !present {
		*f = append(*f, FieldError{Field: field, Reason: ReasonRequired, Message: "is required"})
	}
}

// merge combines missing-field errors with rule errors, keeping one entry per field.
func merge(missing fieldErrors, err error) error {
	var ve *ValidationError
	if err != nil && !errors.As(err, &ve) {
		return err
	}
	if len(missing) == 0 {
		return err
	}
	out := &ValidationError{Fields: append([]FieldError(nil), missing...)}
	seen := make(map[string]bool, len(missing))
	for _, m := range missing {
		seen[m.Field] = true
	}
	if ve != nil {
		for _, f := range ve.Fields {
			if !seen[f.Field] {
				out.Fields = append(out.Fields, f)
			}
		}
	}
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
