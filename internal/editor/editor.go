package editor

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrSaveInFlight is returned when Save is called while a previous save
// has not resolved yet. There is no queueing or batched retry; the
// caller waits for the outstanding save.
var ErrSaveInFlight = errors.New("save already in flight")

// SaveResult is the reconciliation collaborator's response to a save.
type SaveResult struct {
	Status        string         `json:"status"`
	UpdatedFields []string       `json:"updated_fields"`
	Fields        map[string]any `json:"fields"`
}

// Saver submits a full field map for reconciliation and returns the
// server-confirmed copy.
type Saver interface {
	SaveFields(ctx context.Context, documentID string, fields map[string]any) (SaveResult, error)
}

// Editor manages the flat field set of one document: the last
// server-confirmed baseline and, while editing, a working copy.
type Editor struct {
	mu         sync.Mutex
	documentID string
	baseline   map[string]any
	working    map[string]any
	editing    bool
	saving     bool
	saver      Saver
}

// NewEditor creates an editor with the extracted field map as baseline.
func NewEditor(documentID string, initial map[string]any, saver Saver) *Editor {
	return &Editor{
		documentID: documentID,
		baseline:   copyFields(initial),
		saver:      saver,
	}
}

// EnterEdit snapshots the baseline into a fresh working copy.
// A no-op if already editing.
func (e *Editor) EnterEdit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.editing {
		return
	}
	e.working = copyFields(e.baseline)
	e.editing = true
}

// SetField assigns a value into the working copy. Ignored outside edit
// mode. Assignment is pure: no validation, no side effects beyond the
// working copy itself.
func (e *Editor) SetField(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editing {
		return
	}
	e.working[key] = value
}

// CancelEdit discards the working copy and exits edit mode.
// The baseline is untouched.
func (e *Editor) CancelEdit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.working = nil
	e.editing = false
}

// Editing reports whether an edit session is open.
func (e *Editor) Editing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editing
}

// Saving reports whether a save is currently in flight.
func (e *Editor) Saving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saving
}

// Field returns the current value of a field: the working copy's value
// while editing, otherwise the baseline's.
func (e *Editor) Field(key string) any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.editing {
		return e.working[key]
	}
	return e.baseline[key]
}

// Baseline returns a copy of the server-confirmed field map.
func (e *Editor) Baseline() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyFields(e.baseline)
}

// Working returns a copy of the working field map, or nil outside edit
// mode.
func (e *Editor) Working() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editing {
		return nil
	}
	return copyFields(e.working)
}

// Diff returns the sorted set of keys where the working copy differs
// from the baseline. Pure: the same baseline and working copy always
// yield the same diff. Empty outside edit mode.
func (e *Editor) Diff() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.diffLocked()
}

func (e *Editor) diffLocked() []string {
	if !e.editing {
		return nil
	}
	var keys []string
	for k, v := range e.working {
		if !valueEqual(v, e.baseline[k]) {
			keys = append(keys, k)
		}
	}
	for k, v := range e.baseline {
		if _, ok := e.working[k]; !ok && v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Dirty reports whether the working copy differs from the baseline in
// at least one key.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.diffLocked()) > 0
}

// MissingRequired returns the advisory required fields that are empty
// in the current view. Purely visual; Save is never blocked by them.
func (e *Editor) MissingRequired() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.baseline
	if e.editing {
		current = e.working
	}

	var missing []string
	for _, key := range RequiredKeys() {
		v, ok := current[key]
		if !ok || v == nil || v == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Save submits the entire working copy (not a delta) for
// reconciliation.
//
// A clean working copy is a no-op: no network call, baseline unchanged,
// nil error. A save in flight returns ErrSaveInFlight. On success the
// baseline is replaced with the server-confirmed copy, edit mode closes
// and the dirty flag clears. On failure the editor stays in edit mode
// with the working copy intact so nothing the user typed is lost.
func (e *Editor) Save(ctx context.Context) (SaveResult, error) {
	e.mu.Lock()
	if e.saving {
		e.mu.Unlock()
		return SaveResult{}, ErrSaveInFlight
	}
	if !e.editing || len(e.diffLocked()) == 0 {
		e.mu.Unlock()
		return SaveResult{}, nil
	}
	submitted := copyFields(e.working)
	e.saving = true
	e.mu.Unlock()

	result, err := e.saver.SaveFields(ctx, e.documentID, submitted)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	if err != nil {
		// Edit mode stays open, working copy untouched.
		return SaveResult{}, err
	}

	confirmed := result.Fields
	if confirmed == nil {
		confirmed = submitted
	}
	e.baseline = copyFields(confirmed)
	e.working = nil
	e.editing = false
	return result, nil
}

// valueEqual compares two field values, treating numeric types as
// interchangeable so a JSON round trip does not create phantom diffs.
func valueEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func copyFields(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
