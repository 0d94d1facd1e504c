package camera

import (
	"fmt"
	"sort"

	"github.com/smazurov/camerahost/internal/capture"
)

// Result is what a pending operation completes with. Only the fields the
// operation produces are set.
type Result struct {
	SessionID int64
	Size      capture.Size
	Path      string
	Err       error
}

// Completion receives the Result of a pending operation, exactly once.
type Completion func(Result)

// PendingTracker holds at most one in-flight completion per OperationKind.
// It is confined to the control loop and not safe for concurrent use.
type PendingTracker struct {
	slots map[OperationKind]Completion
}

// NewPendingTracker returns an empty tracker.
func NewPendingTracker() *PendingTracker {
	return &PendingTracker{slots: make(map[OperationKind]Completion)}
}

// TryBegin registers done for kind. If kind is already pending, done is
// invoked immediately with a conflict error and TryBegin returns false.
func (t *PendingTracker) TryBegin(kind OperationKind, done Completion) bool {
	if _, busy := t.slots[kind]; busy {
		done(Result{Err: pendingConflict(kind)})
		return false
	}
	t.slots[kind] = done
	return true
}

// Resolve completes and removes the pending operation of kind. Resolving a
// kind that is not pending is a programming error and returns an internal error.
func (t *PendingTracker) Resolve(kind OperationKind, res Result) error {
	done, ok := t.slots[kind]
	if !ok {
		return internalError(fmt.Sprintf("no pending %s request", kind))
	}
	delete(t.slots, kind)
	done(res)
	return nil
}

// FailAll completes every pending operation with err, in kind order.
func (t *PendingTracker) FailAll(err error) {
	for _, kind := range t.Kinds() {
		// A completion may have failed the remaining slots itself.
		done, ok := t.slots[kind]
		if !ok {
			continue
		}
		delete(t.slots, kind)
		done(Result{Err: err})
	}
}

// Has reports whether kind is pending.
func (t *PendingTracker) Has(kind OperationKind) bool {
	_, ok := t.slots[kind]
	return ok
}

// Len returns the number of pending operations.
func (t *PendingTracker) Len() int {
	return len(t.slots)
}

// Kinds returns the pending kinds in ascending order.
func (t *PendingTracker) Kinds() []OperationKind {
	kinds := make([]OperationKind, 0, len(t.slots))
	for kind := range t.slots {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func pendingConflict(kind OperationKind) *Error {
	return conflictError(fmt.Sprintf("Pending %s request exists", kind))
}
