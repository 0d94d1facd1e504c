package camera

import (
	"errors"
	"testing"

	"github.com/smazurov/camerahost/internal/capture"
)

type recorder struct {
	results []Result
}

func (r *recorder) done(res Result) {
	r.results = append(r.results, res)
}

func TestPendingTrackerRejectsDuplicateKind(t *testing.T) {
	tracker := NewPendingTracker()
	first, second := &recorder{}, &recorder{}

	if !tracker.TryBegin(TakePicture, first.done) {
		t.Fatal("first TryBegin rejected")
	}
	if tracker.TryBegin(TakePicture, second.done) {
		t.Fatal("duplicate TryBegin accepted")
	}

	if len(first.results) != 0 {
		t.Fatalf("first completion ran early: %+v", first.results)
	}
	if len(second.results) != 1 {
		t.Fatalf("duplicate completion ran %d times, want 1", len(second.results))
	}
	err := second.results[0].Err
	if CodeOf(err) != CodeConflict {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeConflict)
	}
	if got, want := MessageOf(err), "Pending takePicture request exists"; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}

	if err := tracker.Resolve(TakePicture, Result{Path: "/tmp/a.jpeg"}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(first.results) != 1 || first.results[0].Path != "/tmp/a.jpeg" {
		t.Errorf("first results = %+v", first.results)
	}
	if tracker.Has(TakePicture) {
		t.Error("slot still occupied after Resolve")
	}
}

func TestPendingTrackerKindsAreIndependent(t *testing.T) {
	tracker := NewPendingTracker()
	picture, record := &recorder{}, &recorder{}

	if !tracker.TryBegin(TakePicture, picture.done) || !tracker.TryBegin(StartRecord, record.done) {
		t.Fatal("different kinds must not conflict")
	}
	if tracker.Len() != 2 {
		t.Errorf("Len = %d, want 2", tracker.Len())
	}

	_ = tracker.Resolve(StartRecord, Result{})
	if !tracker.Has(TakePicture) || tracker.Has(StartRecord) {
		t.Error("Resolve touched the wrong slot")
	}
}

func TestPendingTrackerResolveMissingSlot(t *testing.T) {
	tracker := NewPendingTracker()

	err := tracker.Resolve(Initialize, Result{Size: capture.Size{Width: 1, Height: 1}})
	if CodeOf(err) != CodeInternal {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeInternal)
	}
}

func TestPendingTrackerFailAll(t *testing.T) {
	tracker := NewPendingTracker()
	recs := map[OperationKind]*recorder{
		Initialize:       {},
		TakePicture:      {},
		StartImageStream: {},
	}
	for kind, rec := range recs {
		tracker.TryBegin(kind, rec.done)
	}

	cause := errors.New("gone")
	tracker.FailAll(cause)

	for kind, rec := range recs {
		if len(rec.results) != 1 {
			t.Errorf("%s completed %d times, want 1", kind, len(rec.results))
			continue
		}
		if !errors.Is(rec.results[0].Err, cause) {
			t.Errorf("%s error = %v, want %v", kind, rec.results[0].Err, cause)
		}
	}
	if tracker.Len() != 0 {
		t.Errorf("Len = %d after FailAll", tracker.Len())
	}

	tracker.FailAll(cause)
	for kind, rec := range recs {
		if len(rec.results) != 1 {
			t.Errorf("%s completed again on second FailAll", kind)
		}
	}
}

func TestPendingTrackerFailAllReentrant(t *testing.T) {
	tracker := NewPendingTracker()
	cause := errors.New("closed")
	later := &recorder{}

	tracker.TryBegin(CreateCamera, func(Result) {
		tracker.FailAll(cause)
	})
	tracker.TryBegin(StopImageStream, later.done)

	tracker.FailAll(cause)

	if len(later.results) != 1 {
		t.Errorf("later slot completed %d times, want 1", len(later.results))
	}
}

func TestPendingTrackerKindsOrdered(t *testing.T) {
	tracker := NewPendingTracker()
	for _, kind := range []OperationKind{StopImageStream, CreateCamera, TakePicture} {
		tracker.TryBegin(kind, func(Result) {})
	}

	got := tracker.Kinds()
	want := []OperationKind{CreateCamera, TakePicture, StopImageStream}
	if len(got) != len(want) {
		t.Fatalf("Kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Kinds = %v, want %v", got, want)
		}
	}
}

func TestOperationKindString(t *testing.T) {
	tests := []struct {
		kind OperationKind
		want string
	}{
		{CreateCamera, "create"},
		{StartRecord, "startVideoRecording"},
		{StopRecord, "stopVideoRecording"},
		{StopImageStream, "stopImageStream"},
		{OperationKind(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("OperationKind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
