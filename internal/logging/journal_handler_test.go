package logging

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

type journalEntry struct {
	message  string
	priority journal.Priority
	fields   map[string]string
}

func captureJournal(t *testing.T) *[]journalEntry {
	t.Helper()
	var entries []journalEntry
	orig := journalSend
	journalSend = func(message string, priority journal.Priority, fields map[string]string) error {
		entries = append(entries, journalEntry{message, priority, fields})
		return nil
	}
	t.Cleanup(func() { journalSend = orig })
	return &entries
}

func TestJournalHandlerFields(t *testing.T) {
	entries := captureJournal(t)

	logger := slog.New(NewJournalHandler(slog.LevelDebug)).With("module", "camera", "camera_id", 3, "syslog_identifier", "spoofed")
	logger.WithGroup("stream").Warn("Frame dropped",
		"fps", 15,
		"last-frame", 40*time.Millisecond,
		"error", errors.New("sink busy"),
		slog.Group("size", "width", 1280, "height", 720),
	)

	if len(*entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(*entries))
	}
	got := (*entries)[0]
	if got.message != "Frame dropped" || got.priority != journal.PriWarning {
		t.Errorf("entry = %q priority %d", got.message, got.priority)
	}
	want := map[string]string{
		"SYSLOG_IDENTIFIER":  "camerahost",
		"MODULE":             "camera",
		"CAMERA_ID":          "3",
		"STREAM_FPS":         "15",
		"STREAM_LAST_FRAME":  "40ms",
		"STREAM_ERROR":       "sink busy",
		"STREAM_SIZE_WIDTH":  "1280",
		"STREAM_SIZE_HEIGHT": "720",
	}
	for key, value := range want {
		if got.fields[key] != value {
			t.Errorf("%s = %q, want %q", key, got.fields[key], value)
		}
	}
	if len(got.fields) != len(want) {
		t.Errorf("fields = %v", got.fields)
	}
}

func TestJournalHandlerLevel(t *testing.T) {
	entries := captureJournal(t)

	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := slog.New(NewJournalHandler(level))
	logger.Info("dropped")
	logger.Error("kept")

	if len(*entries) != 1 || (*entries)[0].priority != journal.PriErr {
		t.Errorf("entries = %+v", *entries)
	}
}

func TestJournalFieldName(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"", "camera_id", "CAMERA_ID"},
		{"", "device.path", "DEVICE_PATH"},
		{"STREAM_", "fps", "STREAM_FPS"},
		{"", "_PID", "PID"},
		{"", "1080p", "F_1080P"},
		{"", "---", ""},
	}
	for _, tt := range tests {
		if got := fieldName(tt.prefix, tt.key); got != tt.want {
			t.Errorf("fieldName(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
		}
	}
}
