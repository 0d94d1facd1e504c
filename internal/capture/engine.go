package capture

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Size is a frame size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String formats the size as WIDTHxHEIGHT.
func (s Size) String() string {
	return strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
}

// ParseSize parses WIDTHxHEIGHT.
func ParseSize(s string) (Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Size{}, fmt.Errorf("invalid size %q, want WIDTHxHEIGHT", s)
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return Size{}, fmt.Errorf("invalid size %q, want WIDTHxHEIGHT", s)
	}
	return Size{Width: width, Height: height}, nil
}

// Frame is one JPEG-encoded video frame.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Format    string
	Timestamp time.Time
	Seq       uint64
}

// FrameSink receives streamed frames. Push is called from an engine
// goroutine and must not block for long; implementations drop frames they
// cannot keep up with and report that as an error.
type FrameSink interface {
	Push(frame Frame) error
}

// Observer receives engine outcomes. Each call answers at most one earlier
// engine request, except OnCaptureError which reports failures nobody asked
// about.
type Observer interface {
	OnOpened(err error)
	OnPreviewStarted(size Size, err error)
	OnPreviewPaused(err error)
	OnPreviewResumed(err error)
	OnPictureTaken(path string, err error)
	OnRecordStarted(err error)
	OnRecordStopped(path string, err error)
	OnImageStreamStarted(err error)
	OnImageStreamStopped(err error)
	OnCaptureError(err error)
}

// Engine drives one capture device.
type Engine interface {
	Open()
	StartPreview()
	PausePreview()
	ResumePreview()
	TakePicture(path string)
	StartRecord(path string)
	StopRecord()
	StartImageStream(sink FrameSink)
	StopImageStream()
	// Close releases the device. No Observer calls follow a Close.
	Close() error
}

// Factory creates engines bound to a device ID.
type Factory interface {
	NewEngine(deviceID string, settings Settings, obs Observer) (Engine, error)
}
