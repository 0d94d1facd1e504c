// Package capturetest provides an in-memory capture.Factory for tests.
package capturetest

import (
	"errors"
	"sync"
	"time"

	"github.com/smazurov/camerahost/internal/capture"
)

// DefaultSize is the preview size fake engines report.
var DefaultSize = capture.Size{Width: 1920, Height: 1080}

// ErrNotStreaming is returned by Engine.PushFrame without an active stream.
var ErrNotStreaming = errors.New("capturetest: not streaming")

// Factory creates fake engines and remembers the most recent one per device.
type Factory struct {
	// Err, when set, makes NewEngine fail.
	Err error
	// Configure, when set, runs on every new engine before it is returned.
	Configure func(*Engine)

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{engines: make(map[string]*Engine)}
}

// NewEngine implements capture.Factory.
func (f *Factory) NewEngine(deviceID string, settings capture.Settings, obs capture.Observer) (capture.Engine, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{DeviceID: deviceID, Settings: settings, Size: DefaultSize, obs: obs}
	if f.Configure != nil {
		f.Configure(e)
	}
	f.mu.Lock()
	f.engines[deviceID] = e
	f.mu.Unlock()
	return e, nil
}

// Engine returns the last engine created for deviceID, or nil.
func (f *Factory) Engine(deviceID string) *Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engines[deviceID]
}

// Engine is a scripted capture.Engine. By default every request is answered
// immediately through the observer, successfully unless the matching error
// field is set. After SetHold(true), requests are only recorded and the test
// answers them through Observer(). Error fields must be set before the
// engine is used, typically from Factory.Configure.
type Engine struct {
	DeviceID string
	Settings capture.Settings
	Size     capture.Size

	OpenErr        error
	PreviewErr     error
	PauseErr       error
	ResumeErr      error
	PictureErr     error
	RecordErr      error
	StopRecordErr  error
	StopRecordPath string
	StreamErr      error
	CloseErr       error
	// OnClose, when set, runs at the start of Close.
	OnClose func()

	obs capture.Observer

	mu     sync.Mutex
	hold   bool
	calls  []string
	sink   capture.FrameSink
	closed bool
	seq    uint64
}

// SetHold switches between answering requests immediately and only recording them.
func (e *Engine) SetHold(hold bool) {
	e.mu.Lock()
	e.hold = hold
	e.mu.Unlock()
}

// Observer returns the observer the engine reports to.
func (e *Engine) Observer() capture.Observer {
	return e.obs
}

// Calls returns the engine methods invoked so far, in order.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Sink returns the frame sink handed to StartImageStream, or nil.
func (e *Engine) Sink() capture.FrameSink {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sink
}

// PushFrame pushes data to the active sink the way a capture pipeline would.
func (e *Engine) PushFrame(data []byte) error {
	e.mu.Lock()
	sink := e.sink
	e.seq++
	seq := e.seq
	e.mu.Unlock()
	if sink == nil {
		return ErrNotStreaming
	}
	return sink.Push(capture.Frame{
		Data:      data,
		Width:     e.Size.Width,
		Height:    e.Size.Height,
		Format:    "jpeg",
		Timestamp: time.Now(),
		Seq:       seq,
	})
}

func (e *Engine) record(call string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
	return !e.hold
}

func (e *Engine) Open() {
	if e.record("Open") {
		e.obs.OnOpened(e.OpenErr)
	}
}

func (e *Engine) StartPreview() {
	if !e.record("StartPreview") {
		return
	}
	if e.PreviewErr != nil {
		e.obs.OnPreviewStarted(capture.Size{}, e.PreviewErr)
		return
	}
	e.obs.OnPreviewStarted(e.Size, nil)
}

func (e *Engine) PausePreview() {
	if e.record("PausePreview") {
		e.obs.OnPreviewPaused(e.PauseErr)
	}
}

func (e *Engine) ResumePreview() {
	if e.record("ResumePreview") {
		e.obs.OnPreviewResumed(e.ResumeErr)
	}
}

func (e *Engine) TakePicture(path string) {
	if e.record("TakePicture") {
		e.obs.OnPictureTaken(path, e.PictureErr)
	}
}

func (e *Engine) StartRecord(string) {
	if e.record("StartRecord") {
		e.obs.OnRecordStarted(e.RecordErr)
	}
}

func (e *Engine) StopRecord() {
	if e.record("StopRecord") {
		e.obs.OnRecordStopped(e.StopRecordPath, e.StopRecordErr)
	}
}

func (e *Engine) StartImageStream(sink capture.FrameSink) {
	hold := !e.record("StartImageStream")
	if e.StreamErr == nil {
		e.mu.Lock()
		e.sink = sink
		e.mu.Unlock()
	}
	if !hold {
		e.obs.OnImageStreamStarted(e.StreamErr)
	}
}

func (e *Engine) StopImageStream() {
	e.mu.Lock()
	e.sink = nil
	e.mu.Unlock()
	if e.record("StopImageStream") {
		e.obs.OnImageStreamStopped(nil)
	}
}

func (e *Engine) Close() error {
	if e.OnClose != nil {
		e.OnClose()
	}
	e.record("Close")
	e.mu.Lock()
	e.closed = true
	e.sink = nil
	e.mu.Unlock()
	return e.CloseErr
}
