package camera

import (
	"time"

	"github.com/smazurov/camerahost/internal/capture"
	"github.com/smazurov/camerahost/internal/logging"
	"github.com/smazurov/camerahost/internal/metrics"
)

// PreviewState is the preview state of a session.
type PreviewState string

// Preview states.
const (
	StateUninitialized PreviewState = "uninitialized"
	StatePreviewing    PreviewState = "previewing"
	StatePaused        PreviewState = "paused"
)

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	ID            int64
	Device        string
	DeviceID      string
	State         PreviewState
	Size          capture.Size
	Settings      capture.Settings
	Recording     bool
	RecordingPath string
	Streaming     bool
	Pending       []string
	CreatedAt     time.Time
}

// Session binds one device to one capture engine and tracks the
// operations in flight against it. All methods, including the engine
// callbacks, run on the control loop.
type Session struct {
	id          int64
	deviceID    string
	displayName string
	createdAt   time.Time
	settings    capture.Settings

	engine  capture.Engine
	pending *PendingTracker
	broker  *SinkBroker
	logger  logging.Logger

	// onFault is told about engine failures no operation asked about.
	onFault func(s *Session, err error)

	state      PreviewState
	size       capture.Size
	recording  bool
	recordPath string
	startPath  string
	streaming  bool
	sink       capture.FrameSink
	disposed   bool
}

func newSession(id int64, displayName, deviceID string, broker *SinkBroker) *Session {
	return &Session{
		id:          id,
		deviceID:    deviceID,
		displayName: displayName,
		createdAt:   time.Now(),
		pending:     NewPendingTracker(),
		broker:      broker,
		logger:      logging.GetLogger("camera").With("camera_id", id, "device", deviceID),
		state:       StateUninitialized,
	}
}

// ID returns the session ID.
func (s *Session) ID() int64 { return s.id }

// DeviceID returns the ID of the device the session drives.
func (s *Session) DeviceID() string { return s.deviceID }

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	kinds := s.pending.Kinds()
	pending := make([]string, len(kinds))
	for i, kind := range kinds {
		pending[i] = kind.String()
	}
	return SessionInfo{
		ID:            s.id,
		Device:        s.displayName + ":" + s.deviceID,
		DeviceID:      s.deviceID,
		State:         s.state,
		Size:          s.size,
		Settings:      s.settings,
		Recording:     s.recording,
		RecordingPath: s.recordPath,
		Streaming:     s.streaming,
		Pending:       pending,
		CreatedAt:     s.createdAt,
	}
}

// begin claims the slot for kind and checks the precondition. It returns
// false when the operation must not reach the engine; done has then
// already been completed.
func (s *Session) begin(kind OperationKind, done Completion, precondition func() string) bool {
	if s.disposed {
		done(Result{Err: captureError(msgDisposed, nil)})
		return false
	}
	if !s.pending.TryBegin(kind, done) {
		return false
	}
	if precondition != nil {
		if msg := precondition(); msg != "" {
			s.resolve(kind, Result{Err: captureError(msg, nil)})
			return false
		}
	}
	return true
}

func (s *Session) resolve(kind OperationKind, res Result) {
	if err := s.pending.Resolve(kind, res); err != nil {
		s.logger.Error("Engine answered a request nobody made", "operation", kind.String(), "error", err)
	}
}

func (s *Session) fail(kind OperationKind, msg string, err error) {
	s.resolve(kind, Result{Err: captureError(msg, err)})
}

func (s *Session) requireRunning() string {
	if s.state == StateUninitialized {
		return msgNotInitialized
	}
	return ""
}

// Open asks the engine to open the device and completes with the session ID.
func (s *Session) Open(done Completion) {
	if s.begin(CreateCamera, done, nil) {
		s.engine.Open()
	}
}

func (s *Session) onOpened(err error) {
	if s.disposed {
		return
	}
	if err != nil {
		s.fail(CreateCamera, "failed to open camera", err)
		return
	}
	s.resolve(CreateCamera, Result{SessionID: s.id})
}

// Initialize starts the preview pipeline and completes with the frame size.
func (s *Session) Initialize(done Completion) {
	ok := s.begin(Initialize, done, func() string {
		if s.state != StateUninitialized {
			return msgAlreadyInitialized
		}
		return ""
	})
	if ok {
		s.engine.StartPreview()
	}
}

func (s *Session) onPreviewStarted(size capture.Size, err error) {
	if s.disposed {
		return
	}
	if err != nil {
		s.fail(Initialize, "failed to start preview", err)
		return
	}
	s.state = StatePreviewing
	s.size = size
	s.logger.Info("Preview started", "width", size.Width, "height", size.Height)
	s.resolve(Initialize, Result{SessionID: s.id, Size: size})
}

// PausePreview pauses a running preview.
func (s *Session) PausePreview(done Completion) {
	ok := s.begin(PausePreview, done, func() string {
		switch s.state {
		case StateUninitialized:
			return msgNotInitialized
		case StatePaused:
			return msgNotPreviewing
		}
		return ""
	})
	if ok {
		s.engine.PausePreview()
	}
}

func (s *Session) onPreviewPaused(err error) {
	if s.disposed {
		return
	}
	if err != nil {
		s.fail(PausePreview, "failed to pause preview", err)
		return
	}
	s.state = StatePaused
	s.resolve(PausePreview, Result{SessionID: s.id})
}

// ResumePreview resumes a paused preview.
func (s *Session) ResumePreview(done Completion) {
	ok := s.begin(ResumePreview, done, func() string {
		switch s.state {
		case StateUninitialized:
			return msgNotInitialized
		case StatePreviewing:
			return msgNotPaused
		}
		return ""
	})
	if ok {
		s.engine.ResumePreview()
	}
}

func (s *Session) onPreviewResumed(err error) {
	if s.disposed {
		return
	}
	if err != nil {
		s.fail(ResumePreview, "failed to resume preview", err)
		return
	}
	s.state = StatePreviewing
	s.resolve(ResumePreview, Result{SessionID: s.id})
}

// TakePicture stores a picture at path and completes with that path.
func (s *Session) TakePicture(path string, done Completion) {
	if s.begin(TakePicture, done, s.requireRunning) {
		s.engine.TakePicture(path)
	}
}

func (s *Session) onPictureTaken(path string, err error) {
	if s.disposed {
		return
	}
	if err != nil {
		s.fail(TakePicture, "failed to take picture", err)
		return
	}
	s.resolve(TakePicture, Result{SessionID: s.id, Path: path})
}

// StartRecord starts recording to path.
func (s *Session) StartRecord(path string, done Completion) {
	ok := s.begin(StartRecord, done, func() string {
		if msg := s.requireRunning(); msg != "" {
			return msg
		}
		if s.recording {
			return msgAlreadyRecording
		}
		return ""
	})
	if ok {
		s.startPath = path
		s.engine.StartRecord(path)
	}
}

func (s *Session) onRecordStarted(err error) {
	if s.disposed {
		return
	}
	path := s.startPath
	s.startPath = ""
	if err != nil {
		s.fail(StartRecord, "failed to start recording", err)
		return
	}
	s.recording = true
	s.recordPath = path
	s.logger.Info("Recording started", "path", path)
	s.resolve(StartRecord, Result{SessionID: s.id, Path: path})
}

// StopRecord stops the recording and completes with its path.
func (s *Session) StopRecord(done Completion) {
	ok := s.begin(StopRecord, done, func() string {
		if !s.recording {
			return msgNotRecording
		}
		return ""
	})
	if ok {
		s.engine.StopRecord()
	}
}

func (s *Session) onRecordStopped(path string, err error) {
	if s.disposed {
		return
	}
	if path == "" {
		path = s.recordPath
	}
	s.recording = false
	s.recordPath = ""
	if err != nil {
		s.fail(StopRecord, "failed to stop recording", err)
		return
	}
	s.logger.Info("Recording stopped", "path", path)
	s.resolve(StopRecord, Result{SessionID: s.id, Path: path})
}

// StartImageStream claims the frame sink from the broker and has the
// engine push frames into it.
func (s *Session) StartImageStream(done Completion) {
	ok := s.begin(StartImageStream, done, func() string {
		if msg := s.requireRunning(); msg != "" {
			return msg
		}
		if s.streaming {
			return msgAlreadyStreaming
		}
		return ""
	})
	if !ok {
		return
	}
	sink, claimed := s.broker.Claim()
	if !claimed {
		msg := msgNoFrameListener
		if s.broker.Claimed() {
			msg = msgFrameSinkInUse
		}
		s.fail(StartImageStream, msg, nil)
		return
	}
	s.sink = sink
	s.engine.StartImageStream(&countingSink{cameraID: s.id, sink: sink})
}

func (s *Session) onImageStreamStarted(err error) {
	if s.disposed {
		return
	}
	if err != nil {
		s.releaseSink()
		s.fail(StartImageStream, "failed to start image stream", err)
		return
	}
	s.streaming = true
	s.resolve(StartImageStream, Result{SessionID: s.id})
}

// StopImageStream stops frame delivery and returns the sink to the broker.
func (s *Session) StopImageStream(done Completion) {
	ok := s.begin(StopImageStream, done, func() string {
		if !s.streaming {
			return msgNotStreaming
		}
		return ""
	})
	if ok {
		s.engine.StopImageStream()
	}
}

func (s *Session) onImageStreamStopped(err error) {
	if s.disposed {
		return
	}
	if err != nil {
		s.fail(StopImageStream, "failed to stop image stream", err)
		return
	}
	s.streaming = false
	s.releaseSink()
	s.resolve(StopImageStream, Result{SessionID: s.id})
}

func (s *Session) releaseSink() {
	if s.sink != nil {
		s.broker.Release(s.sink)
		s.sink = nil
	}
}

func (s *Session) onCaptureError(err error) {
	if s.disposed {
		return
	}
	s.logger.Error("Capture failed", "error", err)
	s.pending.FailAll(captureError("capture failed", err))
	if s.onFault != nil {
		s.onFault(s, err)
	}
}

// Dispose fails every pending operation, closes the engine and then returns
// the sink, so no frame of this session reaches a sink handed on to another.
// Calling it again has no effect.
func (s *Session) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.pending.FailAll(captureError(msgDisposed, nil))
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			s.logger.Warn("Failed to close capture engine", "error", err)
		}
	}
	s.releaseSink()
	s.streaming = false
	s.recording = false
	metrics.DeleteStreamMetrics(s.id)
	s.logger.Info("Session disposed")
}

// countingSink counts frames per session on their way to the real sink.
type countingSink struct {
	cameraID int64
	sink     capture.FrameSink
}

func (c *countingSink) Push(frame capture.Frame) error {
	if err := c.sink.Push(frame); err != nil {
		metrics.FrameDropped(c.cameraID)
		return err
	}
	metrics.FrameDelivered(c.cameraID)
	return nil
}

// loopObserver posts engine callbacks onto the control loop.
type loopObserver struct {
	post    func(task func()) bool
	session *Session
}

func (o *loopObserver) OnOpened(err error) {
	o.post(func() { o.session.onOpened(err) })
}

func (o *loopObserver) OnPreviewStarted(size capture.Size, err error) {
	o.post(func() { o.session.onPreviewStarted(size, err) })
}

func (o *loopObserver) OnPreviewPaused(err error) {
	o.post(func() { o.session.onPreviewPaused(err) })
}

func (o *loopObserver) OnPreviewResumed(err error) {
	o.post(func() { o.session.onPreviewResumed(err) })
}

func (o *loopObserver) OnPictureTaken(path string, err error) {
	o.post(func() { o.session.onPictureTaken(path, err) })
}

func (o *loopObserver) OnRecordStarted(err error) {
	o.post(func() { o.session.onRecordStarted(err) })
}

func (o *loopObserver) OnRecordStopped(path string, err error) {
	o.post(func() { o.session.onRecordStopped(path, err) })
}

func (o *loopObserver) OnImageStreamStarted(err error) {
	o.post(func() { o.session.onImageStreamStarted(err) })
}

func (o *loopObserver) OnImageStreamStopped(err error) {
	o.post(func() { o.session.onImageStreamStopped(err) })
}

func (o *loopObserver) OnCaptureError(err error) {
	o.post(func() { o.session.onCaptureError(err) })
}
