package camera

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/smazurov/camerahost/internal/capture"
	"github.com/smazurov/camerahost/internal/devices"
	"github.com/smazurov/camerahost/internal/events"
	"github.com/smazurov/camerahost/internal/logging"
	"github.com/smazurov/camerahost/internal/metrics"
)

// DeviceLister enumerates capture devices.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]devices.DeviceRecord, error)
}

// PathBuilder creates output paths for pictures and recordings.
type PathBuilder interface {
	PicturePath() (string, error)
	VideoPath() (string, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithEventBus publishes session and operation events to bus.
func WithEventBus(bus *events.Bus) Option {
	return func(c *Controller) {
		c.bus = bus
	}
}

// Controller accepts camera commands from any goroutine and runs them on a
// single control loop. Every command completes exactly once through its
// callback. Callbacks run on the control loop and must not block; after
// Stop they run on the caller's goroutine.
type Controller struct {
	directory DeviceLister
	factory   capture.Factory
	paths     PathBuilder
	bus       *events.Bus

	broker   *SinkBroker
	registry *Registry
	loop     *loop
	logger   logging.Logger

	mu      sync.Mutex
	running bool
	stopped bool
}

// NewController wires a controller. Call Start before expecting completions.
func NewController(directory DeviceLister, factory capture.Factory, paths PathBuilder, opts ...Option) *Controller {
	c := &Controller{
		directory: directory,
		factory:   factory,
		paths:     paths,
		broker:    NewSinkBroker(),
		registry:  NewRegistry(),
		loop:      newLoop(),
		logger:    logging.GetLogger("camera"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the control loop.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.stopped {
		return
	}
	c.running = true
	go c.loop.run()
	c.logger.Info("Camera controller started")
}

// Stop disposes every session, closes the broker and waits for queued work
// to finish. Commands issued afterwards fail with a system error. Stop must
// not be called from a completion callback.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.loop.close(func() {
		for _, s := range c.registry.List() {
			c.disposeSession(s)
		}
		c.broker.Close()
		c.refreshGauges()
	})
	if !c.running {
		// Commands queued before Start still need their completions.
		c.running = true
		go c.loop.run()
	}
	c.mu.Unlock()

	c.loop.wait()
	c.logger.Info("Camera controller stopped")
}

// Broker returns the frame sink broker transports attach sinks to.
func (c *Controller) Broker() *SinkBroker {
	return c.broker
}

// ListDevices enumerates devices and returns their unique names.
func (c *Controller) ListDevices(ctx context.Context) ([]string, error) {
	started := time.Now()
	records, err := c.directory.ListDevices(ctx)
	if err != nil {
		err = systemError("failed to enumerate devices", err)
		metrics.ObserveOperation("listDevices", string(CodeSystem), time.Since(started))
		return nil, err
	}
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.UniqueName()
	}
	metrics.ObserveOperation("listDevices", resultSuccess, time.Since(started))
	return names, nil
}

// Sessions returns a snapshot of every live session, taken on the control loop.
func (c *Controller) Sessions(ctx context.Context) ([]SessionInfo, error) {
	result := make(chan []SessionInfo, 1)
	posted := c.loop.post(func() {
		sessions := c.registry.List()
		infos := make([]SessionInfo, len(sessions))
		for i, s := range sessions {
			infos[i] = s.Info()
		}
		result <- infos
	})
	if !posted {
		return nil, systemError(msgStopped, nil)
	}
	select {
	case infos := <-result:
		return infos, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Create opens the device named by descriptor ("<display name>:<device id>")
// and completes with the new session ID. Zero fields of settings fall back
// to the capture configuration.
func (c *Controller) Create(descriptor string, settings capture.Settings, done func(int64, error)) {
	op := c.newOperation(CreateCamera.String(), -1)
	fail := func(err error) {
		op.finish(err)
		done(-1, err)
	}
	posted := c.loop.post(func() {
		name, deviceID, err := devices.ParseDescriptor(descriptor)
		if err != nil {
			fail(validationError("invalid device descriptor", err))
			return
		}
		if err := settings.Validate(); err != nil {
			fail(validationError("invalid media settings", err))
			return
		}
		if _, exists := c.registry.LookupDevice(deviceID); exists {
			fail(conflictError(msgCameraExists))
			return
		}

		s := newSession(c.registry.NextID(), name, deviceID, c.broker)
		s.settings = settings
		engine, err := c.factory.NewEngine(deviceID, settings, &loopObserver{post: c.loop.post, session: s})
		if errors.Is(err, devices.ErrInvalidDeviceID) {
			fail(validationError("invalid device id", err))
			return
		}
		if err != nil {
			fail(captureError("failed to create capture engine", err))
			return
		}
		s.engine = engine
		s.onFault = c.sessionFault
		c.registry.Insert(s)
		op.cameraID = s.id

		s.Open(func(r Result) {
			if r.Err != nil {
				c.registry.Remove(s.id)
				s.Dispose()
				c.refreshGauges()
				fail(r.Err)
				return
			}
			c.publish(events.CameraCreatedEvent{
				CameraID:  s.id,
				Device:    s.deviceID,
				Timestamp: timestamp(),
			})
			op.finish(nil)
			done(r.SessionID, nil)
		})
		c.refreshGauges()
	})
	if !posted {
		fail(systemError(msgStopped, nil))
	}
}

// Initialize starts the preview and completes with the negotiated frame size.
func (c *Controller) Initialize(id int64, done func(capture.Size, error)) {
	c.dispatch(Initialize, id, func(err error) { done(capture.Size{}, err) },
		func(s *Session, op *operation) {
			s.Initialize(func(r Result) {
				op.finish(r.Err)
				done(r.Size, r.Err)
			})
		})
}

// PausePreview pauses a running preview.
func (c *Controller) PausePreview(id int64, done func(error)) {
	c.dispatch(PausePreview, id, done, func(s *Session, op *operation) {
		s.PausePreview(op.complete(done))
	})
}

// ResumePreview resumes a paused preview.
func (c *Controller) ResumePreview(id int64, done func(error)) {
	c.dispatch(ResumePreview, id, done, func(s *Session, op *operation) {
		s.ResumePreview(op.complete(done))
	})
}

// TakePicture stores a picture under the pictures directory and completes
// with its path.
func (c *Controller) TakePicture(id int64, done func(string, error)) {
	c.dispatch(TakePicture, id, func(err error) { done("", err) }, func(s *Session, op *operation) {
		completion := func(r Result) {
			op.finish(r.Err)
			done(r.Path, r.Err)
		}
		if s.pending.Has(TakePicture) {
			completion(Result{Err: pendingConflict(TakePicture)})
			return
		}
		path, err := c.paths.PicturePath()
		if err != nil {
			completion(Result{Err: systemError("failed to create picture path", err)})
			return
		}
		s.TakePicture(path, completion)
	})
}

// StartRecord starts recording into a new file under the videos directory.
func (c *Controller) StartRecord(id int64, done func(error)) {
	c.dispatch(StartRecord, id, done, func(s *Session, op *operation) {
		completion := op.complete(done)
		if s.pending.Has(StartRecord) {
			completion(Result{Err: pendingConflict(StartRecord)})
			return
		}
		path, err := c.paths.VideoPath()
		if err != nil {
			completion(Result{Err: systemError("failed to create video path", err)})
			return
		}
		s.StartRecord(path, completion)
	})
}

// StopRecord stops the recording and completes with its path.
func (c *Controller) StopRecord(id int64, done func(string, error)) {
	c.dispatch(StopRecord, id, func(err error) { done("", err) }, func(s *Session, op *operation) {
		s.StopRecord(func(r Result) {
			op.finish(r.Err)
			done(r.Path, r.Err)
		})
	})
}

// StartImageStream streams frames into the sink attached to the broker.
func (c *Controller) StartImageStream(id int64, done func(error)) {
	c.dispatch(StartImageStream, id, done, func(s *Session, op *operation) {
		s.StartImageStream(op.complete(done))
	})
}

// StopImageStream stops streaming and hands the sink back to the broker.
func (c *Controller) StopImageStream(id int64, done func(error)) {
	c.dispatch(StopImageStream, id, done, func(s *Session, op *operation) {
		s.StopImageStream(op.complete(done))
	})
}

// Dispose tears the session down. Disposing an unknown session succeeds.
func (c *Controller) Dispose(id int64, done func(error)) {
	op := c.newOperation(operationDispose, id)
	posted := c.loop.post(func() {
		if s, ok := c.registry.Lookup(id); ok {
			c.disposeSession(s)
		}
		op.finish(nil)
		done(nil)
	})
	if !posted {
		err := systemError(msgStopped, nil)
		op.finish(err)
		done(err)
	}
}

// dispatch runs task on the control loop against session id. fail receives
// the error when the controller is stopped or the session does not exist.
func (c *Controller) dispatch(kind OperationKind, id int64, fail func(error), task func(*Session, *operation)) {
	op := c.newOperation(kind.String(), id)
	reject := func(err error) {
		op.finish(err)
		fail(err)
	}
	posted := c.loop.post(func() {
		s, ok := c.registry.Lookup(id)
		if !ok {
			reject(notFoundError(msgCameraNotCreated))
			return
		}
		task(s, op)
		c.refreshGauges()
	})
	if !posted {
		reject(systemError(msgStopped, nil))
	}
}

func (c *Controller) disposeSession(s *Session) {
	c.registry.Remove(s.id)
	s.Dispose()
	c.publish(events.CameraDisposedEvent{
		CameraID:  s.id,
		Device:    s.deviceID,
		Timestamp: timestamp(),
	})
	c.refreshGauges()
}

func (c *Controller) sessionFault(s *Session, err error) {
	c.publish(events.CameraErrorEvent{
		CameraID:  s.id,
		Device:    s.deviceID,
		Error:     err.Error(),
		Timestamp: timestamp(),
	})
	c.refreshGauges()
}

func (c *Controller) refreshGauges() {
	sessions := c.registry.List()
	pending := 0
	for _, s := range sessions {
		pending += s.pending.Len()
	}
	metrics.SetSessions(len(sessions))
	metrics.SetPending(pending)
}

func (c *Controller) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

const resultSuccess = "success"

// operation instruments one command from submission to completion.
type operation struct {
	c        *Controller
	id       string
	name     string
	cameraID int64
	started  time.Time
}

func (c *Controller) newOperation(name string, cameraID int64) *operation {
	return &operation{
		c:        c,
		id:       xid.New().String(),
		name:     name,
		cameraID: cameraID,
		started:  time.Now(),
	}
}

// complete adapts a func(error) callback to a Completion.
func (op *operation) complete(done func(error)) Completion {
	return func(r Result) {
		op.finish(r.Err)
		done(r.Err)
	}
}

func (op *operation) finish(err error) {
	elapsed := time.Since(op.started)
	result := resultSuccess
	message := ""
	if err != nil {
		result = string(CodeOf(err))
		message = MessageOf(err)
	}
	metrics.ObserveOperation(op.name, result, elapsed)

	logger := op.c.logger
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) && ce.Code == CodeInternal {
			logger.Error("Operation failed", "operation", op.name, "camera_id", op.cameraID, "error", err)
		} else {
			logger.Debug("Operation failed", "operation", op.name, "camera_id", op.cameraID, "error", err)
		}
	}

	op.c.publish(events.OperationCompletedEvent{
		OperationID: op.id,
		CameraID:    op.cameraID,
		Operation:   op.name,
		Result:      result,
		Error:       message,
		DurationMs:  elapsed.Milliseconds(),
		Timestamp:   timestamp(),
	})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
