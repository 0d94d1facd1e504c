package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/smazurov/camerahost/internal/devices"
	"github.com/smazurov/camerahost/internal/ffmpeg"
	"github.com/smazurov/camerahost/internal/logging"
	"github.com/smazurov/camerahost/internal/process"
)

const defaultTimeout = 10 * time.Second

var (
	errPreviewNotRunning = errors.New("preview is not running")
	errNoFrame           = errors.New("no frame captured yet")
)

// Config tunes the ffmpeg pipelines.
type Config struct {
	FFmpegPath    string
	FFprobePath   string
	InputFormat   string
	Resolution    string
	FPS           int
	VideoBitrate  int // default recording bitrate, 0 lets the encoder choose
	StreamFPS     int // frame sink rate limit, 0 forwards every frame
	StreamQuality int // mjpeg qscale of the capture pipeline
	Options       []ffmpeg.OptionType
	Timeout       time.Duration // bound on probing and on waiting for the first frame
}

// Resolver maps device IDs to frame sources.
type Resolver interface {
	Resolve(id string) (devices.Source, error)
}

// FFmpegFactory creates ffmpeg-backed engines.
type FFmpegFactory struct {
	cfg      Config
	resolver Resolver
	builder  *ffmpeg.Builder
}

// NewFFmpegFactory returns a Factory whose engines run ffmpeg subprocesses.
func NewFFmpegFactory(cfg Config, resolver Resolver) *FFmpegFactory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &FFmpegFactory{
		cfg:      cfg,
		resolver: resolver,
		builder:  ffmpeg.NewBuilder(cfg.FFmpegPath, cfg.FFprobePath),
	}
}

// NewEngine resolves deviceID and returns an engine for it that captures with
// settings over the configured defaults. The device is not touched until Open.
func (f *FFmpegFactory) NewEngine(deviceID string, settings Settings, obs Observer) (Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	src, err := f.resolver.Resolve(deviceID)
	if err != nil {
		return nil, err
	}
	settings = settings.withDefaults(f.cfg)
	if settings.Resolution, err = resolveResolution(settings.Resolution); err != nil {
		return nil, fmt.Errorf("configured capture resolution: %w", err)
	}
	return &ffmpegEngine{
		cfg:          f.cfg,
		settings:     settings,
		builder:      f.builder,
		source:       src,
		obs:          obs,
		logger:       logging.GetLogger("capture").With("device", deviceID),
		ffmpegLogger: logging.GetLogger("ffmpeg").With("device", deviceID),
	}, nil
}

type ffmpegEngine struct {
	cfg          Config
	settings     Settings
	builder      *ffmpeg.Builder
	source       devices.Source
	obs          Observer
	logger       logging.Logger
	ffmpegLogger logging.Logger

	mu         sync.Mutex
	closed     bool
	size       Size
	pipeline   *process.Process
	firstFrame chan struct{}
	paused     bool
	latest     []byte
	seq        uint64
	recorder   *process.Process
	recordPath string
	sink       FrameSink
	lastPush   time.Time
}

func (e *ffmpegEngine) input() ffmpeg.Input {
	return ffmpeg.Input{
		DevicePath:  e.source.Path,
		TestPattern: e.source.TestPattern,
		InputFormat: e.cfg.InputFormat,
		Resolution:  e.settings.Resolution,
		FPS:         e.settings.FPS,
		Options:     e.cfg.Options,
	}
}

// report runs fn unless the engine has been closed.
func (e *ffmpegEngine) report(fn func()) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if !closed {
		fn()
	}
}

func (e *ffmpegEngine) Open() {
	go func() {
		var err error
		if !e.source.TestPattern {
			if _, statErr := os.Stat(e.source.Path); statErr != nil {
				err = fmt.Errorf("open %s: %w", e.source.Path, statErr)
			}
		}
		e.report(func() { e.obs.OnOpened(err) })
	}()
}

func (e *ffmpegEngine) StartPreview() {
	go func() {
		size, err := e.startPipeline()
		e.report(func() { e.obs.OnPreviewStarted(size, err) })
	}()
}

func (e *ffmpegEngine) startPipeline() (Size, error) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Timeout)
	defer cancel()

	probeCmd, err := e.builder.ProbeCommand(e.input())
	if err != nil {
		return Size{}, err
	}
	out, err := process.Output(ctx, probeCmd, e.ffmpegLogger, ffmpeg.ParseLogLevel)
	if err != nil {
		return Size{}, fmt.Errorf("probe device: %w", err)
	}
	width, height, err := ffmpeg.ParseProbeOutput(out)
	if err != nil {
		return Size{}, err
	}
	size := Size{Width: width, Height: height}

	captureCmd, err := e.builder.CaptureCommand(ffmpeg.CaptureParams{
		Input:   e.input(),
		Quality: e.cfg.StreamQuality,
	})
	if err != nil {
		return Size{}, err
	}

	firstFrame := make(chan struct{})
	pipeline := process.New("capture", captureCmd, e.logger, process.Options{
		Stdout:       e.consumeFrames,
		OnExit:       e.pipelineExited,
		OutputLogger: e.ffmpegLogger,
		LogParser:    ffmpeg.ParseLogLevel,
	})

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Size{}, errors.New("engine closed")
	}
	e.size = size
	e.pipeline = pipeline
	e.firstFrame = firstFrame
	e.paused = false
	e.mu.Unlock()

	if err := pipeline.Start(); err != nil {
		return Size{}, fmt.Errorf("start capture pipeline: %w", err)
	}

	select {
	case <-firstFrame:
		return size, nil
	case <-pipeline.Done():
		return Size{}, fmt.Errorf("capture pipeline exited before the first frame (code %d)", pipeline.Info().ExitCode)
	case <-ctx.Done():
		go pipeline.Stop()
		return Size{}, fmt.Errorf("no frame within %s", e.cfg.Timeout)
	}
}

// consumeFrames runs on the pipeline's stdout goroutine.
func (e *ffmpegEngine) consumeFrames(r io.Reader) {
	if err := readFrames(r, e.handleFrame); err != nil {
		e.logger.Warn("Frame reader stopped", "error", err)
	}
}

func (e *ffmpegEngine) handleFrame(data []byte) {
	now := time.Now()

	e.mu.Lock()
	e.seq++
	seq := e.seq
	size := e.size
	if e.firstFrame != nil {
		close(e.firstFrame)
		e.firstFrame = nil
	}
	if !e.paused {
		e.latest = data
	}
	var recorderIn io.Writer
	if e.recorder != nil {
		recorderIn = e.recorder.Stdin()
	}
	sink := e.sink
	if sink != nil && (e.paused || !e.streamDue(now)) {
		sink = nil
	}
	if sink != nil {
		e.lastPush = now
	}
	e.mu.Unlock()

	if recorderIn != nil {
		if _, err := recorderIn.Write(data); err != nil {
			e.logger.Debug("Recorder input closed", "error", err)
		}
	}
	if sink != nil {
		frame := Frame{
			Data:      data,
			Width:     size.Width,
			Height:    size.Height,
			Format:    "jpeg",
			Timestamp: now,
			Seq:       seq,
		}
		if err := sink.Push(frame); err != nil {
			e.logger.Debug("Frame sink refused frame", "seq", seq, "error", err)
		}
	}
}

// streamDue applies the StreamFPS limit. Callers hold e.mu.
func (e *ffmpegEngine) streamDue(now time.Time) bool {
	if e.cfg.StreamFPS <= 0 || e.lastPush.IsZero() {
		return true
	}
	interval := time.Second / time.Duration(e.cfg.StreamFPS)
	return now.Sub(e.lastPush) >= interval-interval/10
}

func (e *ffmpegEngine) pipelineExited(code int, err error) {
	e.mu.Lock()
	closed := e.closed
	running := e.pipeline != nil && e.firstFrame == nil
	e.mu.Unlock()
	if closed || !running {
		return
	}
	e.logger.Error("Capture pipeline exited", "exit_code", code, "error", err)
	e.obs.OnCaptureError(fmt.Errorf("capture pipeline exited with code %d", code))
}

func (e *ffmpegEngine) previewRunning() bool {
	return e.pipeline != nil && e.pipeline.Info().State == process.StateRunning
}

func (e *ffmpegEngine) PausePreview() {
	e.mu.Lock()
	var err error
	if e.previewRunning() {
		e.paused = true
	} else {
		err = errPreviewNotRunning
	}
	e.mu.Unlock()
	go e.report(func() { e.obs.OnPreviewPaused(err) })
}

func (e *ffmpegEngine) ResumePreview() {
	e.mu.Lock()
	var err error
	if e.previewRunning() {
		e.paused = false
	} else {
		err = errPreviewNotRunning
	}
	e.mu.Unlock()
	go e.report(func() { e.obs.OnPreviewResumed(err) })
}

func (e *ffmpegEngine) TakePicture(path string) {
	e.mu.Lock()
	frame := e.latest
	e.mu.Unlock()

	go func() {
		err := e.writePicture(path, frame)
		e.report(func() { e.obs.OnPictureTaken(path, err) })
	}()
}

// writePicture stores the latest preview frame, or grabs one directly from
// the device when no preview frame exists yet.
func (e *ffmpegEngine) writePicture(path string, frame []byte) error {
	if frame != nil {
		if err := os.WriteFile(path, frame, 0o644); err != nil {
			return fmt.Errorf("write picture: %w", err)
		}
		return nil
	}

	e.mu.Lock()
	running := e.previewRunning()
	e.mu.Unlock()
	if running {
		return errNoFrame
	}

	cmd, err := e.builder.SnapshotCommand(e.input(), path)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Timeout)
	defer cancel()
	if _, err := process.Output(ctx, cmd, e.ffmpegLogger, ffmpeg.ParseLogLevel); err != nil {
		return fmt.Errorf("capture picture: %w", err)
	}
	return nil
}

func (e *ffmpegEngine) StartRecord(path string) {
	err := e.startRecorder(path)
	go e.report(func() { e.obs.OnRecordStarted(err) })
}

func (e *ffmpegEngine) startRecorder(path string) error {
	cmd, err := e.builder.RecordCommand(ffmpeg.RecordParams{
		FPS:          e.settings.FPS,
		VideoBitrate: e.settings.VideoBitrate,
		OutputPath:   path,
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.previewRunning() {
		return errPreviewNotRunning
	}
	if e.recorder != nil {
		return errors.New("already recording")
	}

	recorder := process.New("record", cmd, e.logger, process.Options{
		Stdin:         true,
		StdinEOFStops: true,
		OutputLogger:  e.ffmpegLogger,
		LogParser:     ffmpeg.ParseLogLevel,
		OnExit: func(code int, _ error) {
			go e.recorderExited(code)
		},
	})
	if err := recorder.Start(); err != nil {
		return fmt.Errorf("start recorder: %w", err)
	}
	e.recorder = recorder
	e.recordPath = path
	return nil
}

// recorderExited reports recorders that die while still attached.
func (e *ffmpegEngine) recorderExited(code int) {
	e.mu.Lock()
	rec := e.recorder
	stillAttached := rec != nil && rec.Info().State == process.StateError
	if stillAttached {
		e.recorder = nil
	}
	closed := e.closed
	e.mu.Unlock()
	if stillAttached && !closed {
		e.obs.OnCaptureError(fmt.Errorf("recorder exited with code %d", code))
	}
}

func (e *ffmpegEngine) StopRecord() {
	e.mu.Lock()
	rec := e.recorder
	path := e.recordPath
	e.recorder = nil
	e.recordPath = ""
	e.mu.Unlock()

	go func() {
		if rec == nil {
			e.report(func() { e.obs.OnRecordStopped("", errors.New("not recording")) })
			return
		}
		var err error
		if code := rec.Stop(); code != 0 {
			err = fmt.Errorf("recorder exited with code %d", code)
		}
		e.report(func() { e.obs.OnRecordStopped(path, err) })
	}()
}

func (e *ffmpegEngine) StartImageStream(sink FrameSink) {
	e.mu.Lock()
	var err error
	switch {
	case !e.previewRunning():
		err = errPreviewNotRunning
	case sink == nil:
		err = errors.New("nil frame sink")
	default:
		e.sink = sink
		e.lastPush = time.Time{}
	}
	e.mu.Unlock()
	go e.report(func() { e.obs.OnImageStreamStarted(err) })
}

func (e *ffmpegEngine) StopImageStream() {
	e.mu.Lock()
	e.sink = nil
	e.mu.Unlock()
	go e.report(func() { e.obs.OnImageStreamStopped(nil) })
}

// Close stops both subprocesses in the background and returns immediately.
func (e *ffmpegEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	pipeline, recorder := e.pipeline, e.recorder
	e.pipeline, e.recorder, e.sink, e.latest = nil, nil, nil, nil
	e.mu.Unlock()

	go func() {
		if recorder != nil {
			recorder.Stop()
		}
		if pipeline != nil {
			pipeline.Stop()
		}
		e.logger.Debug("Engine closed")
	}()
	return nil
}
