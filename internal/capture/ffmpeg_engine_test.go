package capture

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camerahost/internal/devices"
)

const fakeFFmpeg = `#!/bin/sh
for last; do :; done
case "$*" in
  *pipe:1*) trap 'exit 0' INT TERM; while :; do printf '\377\330frame\377\331'; sleep 0.02; done ;;
  *pipe:0*) cat > "$last" ;;
  *) printf '\377\330snap\377\331' > "$last" ;;
esac
`

const fakeFFprobe = `#!/bin/sh
echo '{"streams":[{"width":320,"height":240}]}'
`

type staticResolver struct {
	src devices.Source
	err error
}

func (r staticResolver) Resolve(string) (devices.Source, error) {
	return r.src, r.err
}

type observed struct {
	name string
	path string
	size Size
	err  error
}

type recordingObserver struct {
	ch chan observed
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{ch: make(chan observed, 32)}
}

func (o *recordingObserver) OnOpened(err error) { o.ch <- observed{name: "opened", err: err} }
func (o *recordingObserver) OnPreviewStarted(size Size, err error) {
	o.ch <- observed{name: "previewStarted", size: size, err: err}
}
func (o *recordingObserver) OnPreviewPaused(err error)  { o.ch <- observed{name: "paused", err: err} }
func (o *recordingObserver) OnPreviewResumed(err error) { o.ch <- observed{name: "resumed", err: err} }
func (o *recordingObserver) OnPictureTaken(path string, err error) {
	o.ch <- observed{name: "picture", path: path, err: err}
}
func (o *recordingObserver) OnRecordStarted(err error) { o.ch <- observed{name: "recordStarted", err: err} }
func (o *recordingObserver) OnRecordStopped(path string, err error) {
	o.ch <- observed{name: "recordStopped", path: path, err: err}
}
func (o *recordingObserver) OnImageStreamStarted(err error) {
	o.ch <- observed{name: "streamStarted", err: err}
}
func (o *recordingObserver) OnImageStreamStopped(err error) {
	o.ch <- observed{name: "streamStopped", err: err}
}
func (o *recordingObserver) OnCaptureError(err error) { o.ch <- observed{name: "captureError", err: err} }

func (o *recordingObserver) next(t *testing.T, want string) observed {
	t.Helper()
	select {
	case ev := <-o.ch:
		if ev.name != want {
			t.Fatalf("got %s callback (err %v), want %s", ev.name, ev.err, want)
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for %s", want)
		return observed{}
	}
}

type bufferSink struct {
	mu     sync.Mutex
	frames []Frame
}

func (s *bufferSink) Push(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *bufferSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestEngine(t *testing.T, src devices.Source) (Engine, *recordingObserver) {
	t.Helper()
	bin := t.TempDir()
	factory := NewFFmpegFactory(Config{
		FFmpegPath:  writeScript(t, bin, "ffmpeg", fakeFFmpeg),
		FFprobePath: writeScript(t, bin, "ffprobe", fakeFFprobe),
		Timeout:     3 * time.Second,
	}, staticResolver{src: src})

	obs := newRecordingObserver()
	engine, err := factory.NewEngine(src.ID, Settings{}, obs)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine, obs
}

func TestFFmpegEngineLifecycle(t *testing.T) {
	engine, obs := newTestEngine(t, devices.Source{ID: devices.TestPatternID, TestPattern: true})
	out := t.TempDir()

	engine.Open()
	if ev := obs.next(t, "opened"); ev.err != nil {
		t.Fatalf("Open: %v", ev.err)
	}

	engine.StartPreview()
	ev := obs.next(t, "previewStarted")
	if ev.err != nil {
		t.Fatalf("StartPreview: %v", ev.err)
	}
	if ev.size != (Size{320, 240}) {
		t.Errorf("size = %v, want 320x240", ev.size)
	}

	picture := filepath.Join(out, "p.jpeg")
	engine.TakePicture(picture)
	if ev := obs.next(t, "picture"); ev.err != nil || ev.path != picture {
		t.Fatalf("TakePicture = (%q, %v)", ev.path, ev.err)
	}
	data, err := os.ReadFile(picture)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte("\xff\xd8frame\xff\xd9")) {
		t.Errorf("picture = %q, want one preview frame", data)
	}

	sink := &bufferSink{}
	engine.StartImageStream(sink)
	if ev := obs.next(t, "streamStarted"); ev.err != nil {
		t.Fatalf("StartImageStream: %v", ev.err)
	}

	video := filepath.Join(out, "v.mp4")
	engine.StartRecord(video)
	if ev := obs.next(t, "recordStarted"); ev.err != nil {
		t.Fatalf("StartRecord: %v", ev.err)
	}
	time.Sleep(150 * time.Millisecond)

	engine.StopRecord()
	if ev := obs.next(t, "recordStopped"); ev.err != nil || ev.path != video {
		t.Fatalf("StopRecord = (%q, %v)", ev.path, ev.err)
	}
	if info, err := os.Stat(video); err != nil || info.Size() == 0 {
		t.Errorf("recording not written: %v", err)
	}

	engine.StopImageStream()
	obs.next(t, "streamStopped")
	if sink.count() == 0 {
		t.Error("sink received no frames")
	}

	engine.PausePreview()
	if ev := obs.next(t, "paused"); ev.err != nil {
		t.Errorf("PausePreview: %v", ev.err)
	}
	engine.ResumePreview()
	if ev := obs.next(t, "resumed"); ev.err != nil {
		t.Errorf("ResumePreview: %v", ev.err)
	}

	if err := engine.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestFFmpegEngineRequiresPreview(t *testing.T) {
	engine, obs := newTestEngine(t, devices.Source{ID: devices.TestPatternID, TestPattern: true})

	engine.PausePreview()
	if ev := obs.next(t, "paused"); !errors.Is(ev.err, errPreviewNotRunning) {
		t.Errorf("PausePreview err = %v", ev.err)
	}
	engine.StartRecord(filepath.Join(t.TempDir(), "v.mp4"))
	if ev := obs.next(t, "recordStarted"); !errors.Is(ev.err, errPreviewNotRunning) {
		t.Errorf("StartRecord err = %v", ev.err)
	}
	engine.StartImageStream(&bufferSink{})
	if ev := obs.next(t, "streamStarted"); !errors.Is(ev.err, errPreviewNotRunning) {
		t.Errorf("StartImageStream err = %v", ev.err)
	}
	engine.StopRecord()
	if ev := obs.next(t, "recordStopped"); ev.err == nil {
		t.Error("StopRecord without recording should fail")
	}
}

func TestFFmpegEngineSnapshotWithoutPreview(t *testing.T) {
	engine, obs := newTestEngine(t, devices.Source{ID: devices.TestPatternID, TestPattern: true})

	picture := filepath.Join(t.TempDir(), "snap.jpeg")
	engine.TakePicture(picture)
	if ev := obs.next(t, "picture"); ev.err != nil {
		t.Fatalf("TakePicture: %v", ev.err)
	}
	if data, _ := os.ReadFile(picture); !bytes.Contains(data, []byte("snap")) {
		t.Errorf("picture = %q, want one-shot capture", data)
	}
}

func TestFFmpegEngineOpenMissingDevice(t *testing.T) {
	engine, obs := newTestEngine(t, devices.Source{ID: "gone", Path: filepath.Join(t.TempDir(), "video9")})
	engine.Open()
	if ev := obs.next(t, "opened"); ev.err == nil {
		t.Error("Open of a missing node should fail")
	}
}

func TestFFmpegFactoryResolveError(t *testing.T) {
	factory := NewFFmpegFactory(Config{}, staticResolver{err: devices.ErrDeviceNotFound})
	if _, err := factory.NewEngine("x", Settings{}, newRecordingObserver()); !errors.Is(err, devices.ErrDeviceNotFound) {
		t.Errorf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestFFmpegEngineSilentAfterClose(t *testing.T) {
	engine, obs := newTestEngine(t, devices.Source{ID: devices.TestPatternID, TestPattern: true})
	engine.Close()
	engine.Open()
	select {
	case ev := <-obs.ch:
		t.Fatalf("callback %s after Close", ev.name)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFFmpegFactorySettings(t *testing.T) {
	factory := NewFFmpegFactory(
		Config{Resolution: "640x480", FPS: 15, VideoBitrate: 1_000_000, InputFormat: "mjpeg"},
		staticResolver{src: devices.Source{ID: "cam", Path: "/dev/video0"}},
	)

	tests := []struct {
		name        string
		settings    Settings
		wantSize    string
		wantFPS     int
		wantBitrate int
	}{
		{"config defaults", Settings{}, "640x480", 15, 1_000_000},
		{"explicit size and fps", Settings{Resolution: "1280x720", FPS: 30}, "1280x720", 30, 1_000_000},
		{"preset and bitrate", Settings{Resolution: ResolutionVeryHigh, VideoBitrate: 8_000_000}, "1920x1080", 15, 8_000_000},
		{"max leaves size to the device", Settings{Resolution: ResolutionMax}, "", 15, 1_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := factory.NewEngine("cam", tt.settings, newRecordingObserver())
			if err != nil {
				t.Fatal(err)
			}
			e := engine.(*ffmpegEngine)
			in := e.input()
			if in.Resolution != tt.wantSize || in.FPS != tt.wantFPS || in.InputFormat != "mjpeg" {
				t.Errorf("input = %+v, want %s@%d", in, tt.wantSize, tt.wantFPS)
			}
			if e.settings.VideoBitrate != tt.wantBitrate {
				t.Errorf("video bitrate = %d, want %d", e.settings.VideoBitrate, tt.wantBitrate)
			}
		})
	}
}

func TestFFmpegFactoryRejectsInvalidSettings(t *testing.T) {
	factory := NewFFmpegFactory(Config{}, staticResolver{src: devices.Source{ID: "cam", Path: "/dev/video0"}})
	if _, err := factory.NewEngine("cam", Settings{Resolution: "huge"}, newRecordingObserver()); err == nil {
		t.Error("expected error for an unknown resolution")
	}

	bad := NewFFmpegFactory(Config{Resolution: "wide"}, staticResolver{src: devices.Source{ID: "cam", Path: "/dev/video0"}})
	if _, err := bad.NewEngine("cam", Settings{}, newRecordingObserver()); err == nil {
		t.Error("expected error for an invalid configured resolution")
	}
}
