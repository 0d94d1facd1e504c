package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultResolution = "1280x720"
	defaultFPS        = 30
	defaultQuality    = 5
	defaultPreset     = "veryfast"
)

// Builder produces ffmpeg and ffprobe command lines. The result is a single
// string with paths quoted, split again by the process package.
type Builder struct {
	FFmpegPath  string
	FFprobePath string
}

// NewBuilder returns a Builder, defaulting binaries to ffmpeg and ffprobe on PATH.
func NewBuilder(ffmpegPath, ffprobePath string) *Builder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Builder{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// ffmpegBase returns the binary with standard flags. readsStdin must be set
// for commands whose input is pipe:0.
func (b *Builder) ffmpegBase(readsStdin bool) string {
	base := quote(b.FFmpegPath) + " -hide_banner -loglevel level+warning"
	if !readsStdin {
		base += " -nostdin"
	}
	return base
}

// CaptureCommand builds the pipeline that reads the input and writes an
// MJPEG elementary stream to stdout.
func (b *Builder) CaptureCommand(p CaptureParams) (string, error) {
	var cmd strings.Builder
	cmd.WriteString(b.ffmpegBase(false))

	if err := writeInput(&cmd, p.Input); err != nil {
		return "", err
	}

	cmd.WriteString(" -an")
	if p.FPS > 0 {
		cmd.WriteString(" -r " + strconv.Itoa(p.FPS))
	}
	quality := p.Quality
	if quality <= 0 {
		quality = defaultQuality
	}
	cmd.WriteString(" -c:v mjpeg -pix_fmt yuvj420p -q:v " + strconv.Itoa(quality))
	cmd.WriteString(" -f mjpeg pipe:1")
	return cmd.String(), nil
}

// RecordCommand builds an encoder that reads MJPEG from stdin and writes an
// H.264 mp4 to the output path.
func (b *Builder) RecordCommand(p RecordParams) (string, error) {
	if p.OutputPath == "" {
		return "", fmt.Errorf("output path is required")
	}
	fps := p.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	preset := p.Preset
	if preset == "" {
		preset = defaultPreset
	}

	var cmd strings.Builder
	cmd.WriteString(b.ffmpegBase(true))
	cmd.WriteString(" -f mjpeg -framerate " + strconv.Itoa(fps) + " -i pipe:0")
	cmd.WriteString(" -c:v libx264 -preset " + preset + " -pix_fmt yuv420p")
	if p.VideoBitrate > 0 {
		cmd.WriteString(" -b:v " + strconv.Itoa(p.VideoBitrate))
	}
	cmd.WriteString(" -movflags +faststart -y " + quote(p.OutputPath))
	return cmd.String(), nil
}

// SnapshotCommand builds a one-shot capture of a single JPEG frame, used
// when no preview pipeline is running.
func (b *Builder) SnapshotCommand(in Input, outputPath string) (string, error) {
	if outputPath == "" {
		return "", fmt.Errorf("output path is required")
	}
	var cmd strings.Builder
	cmd.WriteString(b.ffmpegBase(false))
	if err := writeInput(&cmd, in); err != nil {
		return "", err
	}
	cmd.WriteString(" -frames:v 1 -q:v 2 -update 1 -y " + quote(outputPath))
	return cmd.String(), nil
}

// ProbeCommand builds an ffprobe call that reports the first video stream's
// dimensions as JSON.
func (b *Builder) ProbeCommand(in Input) (string, error) {
	var cmd strings.Builder
	cmd.WriteString(quote(b.FFprobePath) + " -hide_banner -v error")
	cmd.WriteString(" -select_streams v:0 -show_entries stream=width,height -of json")

	switch {
	case in.TestPattern:
		cmd.WriteString(" -f lavfi " + quote(testSource(in)))
	case in.DevicePath == "":
		return "", fmt.Errorf("device path is required")
	default:
		cmd.WriteString(" -f v4l2")
		writeDeviceFormat(&cmd, in)
		cmd.WriteString(" " + quote(in.DevicePath))
	}
	return cmd.String(), nil
}

func writeInput(cmd *strings.Builder, in Input) error {
	if in.TestPattern {
		cmd.WriteString(" -re -f lavfi -i " + quote(testSource(in)))
		return nil
	}
	if in.DevicePath == "" {
		return fmt.Errorf("device path is required")
	}
	cmd.WriteString(" -f v4l2")
	applyInputOptions(in.Options, cmd)
	writeDeviceFormat(cmd, in)
	cmd.WriteString(" -i " + quote(in.DevicePath))
	return nil
}

func writeDeviceFormat(cmd *strings.Builder, in Input) {
	if in.InputFormat != "" {
		cmd.WriteString(" -input_format " + in.InputFormat)
	}
	if in.Resolution != "" {
		cmd.WriteString(" -video_size " + in.Resolution)
	}
	if in.FPS > 0 {
		cmd.WriteString(" -framerate " + strconv.Itoa(in.FPS))
	}
}

func testSource(in Input) string {
	size := in.Resolution
	if size == "" {
		size = defaultResolution
	}
	fps := in.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	return fmt.Sprintf("testsrc2=size=%s:rate=%d", size, fps)
}

// quote wraps s in double quotes when it contains characters the command
// parser would split on or interpret.
func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"'\\") {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}
