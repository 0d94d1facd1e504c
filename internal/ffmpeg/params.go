package ffmpeg

// Input describes where frames come from.
type Input struct {
	DevicePath  string       // /dev/video0, ignored for test patterns
	TestPattern bool         // lavfi testsrc2 instead of a device
	InputFormat string       // mjpeg, yuyv422; empty lets the driver choose
	Resolution  string       // 1920x1080; empty lets the driver choose
	FPS         int          // 0 lets the driver choose
	Options     []OptionType // input tweaks
}

// CaptureParams configures the long-running capture pipeline that emits an
// MJPEG stream on stdout.
type CaptureParams struct {
	Input   Input
	Quality int // mjpeg qscale, 2 (best) to 31
	FPS     int // output rate, 0 keeps the input rate
}

// RecordParams configures the encoder that turns piped MJPEG into an mp4.
type RecordParams struct {
	FPS          int
	VideoBitrate int // bits per second, 0 keeps the x264 default rate control
	OutputPath   string
	Preset       string // libx264 preset, default veryfast
}
