package capture

import "fmt"

// Resolution presets accepted in Settings.Resolution. ResolutionMax leaves
// the size to the device.
const (
	ResolutionLow       = "low"
	ResolutionMedium    = "medium"
	ResolutionHigh      = "high"
	ResolutionVeryHigh  = "veryHigh"
	ResolutionUltraHigh = "ultraHigh"
	ResolutionMax       = "max"
)

var resolutionPresets = map[string]string{
	ResolutionLow:       "320x240",
	ResolutionMedium:    "720x480",
	ResolutionHigh:      "1280x720",
	ResolutionVeryHigh:  "1920x1080",
	ResolutionUltraHigh: "3840x2160",
	ResolutionMax:       "",
}

const (
	maxDimension    = 16384
	maxFPS          = 240
	maxVideoBitrate = 200_000_000
)

// Settings are the media parameters of one session. Zero fields fall back
// to the factory's configured defaults.
type Settings struct {
	Resolution   string // "1280x720" or a preset name
	FPS          int
	VideoBitrate int // bits per second of recordings, 0 lets the encoder choose
}

// Validate rejects settings no engine can honor.
func (s Settings) Validate() error {
	if _, err := resolveResolution(s.Resolution); err != nil {
		return err
	}
	if s.FPS < 0 || s.FPS > maxFPS {
		return fmt.Errorf("fps %d out of range 0-%d", s.FPS, maxFPS)
	}
	if s.VideoBitrate < 0 || s.VideoBitrate > maxVideoBitrate {
		return fmt.Errorf("video bitrate %d out of range 0-%d", s.VideoBitrate, maxVideoBitrate)
	}
	return nil
}

// withDefaults fills zero fields from cfg.
func (s Settings) withDefaults(cfg Config) Settings {
	if s.Resolution == "" {
		s.Resolution = cfg.Resolution
	}
	if s.FPS == 0 {
		s.FPS = cfg.FPS
	}
	if s.VideoBitrate == 0 {
		s.VideoBitrate = cfg.VideoBitrate
	}
	return s
}

// resolveResolution turns a preset or "WxH" into the "WxH" form ffmpeg
// takes. Empty input and ResolutionMax yield "".
func resolveResolution(value string) (string, error) {
	if size, ok := resolutionPresets[value]; ok {
		return size, nil
	}
	if value == "" {
		return "", nil
	}
	size, err := ParseSize(value)
	if err != nil {
		return "", fmt.Errorf("resolution %q is neither WIDTHxHEIGHT nor a preset", value)
	}
	if size.Width > maxDimension || size.Height > maxDimension {
		return "", fmt.Errorf("resolution %q out of range", value)
	}
	return size.String(), nil
}
