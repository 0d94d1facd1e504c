package ffmpeg

import (
	"encoding/json"
	"errors"
	"fmt"
)

type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

// ParseProbeOutput extracts the first video stream's dimensions from
// ProbeCommand output.
func ParseProbeOutput(data []byte) (width, height int, err error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, 0, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return 0, 0, errors.New("ffprobe reported no video stream")
	}
	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return 0, 0, fmt.Errorf("ffprobe reported invalid size %dx%d", s.Width, s.Height)
	}
	return s.Width, s.Height, nil
}
