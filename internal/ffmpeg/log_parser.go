package ffmpeg

import "strings"

// ParseLogLevel splits an ffmpeg log line produced with -loglevel level+...
// into its level and message. Lines look like "[warning] message" or
// "[mjpeg @ 0x55d0] [error] message"; the component prefix is kept in msg.
// Lines without a recognisable level are reported as info.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}
	if first := line[1:end]; isLogLevel(first) {
		return first, line[end+2:]
	}

	component, rest := line[:end+2], line[end+2:]
	if len(rest) < 3 || rest[0] != '[' {
		return "info", line
	}
	next := strings.Index(rest, "] ")
	if next == -1 || !isLogLevel(rest[1:next]) {
		return "info", line
	}
	return rest[1:next], component + rest[next+2:]
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
