package capture

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

const (
	maxFrameSize     = 16 << 20
	initialFrameSize = 256 << 10
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}

	errFrameTooLarge = errors.New("jpeg frame exceeds size limit")
)

// splitJPEG is a bufio.SplitFunc yielding complete JPEG images from an
// MJPEG elementary stream. Bytes before a start-of-image marker are skipped.
// Baseline JPEG entropy data byte-stuffs 0xFF, so the first end-of-image
// marker after the start ends the frame.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF, it may begin the next marker.
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		if len(data)-start > maxFrameSize {
			return 0, nil, errFrameTooLarge
		}
		return start, nil, nil
	}

	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}

// readFrames calls emit with every JPEG read from r until r is exhausted.
// emit receives a slice it may keep.
func readFrames(r io.Reader, emit func([]byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialFrameSize), maxFrameSize+len(jpegEOI))
	scanner.Split(splitJPEG)
	for scanner.Scan() {
		token := scanner.Bytes()
		frame := make([]byte, len(token))
		copy(frame, token)
		emit(frame)
	}
	return scanner.Err()
}
