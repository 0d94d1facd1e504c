// Package process runs capture subprocesses (ffmpeg, ffprobe) on behalf of
// camera engines.
//
// Process wraps os/exec for a single long-running subprocess:
//   - Start returns as soon as the child is running
//   - stdout can be handed to a consumer (the MJPEG frame splitter) or logged
//   - stdin can be kept open so frames can be piped into an encoder
//   - Stop closes stdin, sends SIGINT and force kills after a timeout
//   - OnExit fires exactly once, whether the child exits on its own or is stopped
//
// Output runs a short-lived command to completion and returns its stdout,
// which is how probes and one-shot captures are executed:
//
//	out, err := process.Output(ctx, "ffprobe -v error -of json -show_streams /dev/video0", logger, nil)
package process
