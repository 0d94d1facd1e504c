// Package capture defines the engine contract camera sessions drive and an
// ffmpeg-backed implementation of it.
//
// Engine methods never block on device I/O. Each one starts the work and
// reports the outcome later through the Observer the engine was created
// with, from an engine goroutine. Callers must not assume which goroutine.
//
// The ffmpeg engine runs one capture pipeline per open device that emits an
// MJPEG stream. Every decoded frame is fanned out to the preview buffer used
// for still pictures, to the recorder's stdin while recording and to the
// frame sink while streaming, so the device is only ever opened once.
package capture
