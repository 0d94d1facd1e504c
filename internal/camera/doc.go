// Package camera implements the asynchronous camera-session controller.
//
// A Controller owns one goroutine, the control loop, which runs every
// command and every engine callback in submission order. Commands never
// block: each takes a completion callback that is invoked exactly once on
// the control loop, with the result or an *Error.
//
// Each open device has one Session. A Session allows at most one pending
// operation per OperationKind; a second request of the same kind fails
// immediately with a conflict error while the first is still in flight.
//
// Streamed frames go to a single frame sink owned by the SinkBroker.
// Transports attach the sink; a streaming session claims it for the
// duration of the stream and releases it when the stream stops or the
// session is disposed.
package camera
