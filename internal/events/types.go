package events

// Event type constants for kelindar/event.
const (
	TypeCameraCreated uint32 = iota + 1
	TypeCameraDisposed
	TypeOperationCompleted
	TypeCameraError
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CameraCreatedEvent is published once a session's device has opened.
type CameraCreatedEvent struct {
	CameraID  int64  `json:"camera_id" example:"0" doc:"Session identifier"`
	Device    string `json:"device" example:"usb-Logitech_C920-video-index0" doc:"Device identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraCreatedEvent.
func (e CameraCreatedEvent) Type() uint32 { return TypeCameraCreated }

// CameraDisposedEvent is published when a session is torn down.
type CameraDisposedEvent struct {
	CameraID  int64  `json:"camera_id" example:"0" doc:"Session identifier"`
	Device    string `json:"device" example:"usb-Logitech_C920-video-index0" doc:"Device identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraDisposedEvent.
func (e CameraDisposedEvent) Type() uint32 { return TypeCameraDisposed }

// OperationCompletedEvent reports the outcome of one controller command.
type OperationCompletedEvent struct {
	OperationID string `json:"operation_id" example:"d0l1b3qf0ul1mhf7a6sg" doc:"Unique operation identifier"`
	CameraID    int64  `json:"camera_id" example:"0" doc:"Session identifier, -1 when no session was resolved"`
	Operation   string `json:"operation" example:"takePicture" doc:"Operation kind"`
	Result      string `json:"result" example:"success" doc:"success or an error code"`
	Error       string `json:"error,omitempty" example:"Pending takePicture request exists" doc:"Error message"`
	DurationMs  int64  `json:"duration_ms" example:"120" doc:"Time from submission to completion"`
	Timestamp   string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Completion timestamp"`
}

// Type returns the event type identifier for OperationCompletedEvent.
func (e OperationCompletedEvent) Type() uint32 { return TypeOperationCompleted }

// CameraErrorEvent reports an engine failure no command asked about,
// such as a device being unplugged mid-preview.
type CameraErrorEvent struct {
	CameraID  int64  `json:"camera_id" example:"0" doc:"Session identifier"`
	Device    string `json:"device" example:"usb-Logitech_C920-video-index0" doc:"Device identifier"`
	Error     string `json:"error" example:"ffmpeg exited: exit status 1" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraErrorEvent.
func (e CameraErrorEvent) Type() uint32 { return TypeCameraError }
