package camera

// OperationKind names the operations a Session tracks. At most one
// operation of each kind may be pending per session.
type OperationKind int

// Operation kinds.
const (
	CreateCamera OperationKind = iota
	Initialize
	PausePreview
	ResumePreview
	StartRecord
	StopRecord
	TakePicture
	StartImageStream
	StopImageStream
)

var kindNames = [...]string{
	CreateCamera:     "create",
	Initialize:       "initialize",
	PausePreview:     "pausePreview",
	ResumePreview:    "resumePreview",
	StartRecord:      "startVideoRecording",
	StopRecord:       "stopVideoRecording",
	TakePicture:      "takePicture",
	StartImageStream: "startImageStream",
	StopImageStream:  "stopImageStream",
}

func (k OperationKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// operationDispose labels Dispose in events and metrics. Dispose is not
// tracked as a pending kind since it never conflicts.
const operationDispose = "dispose"
