package camera

import (
	"errors"
	"fmt"
)

// Code classifies controller errors.
type Code string

// Error codes.
const (
	CodeValidation Code = "validation_error"
	CodeConflict   Code = "conflict_error"
	CodeNotFound   Code = "not_found"
	CodeSystem     Code = "system_error"
	CodeCapture    Code = "capture_error"
	CodeInternal   Code = "internal_error"
)

// Error is the error type every completion receives.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error.
func NewError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, CodeInternal
// for any other non-nil error and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}

// MessageOf returns the message of the first *Error in err's chain, or err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}

func validationError(message string, cause error) *Error {
	return NewError(CodeValidation, message, cause)
}

func conflictError(message string) *Error {
	return NewError(CodeConflict, message, nil)
}

func notFoundError(message string) *Error {
	return NewError(CodeNotFound, message, nil)
}

func systemError(message string, cause error) *Error {
	return NewError(CodeSystem, message, cause)
}

func captureError(message string, cause error) *Error {
	return NewError(CodeCapture, message, cause)
}

func internalError(message string) *Error {
	return NewError(CodeInternal, message, nil)
}

// Messages clients may match on.
const (
	msgCameraNotCreated   = "Camera not created"
	msgCameraExists       = "Camera with given device id already exists"
	msgDisposed           = "operation cancelled due to disposal"
	msgStopped            = "controller stopped"
	msgNoFrameListener    = "no frame listener attached"
	msgFrameSinkInUse     = "frame sink in use"
	msgNotPreviewing      = "preview is not running"
	msgNotPaused          = "preview is not paused"
	msgNotInitialized     = "camera not initialized"
	msgAlreadyInitialized = "camera already initialized"
	msgAlreadyRecording   = "recording already in progress"
	msgNotRecording       = "no recording in progress"
	msgAlreadyStreaming   = "image stream already running"
	msgNotStreaming       = "image stream not running"
)
