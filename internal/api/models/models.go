package models

import "time"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Device models
type DeviceListData struct {
	Devices []string `json:"devices" example:"[\"HD Pro Webcam C920:usb-046d_HD_Pro_Webcam_C920-video-index0\"]" doc:"Unique device names, display name and device ID joined by ':'"`
	Count   int      `json:"count" example:"1" doc:"Number of devices"`
}

type DeviceListResponse struct {
	Body DeviceListData
}

// Camera models
type CameraIDInput struct {
	CameraID int64 `path:"camera_id" minimum:"0" example:"0" doc:"Camera session identifier"`
}

type CreateCameraRequest struct {
	Body struct {
		Device       string `json:"device" minLength:"3" example:"HD Pro Webcam C920:usb-046d_HD_Pro_Webcam_C920-video-index0" doc:"Unique device name as returned by the device list"`
		Resolution   string `json:"resolution,omitempty" example:"1280x720" doc:"Capture size as WIDTHxHEIGHT or a preset (low, medium, high, veryHigh, ultraHigh, max). Empty uses the configured size"`
		FPS          int    `json:"fps,omitempty" minimum:"0" maximum:"240" example:"30" doc:"Capture framerate, 0 uses the configured one"`
		VideoBitrate int    `json:"video_bitrate,omitempty" minimum:"0" example:"4000000" doc:"Recording bitrate in bits per second, 0 uses the configured one"`
	}
}

type CreateCameraData struct {
	CameraID int64 `json:"camera_id" example:"0" doc:"Camera session identifier"`
}

type CreateCameraResponse struct {
	Body CreateCameraData
}

type SizeData struct {
	Width  int `json:"width" example:"1920" doc:"Frame width in pixels"`
	Height int `json:"height" example:"1080" doc:"Frame height in pixels"`
}

type InitializeResponse struct {
	Body SizeData
}

type PathData struct {
	Path string `json:"path" example:"/home/user/Pictures/PhotoCapture_2025_0127_103000_123.jpeg" doc:"Absolute path of the written file"`
}

type PathResponse struct {
	Body PathData
}

type StreamStatsData struct {
	FramesDelivered uint64     `json:"frames_delivered" example:"1200" doc:"Frames accepted by the frame sink"`
	FramesDropped   uint64     `json:"frames_dropped" example:"3" doc:"Frames the frame sink refused"`
	LastFrame       *time.Time `json:"last_frame,omitempty" doc:"When the last frame was delivered"`
}

type CameraData struct {
	CameraID      int64             `json:"camera_id" example:"0" doc:"Camera session identifier"`
	Device        string            `json:"device" example:"HD Pro Webcam C920:usb-046d_HD_Pro_Webcam_C920-video-index0" doc:"Unique device name"`
	DeviceID      string            `json:"device_id" example:"usb-046d_HD_Pro_Webcam_C920-video-index0" doc:"Stable device identifier"`
	State         string            `json:"state" enum:"uninitialized,previewing,paused" example:"previewing" doc:"Preview state"`
	Width         int               `json:"width,omitempty" example:"1920" doc:"Negotiated frame width"`
	Height        int               `json:"height,omitempty" example:"1080" doc:"Negotiated frame height"`
	Recording     bool              `json:"recording" example:"false" doc:"Whether a recording is in progress"`
	RecordingPath string            `json:"recording_path,omitempty" doc:"File the current recording is written to"`
	Streaming     bool              `json:"streaming" example:"false" doc:"Whether frames are streamed to the frame sink"`
	Stream        *StreamStatsData  `json:"stream,omitempty" doc:"Frame counters of the image stream"`
	Settings      MediaSettingsData `json:"settings" doc:"Media settings requested at creation"`
	Pending       []string          `json:"pending" example:"[\"takePicture\"]" doc:"Operations awaiting the capture engine"`
	CreatedAt     time.Time         `json:"created_at" doc:"When the session was created"`
}

type MediaSettingsData struct {
	Resolution   string `json:"resolution,omitempty" example:"high" doc:"Requested capture size or preset"`
	FPS          int    `json:"fps,omitempty" example:"30" doc:"Requested capture framerate"`
	VideoBitrate int    `json:"video_bitrate,omitempty" example:"4000000" doc:"Requested recording bitrate"`
}

type CameraListData struct {
	Cameras []CameraData `json:"cameras" doc:"Live camera sessions"`
	Count   int          `json:"count" example:"1" doc:"Number of sessions"`
}

type CameraListResponse struct {
	Body CameraListData
}
