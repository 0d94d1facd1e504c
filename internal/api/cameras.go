package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camerahost/internal/api/models"
	"github.com/smazurov/camerahost/internal/camera"
	"github.com/smazurov/camerahost/internal/capture"
	"github.com/smazurov/camerahost/internal/metrics"
)

// await issues a controller command and waits for its completion, the
// command timeout or the client going away, whichever comes first.
func await[T any](ctx context.Context, timeout time.Duration, issue func(done func(T, error))) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	// Buffered so a completion arriving after we stop waiting never blocks the control loop.
	ch := make(chan outcome, 1)
	issue(func(v T, err error) { ch <- outcome{v, err} })

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case o := <-ch:
		return o.value, o.err
	case <-timer.C:
		return zero, huma.Error504GatewayTimeout("camera command timed out")
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func awaitErr(ctx context.Context, timeout time.Duration, issue func(done func(error))) error {
	_, err := await(ctx, timeout, func(done func(struct{}, error)) {
		issue(func(err error) { done(struct{}{}, err) })
	})
	return err
}

// mapCameraError maps controller errors to HTTP errors.
func mapCameraError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(huma.StatusError); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return huma.Error504GatewayTimeout("camera command timed out")
	}
	msg := camera.MessageOf(err)
	switch camera.CodeOf(err) {
	case camera.CodeValidation:
		return huma.Error400BadRequest(msg, err)
	case camera.CodeNotFound:
		return huma.Error404NotFound(msg, err)
	case camera.CodeConflict:
		return huma.Error409Conflict(msg, err)
	case camera.CodeCapture:
		return huma.Error502BadGateway(msg, err)
	case camera.CodeSystem:
		return huma.Error500InternalServerError(msg, err)
	default:
		return huma.Error500InternalServerError("internal server error", err)
	}
}

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "Enumerate capture devices. Pass one of the returned names to create a camera.",
		Tags:        []string{"devices"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DeviceListResponse, error) {
		names, err := s.controller.ListDevices(ctx)
		if err != nil {
			return nil, mapCameraError(err)
		}
		return &models.DeviceListResponse{
			Body: models.DeviceListData{Devices: names, Count: len(names)},
		}, nil
	})
}

// createCamera waits for a create like await does. A session whose create
// completes after the request stopped waiting is disposed, so the device is
// not left locked by a camera no client knows about.
func (s *Server) createCamera(ctx context.Context, timeout time.Duration, device string, settings capture.Settings) (int64, error) {
	var (
		mu        sync.Mutex
		abandoned bool
		created   int64 = -1
	)
	id, err := await(ctx, timeout, func(done func(int64, error)) {
		s.controller.Create(device, settings, func(id int64, err error) {
			mu.Lock()
			late := abandoned
			if err == nil && !late {
				created = id
			}
			mu.Unlock()
			if late && err == nil {
				s.disposeAbandoned(id)
			}
			done(id, err)
		})
	})
	if err != nil {
		mu.Lock()
		abandoned = true
		orphan := created
		mu.Unlock()
		if orphan >= 0 {
			s.disposeAbandoned(orphan)
		}
	}
	return id, err
}

func (s *Server) disposeAbandoned(id int64) {
	s.logger.Warn("Disposing camera created after its request gave up", "camera_id", id)
	s.controller.Dispose(id, func(err error) {
		if err != nil {
			s.logger.Warn("Failed to dispose abandoned camera", "camera_id", id, "error", err)
		}
	})
}

func (s *Server) registerCameraRoutes() {
	timeout := s.options.CommandTimeout

	huma.Register(s.api, huma.Operation{
		OperationID: "list-cameras",
		Method:      http.MethodGet,
		Path:        "/api/cameras",
		Summary:     "List Cameras",
		Description: "List live camera sessions",
		Tags:        []string{"cameras"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.CameraListResponse, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		infos, err := s.controller.Sessions(ctx)
		if err != nil {
			return nil, mapCameraError(err)
		}
		cameras := make([]models.CameraData, len(infos))
		for i, info := range infos {
			cameras[i] = sessionToAPI(info)
		}
		return &models.CameraListResponse{
			Body: models.CameraListData{Cameras: cameras, Count: len(cameras)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-camera",
		Method:        http.MethodPost,
		Path:          "/api/cameras",
		Summary:       "Create Camera",
		Description:   "Open a device and create a camera session for it",
		Tags:          []string{"cameras"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 401, 409, 500, 502, 504},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.CreateCameraRequest) (*models.CreateCameraResponse, error) {
		settings := capture.Settings{
			Resolution:   input.Body.Resolution,
			FPS:          input.Body.FPS,
			VideoBitrate: input.Body.VideoBitrate,
		}
		id, err := s.createCamera(ctx, timeout, input.Body.Device, settings)
		if err != nil {
			return nil, mapCameraError(err)
		}
		return &models.CreateCameraResponse{Body: models.CreateCameraData{CameraID: id}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "initialize-camera",
		Method:      http.MethodPost,
		Path:        "/api/cameras/{camera_id}/initialize",
		Summary:     "Initialize Camera",
		Description: "Start the preview pipeline and return the negotiated frame size",
		Tags:        []string{"cameras"},
		Errors:      []int{401, 404, 409, 500, 502, 504},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CameraIDInput) (*models.InitializeResponse, error) {
		size, err := await(ctx, timeout, func(done func(capture.Size, error)) {
			s.controller.Initialize(input.CameraID, done)
		})
		if err != nil {
			return nil, mapCameraError(err)
		}
		return &models.InitializeResponse{
			Body: models.SizeData{Width: size.Width, Height: size.Height},
		}, nil
	})

	s.registerVoidCommand("pause-preview", "/api/cameras/{camera_id}/preview/pause", "Pause Preview",
		"Stop refreshing preview frames without releasing the device", s.controller.PausePreview)
	s.registerVoidCommand("resume-preview", "/api/cameras/{camera_id}/preview/resume", "Resume Preview",
		"Resume a paused preview", s.controller.ResumePreview)
	s.registerVoidCommand("start-recording", "/api/cameras/{camera_id}/recording/start", "Start Recording",
		"Record video into a new file under the videos directory", s.controller.StartRecord)
	s.registerVoidCommand("start-image-stream", "/api/cameras/{camera_id}/stream/start", "Start Image Stream",
		"Stream frames to the client attached at /api/frames", s.controller.StartImageStream)
	s.registerVoidCommand("stop-image-stream", "/api/cameras/{camera_id}/stream/stop", "Stop Image Stream",
		"Stop streaming frames", s.controller.StopImageStream)

	s.registerPathCommand("take-picture", "/api/cameras/{camera_id}/picture", "Take Picture",
		"Store a picture under the pictures directory and return its path", s.controller.TakePicture)
	s.registerPathCommand("stop-recording", "/api/cameras/{camera_id}/recording/stop", "Stop Recording",
		"Finish the recording and return its path", s.controller.StopRecord)

	huma.Register(s.api, huma.Operation{
		OperationID:   "dispose-camera",
		Method:        http.MethodDelete,
		Path:          "/api/cameras/{camera_id}",
		Summary:       "Dispose Camera",
		Description:   "Release the device. Pending operations fail; unknown cameras succeed.",
		Tags:          []string{"cameras"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 500, 504},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.CameraIDInput) (*struct{}, error) {
		err := awaitErr(ctx, timeout, func(done func(error)) {
			s.controller.Dispose(input.CameraID, done)
		})
		if err != nil {
			return nil, mapCameraError(err)
		}
		return nil, nil
	})
}

func (s *Server) registerVoidCommand(id, path, summary, description string, command func(int64, func(error))) {
	timeout := s.options.CommandTimeout
	huma.Register(s.api, huma.Operation{
		OperationID:   id,
		Method:        http.MethodPost,
		Path:          path,
		Summary:       summary,
		Description:   description,
		Tags:          []string{"cameras"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404, 409, 500, 502, 504},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.CameraIDInput) (*struct{}, error) {
		err := awaitErr(ctx, timeout, func(done func(error)) {
			command(input.CameraID, done)
		})
		if err != nil {
			return nil, mapCameraError(err)
		}
		return nil, nil
	})
}

func (s *Server) registerPathCommand(id, path, summary, description string, command func(int64, func(string, error))) {
	timeout := s.options.CommandTimeout
	huma.Register(s.api, huma.Operation{
		OperationID: id,
		Method:      http.MethodPost,
		Path:        path,
		Summary:     summary,
		Description: description,
		Tags:        []string{"cameras"},
		Errors:      []int{401, 404, 409, 500, 502, 504},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CameraIDInput) (*models.PathResponse, error) {
		p, err := await(ctx, timeout, func(done func(string, error)) {
			command(input.CameraID, done)
		})
		if err != nil {
			return nil, mapCameraError(err)
		}
		return &models.PathResponse{Body: models.PathData{Path: p}}, nil
	})
}

// sessionToAPI converts a session snapshot to its API model.
func sessionToAPI(info camera.SessionInfo) models.CameraData {
	data := models.CameraData{
		CameraID:      info.ID,
		Device:        info.Device,
		DeviceID:      info.DeviceID,
		State:         string(info.State),
		Width:         info.Size.Width,
		Height:        info.Size.Height,
		Recording:     info.Recording,
		RecordingPath: info.RecordingPath,
		Streaming:     info.Streaming,
		Settings: models.MediaSettingsData{
			Resolution:   info.Settings.Resolution,
			FPS:          info.Settings.FPS,
			VideoBitrate: info.Settings.VideoBitrate,
		},
		Pending:   info.Pending,
		CreatedAt: info.CreatedAt,
	}
	if stats := metrics.GetStreamStats(info.ID); stats != nil {
		data.Stream = &models.StreamStatsData{
			FramesDelivered: stats.Delivered,
			FramesDropped:   stats.Dropped,
		}
		if !stats.LastFrame.IsZero() {
			last := stats.LastFrame
			data.Stream.LastFrame = &last
		}
	}
	return data
}
