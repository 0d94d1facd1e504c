package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/camerahost/internal/camera"
	"github.com/smazurov/camerahost/internal/capture"
	"github.com/smazurov/camerahost/internal/logging"
)

// CreateSnapshotCmd creates the snapshot command.
func CreateSnapshotCmd(env func() Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot [device]",
		Short: "Take one picture",
		Long: `Open a device, start its preview, store one picture and release the device.
The device is a unique name as printed by "camerahost devices"; without one
the first device found is used. The picture path is printed on success.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := env()
			descriptor := ""
			if len(args) == 1 {
				descriptor = args[0]
			} else {
				names, err := camera.NewController(e.Directory, e.Factory, e.Paths).ListDevices(cmd.Context())
				if err != nil {
					return err
				}
				if len(names) == 0 {
					return errors.New("no capture devices found")
				}
				descriptor = names[0]
			}

			resolution, _ := cmd.Flags().GetString("resolution")
			fps, _ := cmd.Flags().GetInt("fps")
			settings := capture.Settings{Resolution: resolution, FPS: fps}

			path, err := takeSnapshot(cmd.Context(), e, descriptor, settings)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().String("resolution", "", "Capture size (WIDTHxHEIGHT or low, medium, high, veryHigh, ultraHigh, max)")
	cmd.Flags().Int("fps", 0, "Capture framerate, 0 uses the configured one")
	return cmd
}

// takeSnapshot runs create, initialize and takePicture on a private
// controller. The session is disposed whatever the outcome.
func takeSnapshot(ctx context.Context, env Env, descriptor string, settings capture.Settings) (string, error) {
	logger := logging.GetLogger("camera")
	controller := camera.NewController(env.Directory, env.Factory, env.Paths)
	controller.Start()
	defer controller.Stop()

	timeout := env.timeout()

	id, err := await(ctx, timeout, func(done func(int64, error)) {
		controller.Create(descriptor, settings, done)
	})
	if err != nil {
		return "", fmt.Errorf("create camera: %w", err)
	}
	defer func() {
		if _, disposeErr := await(ctx, timeout, func(done func(struct{}, error)) {
			controller.Dispose(id, func(err error) { done(struct{}{}, err) })
		}); disposeErr != nil {
			logger.Warn("Failed to dispose camera", "camera_id", id, "error", disposeErr)
		}
	}()

	size, err := await(ctx, timeout, func(done func(capture.Size, error)) {
		controller.Initialize(id, done)
	})
	if err != nil {
		return "", fmt.Errorf("initialize camera: %w", err)
	}
	logger.Debug("Preview started", "camera_id", id, "width", size.Width, "height", size.Height)

	path, err := await(ctx, timeout, func(done func(string, error)) {
		controller.TakePicture(id, done)
	})
	if err != nil {
		return "", fmt.Errorf("take picture: %w", err)
	}
	return path, nil
}
