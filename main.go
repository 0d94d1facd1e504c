package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/camerahost/cmd"
	"github.com/smazurov/camerahost/internal/api"
	"github.com/smazurov/camerahost/internal/camera"
	"github.com/smazurov/camerahost/internal/capture"
	"github.com/smazurov/camerahost/internal/config"
	"github.com/smazurov/camerahost/internal/devices"
	"github.com/smazurov/camerahost/internal/events"
	"github.com/smazurov/camerahost/internal/ffmpeg"
	"github.com/smazurov/camerahost/internal/logging"
	"github.com/smazurov/camerahost/internal/metrics/exporters"
)

const shutdownTimeout = 10 * time.Second

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port             string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CommandTimeoutMs int    `help:"How long a request waits for a camera command" default:"30000" toml:"api.command_timeout_ms" env:"API_COMMAND_TIMEOUT_MS"`

	// Auth settings
	AuthUsername string `help:"Basic auth username, empty disables auth" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Capture settings
	CapturePicturesDir     string `help:"Directory for pictures, defaults to the XDG Pictures dir" default:"" toml:"capture.pictures_dir" env:"CAPTURE_PICTURES_DIR"`
	CaptureVideosDir       string `help:"Directory for recordings, defaults to the XDG Videos dir" default:"" toml:"capture.videos_dir" env:"CAPTURE_VIDEOS_DIR"`
	CaptureResolution      string `help:"Requested capture resolution, empty keeps the device default" default:"" toml:"capture.resolution" env:"CAPTURE_RESOLUTION"`
	CaptureFramerate       int    `help:"Requested capture framerate, 0 keeps the device default" default:"0" toml:"capture.fps" env:"CAPTURE_FPS"`
	CaptureVideoBitrate    int    `help:"Recording video bitrate in bits per second, 0 keeps the encoder default" default:"0" toml:"capture.video_bitrate" env:"CAPTURE_VIDEO_BITRATE"`
	CaptureInputFormat     string `help:"Device input format (mjpeg, yuyv422)" default:"" toml:"capture.input_format" env:"CAPTURE_INPUT_FORMAT"`
	CaptureStreamFramerate int    `help:"Frames per second sent to the frame sink, 0 sends every frame" default:"15" toml:"capture.stream_fps" env:"CAPTURE_STREAM_FPS"`
	CaptureStreamQuality   int    `help:"JPEG quality scale of streamed frames (2-31, lower is better)" default:"5" toml:"capture.stream_quality" env:"CAPTURE_STREAM_QUALITY"`
	CaptureTimeoutMs       int    `help:"Bound on probing a device and waiting for its first frame" default:"10000" toml:"capture.timeout_ms" env:"CAPTURE_TIMEOUT_MS"`
	CaptureOptions         string `help:"Comma separated ffmpeg input options" default:"" toml:"capture.options" env:"CAPTURE_OPTIONS"`
	CaptureBinary          string `help:"ffmpeg executable" default:"ffmpeg" toml:"capture.ffmpeg_path" env:"CAPTURE_FFMPEG_PATH"`
	CaptureProbeBinary     string `help:"ffprobe executable" default:"ffprobe" toml:"capture.ffprobe_path" env:"CAPTURE_FFPROBE_PATH"`

	// Devices settings
	DevicesTestPattern bool `help:"Offer a synthetic test pattern device" default:"false" toml:"devices.test_pattern" env:"DEVICES_TEST_PATTERN"`

	// Metrics settings
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera  string `help:"Camera controller logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingCapture string `help:"Capture engine logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingDevices string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingFfmpeg  string `help:"ffmpeg process logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	var cli humacli.CLI
	var env cmd.Env

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"camera":  opts.LoggingCamera,
				"capture": opts.LoggingCapture,
				"devices": opts.LoggingDevices,
				"ffmpeg":  opts.LoggingFfmpeg,
				"api":     opts.LoggingAPI,
			},
		})

		logger := logging.GetLogger("main")

		inputOptions, err := ffmpeg.ParseOptions(splitList(opts.CaptureOptions))
		if err != nil {
			logger.Warn("Ignoring invalid capture options", "error", err)
			inputOptions = ffmpeg.DefaultOptions()
		}

		directory := devices.NewDirectory(devices.WithTestPattern(opts.DevicesTestPattern))
		factory := capture.NewFFmpegFactory(capture.Config{
			FFmpegPath:    opts.CaptureBinary,
			FFprobePath:   opts.CaptureProbeBinary,
			InputFormat:   opts.CaptureInputFormat,
			Resolution:    opts.CaptureResolution,
			FPS:           opts.CaptureFramerate,
			VideoBitrate:  opts.CaptureVideoBitrate,
			StreamFPS:     opts.CaptureStreamFramerate,
			StreamQuality: opts.CaptureStreamQuality,
			Options:       inputOptions,
			Timeout:       time.Duration(opts.CaptureTimeoutMs) * time.Millisecond,
		}, directory)
		paths := capture.NewOutputPaths(opts.CapturePicturesDir, opts.CaptureVideosDir)
		commandTimeout := time.Duration(opts.CommandTimeoutMs) * time.Millisecond

		// Subcommands run their own controller from the same parts.
		env = cmd.Env{
			Directory:      directory,
			Factory:        factory,
			Paths:          paths,
			CommandTimeout: commandTimeout,
		}

		eventBus := events.New()
		controller := camera.NewController(directory, factory, paths, camera.WithEventBus(eventBus))

		apiOpts := &api.Options{
			AuthUsername:   opts.AuthUsername,
			AuthPassword:   opts.AuthPassword,
			CommandTimeout: commandTimeout,
			Controller:     controller,
			EventBus:       eventBus,
		}
		if opts.MetricsEnabled {
			apiOpts.MetricsHandler = exporters.HTTPHandler()
		}
		server := api.NewServer(apiOpts)

		var watcher *config.Watcher[logging.Config]

		hooks.OnStart(func() {
			controller.Start()

			if _, statErr := os.Stat(opts.Config); statErr == nil {
				watcher = config.NewConfigWatcher(opts.Config, loadLoggingConfig, logging.GetLogger("config"))
				watcher.OnReload(func(cfg logging.Config) {
					logging.ApplyLevels(cfg)
					logger.Info("Applied logging levels from config", "level", cfg.Level)
				})
				if watchErr := watcher.Start(); watchErr != nil {
					logger.Warn("Config watcher disabled", "error", watchErr)
					watcher = nil
				}
			}

			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Debug("systemd notify failed", "error", notifyErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if stopErr := server.Stop(ctx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Disposes every session, which stops their ffmpeg processes.
			controller.Stop()

			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}
		})
	})

	getEnv := func() cmd.Env { return env }
	cli.Root().AddCommand(cmd.CreateDevicesCmd(getEnv))
	cli.Root().AddCommand(cmd.CreateSnapshotCmd(getEnv))

	cli.Run()
}

func loadLoggingConfig(path string) (logging.Config, error) {
	return config.LoadLoggingConfig(path), nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
