package devices

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/smazurov/camerahost/internal/logging"
)

const (
	defaultSysfsDir = "/sys/class/video4linux"
	defaultDevDir   = "/dev"
)

var (
	// ErrDeviceNotFound is returned by Resolve for IDs that map to no device node.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrInvalidDeviceID is returned by Resolve for IDs that can never name a
	// video device, such as arbitrary paths.
	ErrInvalidDeviceID = errors.New("invalid device id")
)

// Directory enumerates capture devices.
type Directory struct {
	sysfsDir    string
	devDir      string
	testPattern bool
	logger      logging.Logger
}

// Option configures a Directory.
type Option func(*Directory)

// WithTestPattern adds the synthetic test-pattern device to every listing.
func WithTestPattern(enabled bool) Option {
	return func(d *Directory) {
		d.testPattern = enabled
	}
}

// WithRoots overrides the sysfs class directory and the /dev directory.
func WithRoots(sysfsDir, devDir string) Option {
	return func(d *Directory) {
		d.sysfsDir = sysfsDir
		d.devDir = devDir
	}
}

// NewDirectory creates a Directory reading the live system.
func NewDirectory(opts ...Option) *Directory {
	d := &Directory{
		sysfsDir: defaultSysfsDir,
		devDir:   defaultDevDir,
		logger:   logging.GetLogger("devices"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ListDevices returns every capture device currently present, in the order
// the kernel lists them, followed by the test pattern when enabled. A system
// without video4linux yields an empty list.
func (d *Directory) ListDevices(ctx context.Context) ([]DeviceRecord, error) {
	entries, err := os.ReadDir(d.sysfsDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", d.sysfsDir, err)
	}

	byID := d.readLinks("by-id")
	byPath := d.readLinks("by-path")

	records := make([]DeviceRecord, 0, len(entries)+1)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := entry.Name()
		if !strings.HasPrefix(node, "video") {
			continue
		}

		// Secondary nodes of a device carry metadata rather than frames.
		if index := readSysfsInt(filepath.Join(d.sysfsDir, node, "index")); index != 0 {
			continue
		}

		name := readSysfsString(filepath.Join(d.sysfsDir, node, "name"))
		if name == "" {
			name = node
		}
		// ':' separates name and id in unique names.
		name = strings.ReplaceAll(name, ":", " ")

		devPath := filepath.Join(d.devDir, node)
		id := devPath
		switch {
		case byID[node] != "":
			id = byID[node]
		case byPath[node] != "":
			id = byPath[node]
		}

		records = append(records, DeviceRecord{ID: id, DisplayName: name, Path: devPath})
	}

	if d.testPattern {
		records = append(records, DeviceRecord{ID: TestPatternID, DisplayName: TestPatternName})
	}

	d.logger.Debug("Enumerated capture devices", "count", len(records))
	return records, nil
}

// Resolve maps a device ID back to a frame source. IDs are the by-id or
// by-path link names under /dev/v4l, or a /dev/videoN node for devices
// without stable links. Anything else is ErrInvalidDeviceID.
func (d *Directory) Resolve(id string) (Source, error) {
	if id == TestPatternID {
		if !d.testPattern {
			return Source{}, fmt.Errorf("%w: test pattern disabled", ErrDeviceNotFound)
		}
		return Source{ID: id, TestPattern: true}, nil
	}

	if filepath.IsAbs(id) {
		node := filepath.Clean(id)
		if filepath.Dir(node) != filepath.Clean(d.devDir) || !isVideoNode(filepath.Base(node)) {
			return Source{}, fmt.Errorf("%w: %s is not a video node", ErrInvalidDeviceID, id)
		}
		if _, err := os.Stat(node); err != nil {
			return Source{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
		}
		return Source{ID: id, Path: node}, nil
	}

	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return Source{}, fmt.Errorf("%w: %q", ErrInvalidDeviceID, id)
	}
	for _, kind := range []string{"by-id", "by-path"} {
		link := filepath.Join(d.devDir, "v4l", kind, id)
		info, err := os.Lstat(link)
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return Source{}, fmt.Errorf("%w: %s is not a device link", ErrInvalidDeviceID, link)
		}
		target, err := filepath.EvalSymlinks(link)
		if err != nil {
			return Source{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
		}
		if !isVideoNode(filepath.Base(target)) {
			return Source{}, fmt.Errorf("%w: %s points at %s", ErrInvalidDeviceID, link, target)
		}
		return Source{ID: id, Path: link}, nil
	}
	return Source{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}

// isVideoNode reports whether name looks like a video4linux node (video0, video12).
func isVideoNode(name string) bool {
	digits, ok := strings.CutPrefix(name, "video")
	if !ok || digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// readLinks maps node names (video0) to the first symlink name in
// /dev/v4l/<kind> that points at them and ends in -video-index0.
// by-path names lack the suffix on some udev versions, so for those any
// link is accepted.
func (d *Directory) readLinks(kind string) map[string]string {
	dir := filepath.Join(d.devDir, "v4l", kind)
	links := make(map[string]string)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return links
	}
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		node := filepath.Base(target)
		if _, seen := links[node]; seen {
			continue
		}
		if kind == "by-id" && !strings.HasSuffix(entry.Name(), "-video-index0") {
			continue
		}
		links[node] = entry.Name()
	}
	return links
}

func readSysfsString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readSysfsInt(path string) int {
	val, err := strconv.Atoi(readSysfsString(path))
	if err != nil {
		return 0
	}
	return val
}
