package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

const (
	pictureExtension = "jpeg"
	videoExtension   = "mp4"
)

// OutputPaths names the files pictures and recordings are written to.
type OutputPaths struct {
	PicturesDir string
	VideosDir   string
	now         func() time.Time
}

// NewOutputPaths returns OutputPaths rooted at the given directories. Empty
// directories fall back to the user's XDG Pictures and Videos directories.
func NewOutputPaths(picturesDir, videosDir string) *OutputPaths {
	if picturesDir == "" {
		picturesDir = xdg.UserDirs.Pictures
	}
	if videosDir == "" {
		videosDir = xdg.UserDirs.Videos
	}
	return &OutputPaths{
		PicturesDir: picturesDir,
		VideosDir:   videosDir,
		now:         time.Now,
	}
}

// PicturePath returns a fresh PhotoCapture_*.jpeg path, creating the
// pictures directory if needed.
func (p *OutputPaths) PicturePath() (string, error) {
	return p.build(p.PicturesDir, "PhotoCapture_", pictureExtension)
}

// VideoPath returns a fresh VideoCapture_*.mp4 path, creating the videos
// directory if needed.
func (p *OutputPaths) VideoPath() (string, error) {
	return p.build(p.VideosDir, "VideoCapture_", videoExtension)
}

func (p *OutputPaths) build(dir, prefix, ext string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("no output directory for %s files", ext)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return filepath.Join(dir, prefix+timestamp(p.now())+"."+ext), nil
}

// timestamp formats t as YYYY_MMDD_HHMMSS_mmm in local time. The millisecond
// suffix keeps names unique for captures within the same second.
func timestamp(t time.Time) string {
	t = t.Local()
	return fmt.Sprintf("%s_%03d", t.Format("2006_0102_150405"), t.Nanosecond()/int(time.Millisecond))
}
