package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type testOptions struct {
	Config string

	Port         int      `toml:"server.port" env:"PORT"`
	AuthEnabled  bool     `toml:"auth.enabled" env:"AUTH_ENABLED"`
	PicturesDir  string   `toml:"capture.pictures_dir" env:"PICTURES_DIR"`
	FrameQuality float64  `toml:"stream.quality" env:"STREAM_QUALITY"`
	Devices      []string `toml:"devices.allow" env:"DEVICES_ALLOW"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camerahost.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9090

[auth]
enabled = true

[capture]
pictures_dir = "/srv/pictures"

[stream]
quality = 5

[devices]
allow = ["usb-cam", "testsrc"]
`)

	opts := &testOptions{Config: path, Port: 8090}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Port != 9090 {
		t.Errorf("Port = %d, want 9090", opts.Port)
	}
	if !opts.AuthEnabled {
		t.Error("AuthEnabled = false, want true")
	}
	if opts.PicturesDir != "/srv/pictures" {
		t.Errorf("PicturesDir = %q, want /srv/pictures", opts.PicturesDir)
	}
	if opts.FrameQuality != 5 {
		t.Errorf("FrameQuality = %v, want 5", opts.FrameQuality)
	}
	if want := []string{"usb-cam", "testsrc"}; !reflect.DeepEqual(opts.Devices, want) {
		t.Errorf("Devices = %v, want %v", opts.Devices, want)
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	path := writeConfig(t, "[server]\nport = 9090\n")
	t.Setenv("CAMERAHOST_PORT", "7000")
	t.Setenv("CAMERAHOST_DEVICES_ALLOW", "a, b ,c")
	t.Setenv("CAMERAHOST_STREAM_QUALITY", "3.5")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Port != 7000 {
		t.Errorf("Port = %d, want 7000", opts.Port)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(opts.Devices, want) {
		t.Errorf("Devices = %v, want %v", opts.Devices, want)
	}
	if opts.FrameQuality != 3.5 {
		t.Errorf("FrameQuality = %v, want 3.5", opts.FrameQuality)
	}
}

func TestLoadConfigIgnoresUnprefixedEnv(t *testing.T) {
	t.Setenv("PORT", "1234")

	opts := &testOptions{Port: 8090}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.Port != 8090 {
		t.Errorf("Port = %d, want default 8090", opts.Port)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Port: 8090}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("missing config file should not fail: %v", err)
	}
	if opts.Port != 8090 {
		t.Errorf("Port = %d, want 8090", opts.Port)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeConfig(t, "[server\nport = ")
	if err := LoadConfig(&testOptions{Config: path}, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"Port", "port"},
		{"LoggingLevel", "logging-level"},
		{"PicturesDir", "pictures-dir"},
	}
	for _, tt := range tests {
		if got := fieldNameToFlag(tt.field); got != tt.want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", tt.field, got, tt.want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"server": map[string]any{"port": int64(8090)},
		"flat":   "x",
	}

	tests := []struct {
		path string
		want any
	}{
		{"server.port", int64(8090)},
		{"flat", "x"},
		{"server.missing", nil},
		{"flat.deeper", nil},
		{"absent.key", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSetFieldValueFromStringRejectsBadNumbers(t *testing.T) {
	opts := testOptions{Port: 8090}
	setFieldValueFromString(reflect.ValueOf(&opts).Elem().FieldByName("Port"), "not-a-number")
	if opts.Port != 8090 {
		t.Errorf("Port = %d, want unchanged 8090", opts.Port)
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantLevel   string
		wantFormat  string
		wantModules map[string]string
	}{
		{
			name:        "defaults without logging table",
			content:     "[server]\nport = 1\n",
			wantLevel:   "info",
			wantFormat:  "text",
			wantModules: map[string]string{},
		},
		{
			name: "nested modules table",
			content: `
[logging]
level = "warn"
format = "json"

[logging.modules]
camera = "debug"
api = "error"
`,
			wantLevel:   "warn",
			wantFormat:  "json",
			wantModules: map[string]string{"camera": "debug", "api": "error"},
		},
		{
			name: "flat module keys",
			content: `
[logging]
level = "debug"
capture = "warn"
`,
			wantLevel:   "debug",
			wantFormat:  "text",
			wantModules: map[string]string{"capture": "warn"},
		},
		{
			name:        "invalid toml falls back to defaults",
			content:     "[logging\nlevel=",
			wantLevel:   "info",
			wantFormat:  "text",
			wantModules: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadLoggingConfig(writeConfig(t, tt.content))
			if cfg.Level != tt.wantLevel {
				t.Errorf("Level = %q, want %q", cfg.Level, tt.wantLevel)
			}
			if cfg.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", cfg.Format, tt.wantFormat)
			}
			if !reflect.DeepEqual(cfg.Modules, tt.wantModules) {
				t.Errorf("Modules = %v, want %v", cfg.Modules, tt.wantModules)
			}
		})
	}
}

func TestLoadLoggingConfigEmptyPath(t *testing.T) {
	cfg := LoadLoggingConfig("")
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("got %+v, want defaults", cfg)
	}
}
