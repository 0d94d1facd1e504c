package capture

import "testing"

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  bool
	}{
		{"zero", Settings{}, false},
		{"size", Settings{Resolution: "1280x720", FPS: 30}, false},
		{"preset", Settings{Resolution: ResolutionUltraHigh, VideoBitrate: 20_000_000}, false},
		{"max", Settings{Resolution: ResolutionMax}, false},
		{"unknown preset", Settings{Resolution: "cinema"}, true},
		{"zero width", Settings{Resolution: "0x720"}, true},
		{"oversized", Settings{Resolution: "99999x720"}, true},
		{"negative fps", Settings{FPS: -1}, true},
		{"fps too high", Settings{FPS: 1000}, true},
		{"negative bitrate", Settings{VideoBitrate: -5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.settings.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveResolution(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		ResolutionLow:      "320x240",
		ResolutionMedium:   "720x480",
		ResolutionHigh:     "1280x720",
		ResolutionVeryHigh: "1920x1080",
		ResolutionMax:      "",
		" 800X600 ":        "800x600",
	}
	for in, want := range tests {
		got, err := resolveResolution(in)
		if err != nil || got != want {
			t.Errorf("resolveResolution(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}
