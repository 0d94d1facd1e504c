package devices

import (
	"errors"
	"testing"
)

func TestUniqueName(t *testing.T) {
	r := DeviceRecord{ID: "usb-cam-video-index0", DisplayName: "HD Webcam"}
	if got := r.UniqueName(); got != "HD Webcam:usb-cam-video-index0" {
		t.Errorf("UniqueName() = %q", got)
	}
}

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantID   string
		wantErr  bool
	}{
		{in: "HD Webcam:usb-cam-video-index0", wantName: "HD Webcam", wantID: "usb-cam-video-index0"},
		{in: "Cam:pci-0000:00:14.0-usb-0:2:1.0-video-index0", wantName: "Cam", wantID: "pci-0000:00:14.0-usb-0:2:1.0-video-index0"},
		{in: "Test Pattern:testsrc", wantName: "Test Pattern", wantID: "testsrc"},
		{in: "no-separator", wantErr: true},
		{in: ":id-only", wantErr: true},
		{in: "name-only:", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, id, err := ParseDescriptor(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDescriptor) {
					t.Fatalf("err = %v, want ErrInvalidDescriptor", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if name != tt.wantName || id != tt.wantID {
				t.Errorf("ParseDescriptor(%q) = (%q, %q), want (%q, %q)", tt.in, name, id, tt.wantName, tt.wantID)
			}
		})
	}
}

func TestUniqueNameRoundTrip(t *testing.T) {
	r := DeviceRecord{ID: "pci-0000:00:14.0-video-index0", DisplayName: "Integrated Camera"}
	name, id, err := ParseDescriptor(r.UniqueName())
	if err != nil {
		t.Fatal(err)
	}
	if name != r.DisplayName || id != r.ID {
		t.Errorf("round trip = (%q, %q), want (%q, %q)", name, id, r.DisplayName, r.ID)
	}
}
