package devices

import (
	"errors"
	"fmt"
	"strings"
)

// TestPatternID is the ID of the synthetic test-pattern device.
const TestPatternID = "testsrc"

// TestPatternName is the display name of the synthetic test-pattern device.
const TestPatternName = "Test Pattern"

// ErrInvalidDescriptor is returned by ParseDescriptor for malformed unique names.
var ErrInvalidDescriptor = errors.New("invalid device descriptor")

// DeviceRecord describes one capture device as seen during a single enumeration.
type DeviceRecord struct {
	ID          string
	DisplayName string
	Path        string
}

// UniqueName returns "<display name>:<id>", the form clients use to pick a device.
func (r DeviceRecord) UniqueName() string {
	return r.DisplayName + ":" + r.ID
}

// ParseDescriptor splits a unique name at its first ':' into display name and ID.
// IDs may themselves contain ':' (by-path names do).
func ParseDescriptor(descriptor string) (name, id string, err error) {
	name, id, found := strings.Cut(descriptor, ":")
	if !found {
		return "", "", fmt.Errorf("%w: %q has no ':' separator", ErrInvalidDescriptor, descriptor)
	}
	if name == "" {
		return "", "", fmt.Errorf("%w: %q has an empty display name", ErrInvalidDescriptor, descriptor)
	}
	if id == "" {
		return "", "", fmt.Errorf("%w: %q has an empty device id", ErrInvalidDescriptor, descriptor)
	}
	return name, id, nil
}

// Source tells a capture engine where to read frames from.
type Source struct {
	ID          string
	Path        string
	TestPattern bool
}
