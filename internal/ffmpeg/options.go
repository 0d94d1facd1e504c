package ffmpeg

import (
	"fmt"
	"strings"
)

// OptionType names an input-side ffmpeg tweak that can be enabled from config.
type OptionType string

// Input option keys.
const (
	OptionGeneratePTS        OptionType = "genpts"
	OptionIgnoreDTS          OptionType = "igndts"
	OptionIgnoreErrors       OptionType = "ignore_err"
	OptionWallclockTimestamp OptionType = "wallclock_ts"
	OptionThreadQueue1024    OptionType = "thread_queue_1024"
	OptionThreadQueue4096    OptionType = "thread_queue_4096"
	OptionLowLatency         OptionType = "low_latency"
)

// ExclusiveGroup groups options of which at most one may be selected.
type ExclusiveGroup string

// Exclusive groups.
const (
	GroupThreadQueue ExclusiveGroup = "thread_queue"
)

// Option describes one input option.
type Option struct {
	Key            OptionType
	Description    string
	AppDefault     bool
	ExclusiveGroup ExclusiveGroup
	ConflictsWith  []OptionType
}

// AllOptions lists every supported input option.
var AllOptions = []Option{
	{
		Key:           OptionGeneratePTS,
		Description:   "Generate presentation timestamps",
		ConflictsWith: []OptionType{OptionWallclockTimestamp},
	},
	{
		Key:         OptionIgnoreDTS,
		Description: "Ignore decode timestamps from misbehaving devices",
	},
	{
		Key:         OptionIgnoreErrors,
		Description: "Keep decoding through corrupt frames",
	},
	{
		Key:           OptionWallclockTimestamp,
		Description:   "Stamp frames with the wall clock",
		ConflictsWith: []OptionType{OptionGeneratePTS},
	},
	{
		Key:            OptionThreadQueue1024,
		Description:    "Input thread queue of 1024 packets",
		AppDefault:     true,
		ExclusiveGroup: GroupThreadQueue,
	},
	{
		Key:            OptionThreadQueue4096,
		Description:    "Input thread queue of 4096 packets",
		ExclusiveGroup: GroupThreadQueue,
	},
	{
		Key:         OptionLowLatency,
		Description: "Flush packets as soon as they are read",
	},
}

// GetOptionByKey returns the option with key, or nil.
func GetOptionByKey(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// DefaultOptions returns the options enabled when config selects none.
func DefaultOptions() []OptionType {
	var defaults []OptionType
	for _, option := range AllOptions {
		if option.AppDefault {
			defaults = append(defaults, option.Key)
		}
	}
	return defaults
}

// ParseOptions converts config strings to option keys and validates the set.
// An empty list yields DefaultOptions.
func ParseOptions(names []string) ([]OptionType, error) {
	if len(names) == 0 {
		return DefaultOptions(), nil
	}
	options := make([]OptionType, 0, len(names))
	for _, name := range names {
		key := OptionType(strings.TrimSpace(name))
		if GetOptionByKey(key) == nil {
			return nil, fmt.Errorf("unknown ffmpeg option %q", name)
		}
		options = append(options, key)
	}
	if err := ValidateOptions(options); err != nil {
		return nil, err
	}
	return options, nil
}

// ValidateOptions rejects selections with two options from one exclusive
// group or with conflicting options.
func ValidateOptions(selected []OptionType) error {
	groups := make(map[ExclusiveGroup]OptionType)
	set := make(map[OptionType]bool, len(selected))

	for _, key := range selected {
		set[key] = true
		option := GetOptionByKey(key)
		if option == nil || option.ExclusiveGroup == "" {
			continue
		}
		if prev, ok := groups[option.ExclusiveGroup]; ok && prev != key {
			return fmt.Errorf("options %s and %s are mutually exclusive (%s)", prev, key, option.ExclusiveGroup)
		}
		groups[option.ExclusiveGroup] = key
	}

	for _, key := range selected {
		option := GetOptionByKey(key)
		if option == nil {
			continue
		}
		for _, conflict := range option.ConflictsWith {
			if set[conflict] {
				return fmt.Errorf("option %s conflicts with %s", key, conflict)
			}
		}
	}
	return nil
}

// applyInputOptions writes input-side flags for options into cmd.
func applyInputOptions(options []OptionType, cmd *strings.Builder) {
	var fflags []string

	for _, option := range options {
		switch option {
		case OptionGeneratePTS:
			fflags = append(fflags, "+genpts")
		case OptionIgnoreDTS:
			fflags = append(fflags, "+igndts")
		case OptionIgnoreErrors:
			cmd.WriteString(" -err_detect ignore_err")
		case OptionWallclockTimestamp:
			cmd.WriteString(" -use_wallclock_as_timestamps 1")
		case OptionThreadQueue1024:
			cmd.WriteString(" -thread_queue_size 1024")
		case OptionThreadQueue4096:
			cmd.WriteString(" -thread_queue_size 4096")
		case OptionLowLatency:
			fflags = append(fflags, "+nobuffer")
			cmd.WriteString(" -flags +low_delay")
		}
	}

	if len(fflags) > 0 {
		cmd.WriteString(" -fflags " + strings.Join(fflags, ""))
	}
}
