package ffmpeg

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []OptionType
		wantErr bool
	}{
		{"empty uses defaults", nil, []OptionType{OptionThreadQueue1024}, false},
		{"valid set", []string{"low_latency", " ignore_err "}, []OptionType{OptionLowLatency, OptionIgnoreErrors}, false},
		{"unknown", []string{"turbo"}, nil, true},
		{"exclusive group", []string{"thread_queue_1024", "thread_queue_4096"}, nil, true},
		{"conflict", []string{"genpts", "wallclock_ts"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOptions(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseOptions(%v) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOptions(%v) error: %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseOptions(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateOptionsAllowsRepeat(t *testing.T) {
	if err := ValidateOptions([]OptionType{OptionThreadQueue1024, OptionThreadQueue1024}); err != nil {
		t.Errorf("repeating one option should be allowed: %v", err)
	}
}

func TestApplyInputOptions(t *testing.T) {
	tests := []struct {
		name    string
		options []OptionType
		want    string
	}{
		{"none", nil, ""},
		{"thread queue", []OptionType{OptionThreadQueue4096}, " -thread_queue_size 4096"},
		{"fflags merged", []OptionType{OptionGeneratePTS, OptionIgnoreDTS}, " -fflags +genpts+igndts"},
		{"low latency", []OptionType{OptionLowLatency}, " -flags +low_delay -fflags +nobuffer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd strings.Builder
			applyInputOptions(tt.options, &cmd)
			if cmd.String() != tt.want {
				t.Errorf("got %q, want %q", cmd.String(), tt.want)
			}
		})
	}
}
