package playback

import (
	"errors"
	"testing"
)

func TestParseByteRange(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		size      int64
		wantStart int64
		wantEnd   int64
		wantNil   bool
		wantErr   error
	}{
		{"no header", "", 1000, 0, 0, true, nil},
		{"whole file", "bytes=0-999", 1000, 0, 999, false, nil},
		{"open end", "bytes=500-", 1000, 500, 999, false, nil},
		{"suffix", "bytes=-200", 1000, 800, 999, false, nil},
		{"one byte", "bytes=0-0", 1000, 0, 0, false, nil},
		{"end clamped", "bytes=10-5000", 1000, 10, 999, false, nil},
		{"suffix longer than file", "bytes=-5000", 300, 0, 299, false, nil},
		{"first span of many", "bytes=0-9, 20-29", 1000, 0, 9, false, nil},

		{"start at size", "bytes=1000-", 1000, 0, 0, false, ErrUnsatisfiable},
		{"start after end", "bytes=50-10", 1000, 0, 0, false, ErrUnsatisfiable},
		{"empty file", "bytes=0-", 0, 0, 0, false, ErrUnsatisfiable},
		{"wrong unit", "items=0-1", 1000, 0, 0, false, ErrInvalidRange},
		{"no dash", "bytes=12", 1000, 0, 0, false, ErrInvalidRange},
		{"bad start", "bytes=x-1", 1000, 0, 0, false, ErrInvalidRange},
		{"bad end", "bytes=0-y", 1000, 0, 0, false, ErrInvalidRange},
		{"zero suffix", "bytes=-0", 1000, 0, 0, false, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteRange(tt.header, tt.size)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("got %+v, want nil", got)
				}
				return
			}
			if got == nil || got.Start != tt.wantStart || got.End != tt.wantEnd {
				t.Fatalf("got %+v, want %d-%d", got, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestByteRange_Header(t *testing.T) {
	br := ByteRange{Start: 100, End: 199}
	if br.Length() != 100 {
		t.Errorf("Length() = %d", br.Length())
	}
	if got := br.Header(1000); got != "bytes 100-199/1000" {
		t.Errorf("Header() = %q", got)
	}
}
