package backend

import "testing"

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantStart int64
		wantEnd   int64
		wantTotal int64
		wantErr   error
	}{
		{"full", "bytes 0-999/1000", 0, 999, 1000, nil},
		{"resume", "bytes 500-999/1000", 500, 999, 1000, nil},
		{"unknown total", "bytes 10-19/*", 10, 19, -1, nil},
		{"single byte", "bytes 0-0/1", 0, 0, 1, nil},

		{"empty", "", 0, 0, 0, ErrInvalidContentRange},
		{"wrong unit", "chars 0-1/2", 0, 0, 0, ErrInvalidContentRange},
		{"missing total", "bytes 0-1", 0, 0, 0, ErrInvalidContentRange},
		{"unsatisfied form", "bytes */1000", 0, 0, 0, ErrInvalidContentRange},
		{"end before start", "bytes 10-5/100", 0, 0, 0, ErrInvalidContentRange},
		{"end past total", "bytes 0-100/100", 0, 0, 0, ErrInvalidContentRange},
		{"bad total", "bytes 0-1/abc", 0, 0, 0, ErrInvalidContentRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseContentRange(tt.header)

			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("ParseContentRange() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseContentRange() unexpected error: %v", err)
			}
			if got.Start != tt.wantStart || got.End != tt.wantEnd || got.Total != tt.wantTotal {
				t.Errorf("ParseContentRange() = %+v, want %d-%d/%d", got, tt.wantStart, tt.wantEnd, tt.wantTotal)
			}
		})
	}
}

func TestContentRange_ContentLength(t *testing.T) {
	r := ContentRange{Start: 500, End: 999, Total: 1000}
	if r.ContentLength() != 500 {
		t.Errorf("ContentLength() = %d, want 500", r.ContentLength())
	}
}

func TestRangeFrom(t *testing.T) {
	if got := RangeFrom(1024); got != "bytes=1024-" {
		t.Errorf("RangeFrom() = %q", got)
	}
}
