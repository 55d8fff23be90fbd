package reminder

import (
	"errors"
	"testing"
)

func TestParseTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr error
	}{
		{in: "8时30分", hour: 8, minute: 30},
		{in: "08:30", hour: 8, minute: 30},
		{in: "0830", hour: 8, minute: 30},
		{in: "8:30", hour: 8, minute: 30},
		{in: "12时0分", hour: 12, minute: 0},
		{in: "0时0分", hour: 0, minute: 0},
		{in: "23:59", hour: 23, minute: 59},
		{in: "8时30分提醒", hour: 8, minute: 30},
		{in: "8:305", hour: 8, minute: 30},
		{in: " 0700 ", hour: 7, minute: 0},
		{in: "24时00分", wantErr: ErrInvalidTimeRange},
		{in: "8时60分", wantErr: ErrInvalidTimeRange},
		{in: "25:00", wantErr: ErrInvalidTimeRange},
		{in: "2460", wantErr: ErrInvalidTimeRange},
		{in: "99999999999999999999时1分", wantErr: ErrInvalidTimeRange},
		{in: "830", wantErr: ErrInvalidTimeFormat},
		{in: "08300", wantErr: ErrInvalidTimeFormat},
		{in: "123:45", wantErr: ErrInvalidTimeFormat},
		{in: "eight", wantErr: ErrInvalidTimeFormat},
		{in: "", wantErr: ErrInvalidTimeFormat},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			h, m, err := ParseTime(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseTime(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTime(%q) error = %v", tt.in, err)
			}
			if h != tt.hour || m != tt.minute {
				t.Fatalf("ParseTime(%q) = (%d, %d), want (%d, %d)", tt.in, h, m, tt.hour, tt.minute)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	t.Parallel()
	if got := FormatTime(8, 5); got != "8时5分" {
		t.Fatalf("FormatTime() = %q, want %q", got, "8时5分")
	}
}
