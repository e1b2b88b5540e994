package geo

import "testing"

func TestTruncateGeohash(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		precision int
		want      string
	}{
		{
			name:      "truncate to default precision 6",
			input:     "evfwgr8yuv",
			precision: DefaultGeohashPrecision,
			want:      "evfwgr",
		},
		{
			name:      "truncate to precision 4",
			input:     "evfwgr8yuv",
			precision: 4,
			want:      "evfw",
		},
		{
			name:      "input shorter than precision returned as is",
			input:     "evf",
			precision: 6,
			want:      "evf",
		},
		{
			name:      "input equal to precision returned as is",
			input:     "evfwgr",
			precision: 6,
			want:      "evfwgr",
		},
		{
			name:      "empty input returns empty",
			input:     "",
			precision: 6,
			want:      "",
		},
		{
			name:      "invalid character letter a",
			input:     "evawgr",
			precision: 6,
			want:      "",
		},
		{
			name:      "invalid character letter o",
			input:     "evowgr",
			precision: 6,
			want:      "",
		},
		{
			name:      "invalid special character",
			input:     "evf-gr",
			precision: 6,
			want:      "",
		},
		{
			name:      "uppercase normalized to lowercase",
			input:     "EVFWGR8YUV",
			precision: 6,
			want:      "evfwgr",
		},
		{
			name:      "precision 0 returns empty",
			input:     "evfwgr",
			precision: 0,
			want:      "",
		},
		{
			name:      "negative precision returns empty",
			input:     "evfwgr",
			precision: -1,
			want:      "",
		},
		{
			name:      "all valid digits",
			input:     "0123456789",
			precision: 10,
			want:      "0123456789",
		},
		{
			name:      "all valid letters",
			input:     "bcdefghjkmnpqrstuvwxyz",
			precision: 22,
			want:      "bcdefghjkmnpqrstuvwxyz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateGeohash(tt.input, tt.precision)
			if got != tt.want {
				t.Errorf("TruncateGeohash(%q, %d) = %q, want %q", tt.input, tt.precision, got, tt.want)
			}
		})
	}
}

func TestEncodeGeohash(t *testing.T) {
	tests := []struct {
		name      string
		coord     Coordinate
		precision int
		want      string
	}{
		{
			name:      "Casablanca",
			coord:     Coordinate{Lat: 33.5731, Lng: -7.5898},
			precision: 6,
			want:      "evfwgr",
		},
		{
			name:      "Seattle",
			coord:     Coordinate{Lat: 47.6062, Lng: -122.3321},
			precision: 6,
			want:      "c23nb6",
		},
		{
			name:      "London",
			coord:     Coordinate{Lat: 51.5074, Lng: -0.1278},
			precision: 6,
			want:      "gcpvj0",
		},
		{
			name:      "precision 5",
			coord:     Coordinate{Lat: 47.6062, Lng: -122.3321},
			precision: 5,
			want:      "c23nb",
		},
		{
			name:      "zero precision falls back to default",
			coord:     Coordinate{Lat: 47.6062, Lng: -122.3321},
			precision: 0,
			want:      "c23nb6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeGeohash(tt.coord, tt.precision)
			if got != tt.want {
				t.Errorf("EncodeGeohash(%v, %d) = %q, want %q", tt.coord, tt.precision, got, tt.want)
			}
		})
	}
}
