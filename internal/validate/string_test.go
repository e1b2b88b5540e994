package validate

import (
	"errors"
	"regexp"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		constraints StringConstraints
		want        string
		wantErr     error
	}{
		{
			name:        "valid string",
			input:       "hello",
			constraints: StringConstraints{MinLength: 2, MaxLength: 10},
			want:        "hello",
		},
		{
			name:        "trims whitespace",
			input:       "  hello  ",
			constraints: StringConstraints{TrimSpace: true},
			want:        "hello",
		},
		{
			name:        "empty rejected by default",
			input:       "",
			constraints: StringConstraints{},
			wantErr:     ErrEmpty,
		},
		{
			name:        "empty allowed when configured",
			input:       "",
			constraints: StringConstraints{AllowEmpty: true},
			want:        "",
		},
		{
			name:        "too short",
			input:       "a",
			constraints: StringConstraints{MinLength: 2},
			wantErr:     ErrStringTooShort,
		},
		{
			name:        "too long",
			input:       strings.Repeat("a", 11),
			constraints: StringConstraints{MaxLength: 10},
			wantErr:     ErrStringTooLong,
		},
		{
			name:        "length counts runes not bytes",
			input:       "مقهى",
			constraints: StringConstraints{MinLength: 4, MaxLength: 4},
			want:        "مقهى",
		},
		{
			name:        "pattern mismatch",
			input:       "hello!",
			constraints: StringConstraints{AllowedPattern: regexp.MustCompile(`^[a-z]+$`)},
			wantErr:     ErrInvalidCharacters,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(tt.input, tt.constraints)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("String() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("String() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlaceName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain latin", input: "Cafe Hassan", want: "Cafe Hassan"},
		{name: "arabic", input: "مقهى الحسن", want: "مقهى الحسن"},
		{name: "accented", input: "Café de l'Océan", want: "Café de l&#39;Océan"},
		{name: "trims and escapes", input: "  Cafe de l'Ocean  ", want: "Cafe de l&#39;Ocean"},
		{name: "too short", input: "a", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 121), wantErr: true},
		{name: "angle brackets rejected", input: "<script>alert(1)</script>", wantErr: true},
		{name: "empty", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlaceName(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("PlaceName(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("PlaceName(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("PlaceName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
