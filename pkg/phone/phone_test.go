package phone_test

import (
	"testing"

	"github.com/barbersync/barbersync/pkg/phone"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		countryCode string
		want        string
	}{
		{
			name:        "formatted national number",
			raw:         "(11) 91234-5678",
			countryCode: "55",
			want:        "5511912345678",
		},
		{
			name:        "already has country code",
			raw:         "+55 11 91234-5678",
			countryCode: "55",
			want:        "5511912345678",
		},
		{
			name:        "spaces and dots",
			raw:         "11 9.1234.5678",
			countryCode: "55",
			want:        "5511912345678",
		},
		{
			name:        "no country code configured",
			raw:         "(11) 91234-5678",
			countryCode: "",
			want:        "11912345678",
		},
		{
			name:        "empty input",
			raw:         "",
			countryCode: "55",
			want:        "",
		},
		{
			name:        "no digits at all",
			raw:         "call me maybe",
			countryCode: "55",
			want:        "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := phone.Normalize(tt.raw, tt.countryCode)
			if got != tt.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.raw, tt.countryCode, got, tt.want)
			}
		})
	}
}

func TestChatID(t *testing.T) {
	got := phone.ChatID("(11) 91234-5678", "55")
	want := "5511912345678@c.us"
	if got != want {
		t.Errorf("ChatID = %q, want %q", got, want)
	}

	if phone.ChatID("---", "55") != "" {
		t.Error("expected empty chat ID for input without digits")
	}
}
