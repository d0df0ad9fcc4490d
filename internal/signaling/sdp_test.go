package signaling

import (
	"strings"
	"testing"

	"github.com/pion/sdp/v3"
)

func TestBuildSDPOffer(t *testing.T) {
	body, err := buildSDP("1001", "192.0.2.10", 4000, false)
	if err != nil {
		t.Fatalf("buildSDP: %v", err)
	}

	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal(body); err != nil {
		t.Fatalf("offer does not parse back: %v", err)
	}
	if len(parsed.MediaDescriptions) != 1 {
		t.Fatalf("media sections = %d, want 1", len(parsed.MediaDescriptions))
	}

	audio := parsed.MediaDescriptions[0]
	if audio.MediaName.Media != "audio" || audio.MediaName.Port.Value != 4000 {
		t.Errorf("media = %s:%d, want audio:4000", audio.MediaName.Media, audio.MediaName.Port.Value)
	}
	wantFormats := []string{"0", "8", "101"}
	if len(audio.MediaName.Formats) != len(wantFormats) {
		t.Fatalf("formats = %v, want %v", audio.MediaName.Formats, wantFormats)
	}
	for i, f := range wantFormats {
		if audio.MediaName.Formats[i] != f {
			t.Errorf("format %d = %s, want %s", i, audio.MediaName.Formats[i], f)
		}
	}
	if !strings.Contains(string(body), "a=sendrecv") {
		t.Error("offer missing sendrecv direction")
	}
}

func TestBuildSDPHoldDirection(t *testing.T) {
	body, err := buildSDP("1001", "192.0.2.10", 4000, true)
	if err != nil {
		t.Fatalf("buildSDP: %v", err)
	}
	if !strings.Contains(string(body), "a=sendonly") {
		t.Error("hold offer missing sendonly direction")
	}
	if strings.Contains(string(body), "a=sendrecv") {
		t.Error("hold offer still sendrecv")
	}
}

func TestSplitServer(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		wantPort int
	}{
		{"pbx.example.com", "pbx.example.com", 5060},
		{"pbx.example.com:5080", "pbx.example.com", 5080},
		{"10.0.0.1:5061", "10.0.0.1", 5061},
		{"10.0.0.1", "10.0.0.1", 5060},
	}

	for _, tt := range tests {
		host, port := splitServer(tt.in)
		if host != tt.wantHost || port != tt.wantPort {
			t.Errorf("splitServer(%q) = (%q, %d), want (%q, %d)",
				tt.in, host, port, tt.wantHost, tt.wantPort)
		}
	}
}

func TestNewTagLengthAndUniqueness(t *testing.T) {
	a, b := newTag(), newTag()
	if len(a) != 16 || len(b) != 16 {
		t.Errorf("tag lengths = %d, %d, want 16", len(a), len(b))
	}
	if a == b {
		t.Error("two tags collided")
	}
}
