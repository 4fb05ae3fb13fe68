package credential

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	issued := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	enc := Encode("3f1c2a9e-8b2d-4f77-9f64-1f0a2d3c4b5a", issued)

	p, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if p.ID != "3f1c2a9e-8b2d-4f77-9f64-1f0a2d3c4b5a" {
		t.Fatalf("unexpected id: %s", p.ID)
	}
	if !p.Timestamp.Equal(issued) {
		t.Fatalf("expected timestamp %v, got %v", issued, p.Timestamp)
	}
	if p.Type != TypeParticipantQR {
		t.Fatalf("expected type %q, got %q", TypeParticipantQR, p.Type)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	issued := time.Now()
	a := Encode("p1", issued)
	b := Encode("p1", issued)
	if a != b {
		t.Fatal("Encode is not deterministic for identical inputs")
	}
}

func TestEncodeTruncatesSubSecond(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := Encode("p1", base)
	b := Encode("p1", base.Add(500*time.Millisecond))
	if a != b {
		t.Fatal("expected sub-second precision to be dropped")
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"not base64", "!!not-base64!!"},
		{"base64 but not json", base64.URLEncoding.EncodeToString([]byte("garbage"))},
		{"json missing id", base64.URLEncoding.EncodeToString([]byte(`{"type":"participant_qr"}`))},
		{"json missing type", base64.URLEncoding.EncodeToString([]byte(`{"id":"p1"}`))},
		{"truncated credential", Encode("p1", time.Now())[:10]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.in); err != ErrMalformed {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestDecodeForeignTypePassesThrough(t *testing.T) {
	// An unknown type is structurally valid; rejecting it is the caller's
	// responsibility.
	raw := base64.URLEncoding.EncodeToString([]byte(`{"id":"p1","timestamp":"2025-01-01T00:00:00Z","type":"staff_badge"}`))
	p, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if p.Type != "staff_badge" {
		t.Fatalf("unexpected type: %s", p.Type)
	}
}
