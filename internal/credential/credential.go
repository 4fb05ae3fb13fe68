// Package credential builds and parses the opaque bearer string embedded in
// a participant's QR code. The string is not signed or encrypted; possession
// is the only check the scanning flow performs, and the stored copy is the
// comparison key.
package credential

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// TypeParticipantQR is the fixed discriminator for the current credential
// format. Decoders must reject payloads carrying any other value so future
// formats can be told apart from legacy ones.
const TypeParticipantQR = "participant_qr"

var ErrMalformed = errors.New("malformed credential")

type Payload struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

// Encode serializes a credential payload for participantID issued at
// issuedAt. Deterministic for identical inputs.
func Encode(participantID string, issuedAt time.Time) string {
	p := Payload{
		ID:        participantID,
		Timestamp: issuedAt.UTC().Truncate(time.Second),
		Type:      TypeParticipantQR,
	}
	raw, _ := json.Marshal(p)
	return base64.URLEncoding.EncodeToString(raw)
}

// Decode is the inverse of Encode. It returns ErrMalformed for anything
// that is not a well-formed credential; callers must additionally reject
// payloads with an unrecognized Type.
func Decode(s string) (Payload, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return Payload{}, ErrMalformed
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, ErrMalformed
	}
	if p.ID == "" || p.Type == "" {
		return Payload{}, ErrMalformed
	}
	return p, nil
}
