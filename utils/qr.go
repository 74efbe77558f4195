package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// TicketRef is everything a scanner needs to resolve a ticket: no secondary
// lookup is required to identify the member, meetup and user.
type TicketRef struct {
	MemberID string
	MeetupID string
	UserID   string
}

// TicketCodec produces and parses opaque QR ticket payloads. Pluggable so the
// encoding scheme can change without touching membership logic.
type TicketCodec interface {
	Encode(memberID, meetupID, userID string) (string, error)
	Decode(payload string) (TicketRef, error)
}

var ErrBadTicketPayload = errors.New("ticket payload: malformed or tampered")

// SealedCodec seals the reference triple with nacl/secretbox so the payload
// is opaque to holders while remaining self-contained at scan time. The
// random nonce keeps every payload unique even for identical triples.
type SealedCodec struct {
	key [32]byte
}

// NewSealedCodec derives the sealing key from the configured secret.
func NewSealedCodec(secret string) (*SealedCodec, error) {
	if secret == "" {
		return nil, errors.New("qr seal key is required")
	}
	return &SealedCodec{key: sha256.Sum256([]byte(secret))}, nil
}

func (c *SealedCodec) Encode(memberID, meetupID, userID string) (string, error) {
	if memberID == "" || meetupID == "" || userID == "" {
		return "", errors.New("ticket ref requires member, meetup and user ids")
	}
	if strings.ContainsAny(memberID+meetupID+userID, "|") {
		return "", errors.New("ticket ref ids must not contain '|'")
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("qr nonce: %w", err)
	}

	plain := []byte(memberID + "|" + meetupID + "|" + userID)
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &c.key)

	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *SealedCodec) Decode(payload string) (TicketRef, error) {
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil || len(raw) < 25 {
		return TicketRef{}, ErrBadTicketPayload
	}

	var nonce [24]byte
	copy(nonce[:], raw[:24])

	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &c.key)
	if !ok {
		return TicketRef{}, ErrBadTicketPayload
	}

	parts := strings.Split(string(plain), "|")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return TicketRef{}, ErrBadTicketPayload
	}

	return TicketRef{MemberID: parts[0], MeetupID: parts[1], UserID: parts[2]}, nil
}
