package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealedCodecRoundTrip(t *testing.T) {
	codec, err := NewSealedCodec("test-seal-key")
	require.NoError(t, err)

	payload, err := codec.Encode("member-1", "meetup-1", "user-1")
	require.NoError(t, err)
	assert.NotContains(t, payload, "member-1")

	ref, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, TicketRef{MemberID: "member-1", MeetupID: "meetup-1", UserID: "user-1"}, ref)
}

func TestSealedCodecPayloadsAreUnique(t *testing.T) {
	codec, err := NewSealedCodec("test-seal-key")
	require.NoError(t, err)

	a, err := codec.Encode("m", "g", "u")
	require.NoError(t, err)
	b, err := codec.Encode("m", "g", "u")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealedCodecRejectsTamperedPayload(t *testing.T) {
	codec, err := NewSealedCodec("test-seal-key")
	require.NoError(t, err)

	payload, err := codec.Encode("member-1", "meetup-1", "user-1")
	require.NoError(t, err)

	tampered := []byte(payload)
	tampered[len(tampered)-1] ^= 1
	_, err = codec.Decode(string(tampered))
	assert.ErrorIs(t, err, ErrBadTicketPayload)

	_, err = codec.Decode("!!not base64!!")
	assert.ErrorIs(t, err, ErrBadTicketPayload)

	_, err = codec.Decode("")
	assert.ErrorIs(t, err, ErrBadTicketPayload)
}

func TestSealedCodecRejectsForeignKey(t *testing.T) {
	codec, err := NewSealedCodec("key-one")
	require.NoError(t, err)
	other, err := NewSealedCodec("key-two")
	require.NoError(t, err)

	payload, err := codec.Encode("member-1", "meetup-1", "user-1")
	require.NoError(t, err)

	_, err = other.Decode(payload)
	assert.ErrorIs(t, err, ErrBadTicketPayload)
}

func TestSealedCodecValidation(t *testing.T) {
	_, err := NewSealedCodec("")
	assert.Error(t, err)

	codec, err := NewSealedCodec("test-seal-key")
	require.NoError(t, err)

	_, err = codec.Encode("", "meetup-1", "user-1")
	assert.Error(t, err)

	_, err = codec.Encode("mem|ber", "meetup-1", "user-1")
	assert.Error(t, err)
}
