package media

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0xff, 0x10}

	att, err := Encode(raw, "image/png", KindImage)
	require.NoError(t, err)
	assert.Equal(t, "image", att.Kind)
	assert.Equal(t, "image/png", att.MimeType)
	assert.Equal(t, int64(len(raw)), att.Size)

	got, err := Decode(att)
	require.NoError(t, err)
	require.True(t, bytes.Equal(raw, got))
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	raw := make([]byte, 6<<20)

	_, err := Encode(raw, "image/jpeg", KindImage)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestEncodeAcceptsPayloadAtLimit(t *testing.T) {
	raw := make([]byte, MaxPayloadBytes)

	_, err := Encode(raw, "audio/ogg", KindAudio)
	require.NoError(t, err)
}

func TestEncodeRejectsDisallowedMimeType(t *testing.T) {
	cases := []struct {
		name string
		mime string
		kind Kind
	}{
		{"svg is not a raster image", "image/svg+xml", KindImage},
		{"audio mime under image kind", "audio/mpeg", KindImage},
		{"image mime under audio kind", "image/png", KindAudio},
		{"video is never allowed", "video/mp4", KindAudio},
		{"unknown kind", "image/png", Kind("video")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode([]byte("payload"), tc.mime, tc.kind)
			require.ErrorIs(t, err, ErrUnsupportedMediaType)
		})
	}
}

func TestDecodeRejectsCorruptData(t *testing.T) {
	att, err := Encode([]byte("hello"), "audio/mpeg", KindAudio)
	require.NoError(t, err)

	att.Data = "not base64!!"
	_, err = Decode(att)
	require.Error(t, err)
}
