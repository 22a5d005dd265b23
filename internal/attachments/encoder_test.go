package attachments

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StudioDesk/server/internal/models"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data := []byte("\x89PNG\r\n\x1a\nfake image bytes")

	att, err := Encode("shot.png", "image/png", data)
	require.NoError(t, err)

	assert.Equal(t, "shot.png", att.Name)
	assert.Equal(t, int64(len(data)), att.Size)
	assert.Equal(t, "image/png", att.MimeType)
	assert.True(t, IsDataURI(att.URL))
	assert.True(t, strings.HasPrefix(att.URL, "data:image/png;base64,"))

	mime, got, err := Decode(att.URL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, data, got)
}

func TestEncodeRejectsOversizedFile(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, MaxSize+1)

	_, err := Encode("huge.bin", "application/octet-stream", data)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestEncodeAtExactLimit(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, MaxSize)

	att, err := Encode("limit.bin", "application/octet-stream", data)
	require.NoError(t, err)
	assert.Equal(t, int64(MaxSize), att.Size)
}

func TestEncodeDefaultsMimeType(t *testing.T) {
	att, err := Encode("notes", "", []byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", att.MimeType)
}

func TestDecodeRejectsNonDataURI(t *testing.T) {
	_, _, err := Decode("https://example.com/file.pdf")
	assert.ErrorIs(t, err, ErrNotDataURI)

	_, _, err = Decode("data:image/png")
	assert.ErrorIs(t, err, ErrNotDataURI)
}

func TestDecodeChunkedLargePayload(t *testing.T) {
	data := bytes.Repeat([]byte("chunky"), 20*1024) // well past one decode chunk

	att, err := Encode("big.bin", "application/zip", data)
	require.NoError(t, err)

	_, got, err := Decode(att.URL)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestKindForMime(t *testing.T) {
	assert.Equal(t, models.KindImage, KindForMime("image/jpeg"))
	assert.Equal(t, models.KindFile, KindForMime("application/pdf"))
	assert.Equal(t, models.KindFile, KindForMime(""))
}

func TestCaption(t *testing.T) {
	assert.Equal(t, "📷 Shared an image: shot.png", Caption("image/png", "shot.png"))
	assert.Equal(t, "📎 Shared a file: report.pdf", Caption("application/pdf", "report.pdf"))
}
