// Package attachments converts files to and from the inline data-URI form
// used to transport them inside ordinary message-create calls.
package attachments

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"StudioDesk/server/internal/models"
)

// MaxSize is the attachment ceiling. Larger files are rejected before any
// store call is made.
const MaxSize = 10 * 1024 * 1024

// decodeChunk keeps large decodes incremental instead of one giant read.
const decodeChunk = 32 * 1024

var (
	ErrTooLarge   = errors.New("file size exceeds the 10MB limit")
	ErrNotDataURI = errors.New("not a data URI")
)

// Encode validates the file and wraps its bytes into a self-contained
// data-URI attachment.
func Encode(name, mimeType string, data []byte) (models.Attachment, error) {
	if int64(len(data)) > MaxSize {
		return models.Attachment{}, ErrTooLarge
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	uri := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	return models.Attachment{
		URL:      uri,
		Name:     name,
		Size:     int64(len(data)),
		MimeType: mimeType,
	}, nil
}

// Decode unpacks a data URI back into its media type and raw bytes. The
// base64 payload is consumed in fixed-size chunks so files near the size
// ceiling do not decode in one blocking pass.
func Decode(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrNotDataURI
	}

	mimeType, _, _ := strings.Cut(meta, ";")
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("unsupported data URI encoding: %s", meta)
	}

	dec := base64.NewDecoder(base64.StdEncoding, strings.NewReader(payload))
	var buf bytes.Buffer
	chunk := make([]byte, decodeChunk)
	for {
		n, err := dec.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("failed to decode data URI payload: %w", err)
		}
	}
	return mimeType, buf.Bytes(), nil
}

// IsDataURI reports whether the attachment URL is inline rather than remote.
func IsDataURI(url string) bool {
	return strings.HasPrefix(url, "data:")
}

// KindForMime maps a media type to the message kind used for rendering.
func KindForMime(mimeType string) string {
	if strings.HasPrefix(mimeType, "image/") {
		return models.KindImage
	}
	return models.KindFile
}

// Caption builds the auto-generated body text for a shared file when the
// sender supplies no custom text.
func Caption(mimeType, name string) string {
	if strings.HasPrefix(mimeType, "image/") {
		return fmt.Sprintf("📷 Shared an image: %s", name)
	}
	return fmt.Sprintf("📎 Shared a file: %s", name)
}
