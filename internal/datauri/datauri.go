package datauri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	scheme       = "data:"
	base64Suffix = ";base64"
)

var ErrInvalidDataURI = errors.New("invalid data uri")

// Encode returns content as a base64 data URI with the given MIME type,
// e.g. "data:application/x-msdownload;base64,TVqQ".
func Encode(mimeType string, content []byte) string {
	var b strings.Builder
	b.Grow(len(scheme) + len(mimeType) + len(base64Suffix) + 1 + base64.StdEncoding.EncodedLen(len(content)))
	b.WriteString(scheme)
	b.WriteString(mimeType)
	b.WriteString(base64Suffix)
	b.WriteByte(',')
	b.WriteString(base64.StdEncoding.EncodeToString(content))
	return b.String()
}

// Decode strips the data URI header and base64-decodes the payload.
// It returns the MIME type declared in the header, which may be empty.
func Decode(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, scheme) {
		return "", nil, fmt.Errorf("%w: missing %q prefix", ErrInvalidDataURI, scheme)
	}
	header, payload, found := strings.Cut(uri[len(scheme):], ",")
	if !found {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURI)
	}
	if !strings.HasSuffix(header, base64Suffix) {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
	}
	mimeType := strings.TrimSuffix(header, base64Suffix)
	// FileReader emits parameters such as ";name=x.exe" on some browsers
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}

	content, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return mimeType, content, nil
}
