package domain

import (
	"encoding/base64"
	"errors"
	"strings"
)

const (
	MIMETypePNG = "image/png"
	MIMETypeMP4 = "video/mp4"
)

// Artifact is an opaque media reference returned by a generation backend. It
// carries a URI, inline bytes, or both.
type Artifact struct {
	URI      string
	Data     []byte
	MIMEType string
}

// Empty reports whether the artifact references nothing.
func (a Artifact) Empty() bool {
	return strings.TrimSpace(a.URI) == "" && len(a.Data) == 0
}

// DataURI encodes inline bytes as a data: URI, or returns the URI when no
// bytes are present.
func (a Artifact) DataURI() string {
	if len(a.Data) == 0 {
		return a.URI
	}
	mime := a.MIMEType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// ParseDataURI decodes a data: URI. Bare base64 payloads are accepted and
// typed with fallbackMIME.
func ParseDataURI(raw, fallbackMIME string) (Artifact, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Artifact{}, errors.New("empty payload")
	}
	mime := fallbackMIME
	payload := raw
	if strings.HasPrefix(raw, "data:") {
		header, body, ok := strings.Cut(raw, ",")
		if !ok {
			return Artifact{}, errors.New("malformed data uri")
		}
		meta := strings.TrimPrefix(header, "data:")
		meta, isBase64 := strings.CutSuffix(meta, ";base64")
		if !isBase64 {
			return Artifact{}, errors.New("data uri must be base64 encoded")
		}
		if meta != "" {
			mime = meta
		}
		payload = body
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Artifact{}, err
	}
	if len(data) == 0 {
		return Artifact{}, errors.New("empty payload")
	}
	return Artifact{Data: data, MIMEType: mime}, nil
}

// AsyncOperation is a handle to a long-running backend job.
type AsyncOperation struct {
	Handle         string
	Done           bool
	Result         *Artifact
	Err            error
	FilteredReason string
}
