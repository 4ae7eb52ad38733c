package checklist

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// Attachment is a photo or video. Data holds either an inline data URL, as
// produced by the client, or the public URL it was uploaded to.
type Attachment struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

func (a Attachment) IsUploaded() bool {
	return strings.HasPrefix(a.Data, "https://") || strings.HasPrefix(a.Data, "http://")
}

// DecodeInline returns the bytes and MIME type of an inline payload. Payloads
// without a data: prefix are treated as bare base64.
func (a Attachment) DecodeInline() ([]byte, string, error) {
	if a.IsUploaded() {
		return nil, "", fmt.Errorf("attachment %q is already uploaded", a.ID)
	}

	mimeType := "application/octet-stream"
	payload := a.Data
	isBase64 := true

	if rest, ok := strings.CutPrefix(a.Data, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", fmt.Errorf("attachment %q has a malformed data URL", a.ID)
		}
		payload = data
		meta, isBase64 = strings.CutSuffix(meta, ";base64")
		if mt, _, _ := strings.Cut(meta, ";"); mt != "" {
			mimeType = mt
		}
	}

	if !isBase64 {
		text, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode attachment %q: %w", a.ID, err)
		}
		return []byte(text), mimeType, nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode attachment %q: %w", a.ID, err)
	}
	return data, mimeType, nil
}

func cloneAttachments(in []Attachment) []Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]Attachment, len(in))
	copy(out, in)
	return out
}

func mapAttachments(in []Attachment, fn func(Attachment) Attachment) {
	for i := range in {
		in[i] = fn(in[i])
	}
}
