package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Attachment is a file-like part of a multipart update.
type Attachment struct {
	Field       string
	Filename    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FileAttachment attaches a local file, e.g. a photo handed over by the camera.
func FileAttachment(field, path string) Attachment {
	return Attachment{
		Field:       field,
		Filename:    filepath.Base(path),
		ContentType: contentTypeFor(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// BytesAttachment attaches an in-memory blob.
func BytesAttachment(field, filename, contentType string, data []byte) Attachment {
	return Attachment{
		Field:       field,
		Filename:    filename,
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}

// Payload is the body of an update: structured fields plus optional files.
type Payload struct {
	Fields      map[string]string
	Attachments []Attachment
}

// BuildUpdatePayload is the single constructor used by every commit.
// Empty field values are dropped.
func BuildUpdatePayload(fields map[string]string, attachments ...Attachment) *Payload {
	p := &Payload{Fields: make(map[string]string, len(fields))}
	for k, v := range fields {
		if v != "" {
			p.Fields[k] = v
		}
	}
	for _, a := range attachments {
		if a.Open != nil {
			p.Attachments = append(p.Attachments, a)
		}
	}
	return p
}

// Multipart reports whether the payload must be sent as multipart/form-data.
func (p *Payload) Multipart() bool {
	return len(p.Attachments) > 0
}

// Encode renders the payload as JSON or multipart and returns the content type.
func (p *Payload) Encode() ([]byte, string, error) {
	if !p.Multipart() {
		b, err := json.Marshal(p.Fields)
		if err != nil {
			return nil, "", err
		}
		return b, "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, p.Fields[k]); err != nil {
			return nil, "", err
		}
	}

	for _, a := range p.Attachments {
		if err := writeAttachment(w, a); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeAttachment(w *multipart.Writer, a Attachment) error {
	filename := a.Filename
	if filename == "" {
		filename = uuid.NewString()
	}
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(a.Field), escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}

	r, err := a.Open()
	if err != nil {
		return fmt.Errorf("failed to open attachment '%s': %w", filename, err)
	}
	defer r.Close()
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("failed to read attachment '%s': %w", filename, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
