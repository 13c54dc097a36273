package http

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Payload is an outbound request body. Byte and form payloads can be sent
// any number of times; a stream payload is sent once.
type Payload struct {
	data        []byte
	stream      io.Reader
	contentType string
}

// BytesPayload sends data as-is.
func BytesPayload(data []byte, contentType string) *Payload {
	return &Payload{data: data, contentType: contentType}
}

// StringPayload sends s as-is.
func StringPayload(s, contentType string) *Payload {
	return &Payload{data: []byte(s), contentType: contentType}
}

// StreamPayload sends whatever r yields. It cannot be replayed on redirect.
func StreamPayload(r io.Reader, contentType string) *Payload {
	return &Payload{stream: r, contentType: contentType}
}

// FormPayload sends values urlencoded.
func FormPayload(values url.Values) *Payload {
	return &Payload{
		data:        []byte(values.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}
}

// MultipartField is one part of a multipart/form-data payload. Fields with a
// Path are sent as file uploads.
type MultipartField struct {
	Name  string
	Value string
	Path  string
}

// MultipartPayload builds a multipart/form-data body. Relative file paths
// are resolved against baseDir and may not escape it.
func MultipartPayload(fields []MultipartField, baseDir string) (*Payload, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, field := range fields {
		if field.Path == "" {
			if err := writer.WriteField(field.Name, field.Value); err != nil {
				return nil, err
			}
			continue
		}

		filePath := field.Path
		if !filepath.IsAbs(filePath) && baseDir != "" {
			filePath = filepath.Join(baseDir, filePath)
		}
		if err := validatePathWithinBase(filePath, baseDir); err != nil {
			return nil, newError(KindInvalidArgument, "multipart payload", err)
		}

		file, err := os.Open(filePath)
		if err != nil {
			return nil, err
		}
		part, err := writer.CreateFormFile(field.Name, filepath.Base(filePath))
		if err != nil {
			file.Close()
			return nil, err
		}
		_, err = io.Copy(part, file)
		file.Close()
		if err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return &Payload{data: body.Bytes(), contentType: writer.FormDataContentType()}, nil
}

// validatePathWithinBase checks that the resolved path stays within the base directory
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}
	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}
	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}
	return nil
}

// ContentType returns the media type implied by the payload, if any.
func (p *Payload) ContentType() string {
	if p == nil {
		return ""
	}
	return p.contentType
}

// Replayable reports whether the payload can be sent again.
func (p *Payload) Replayable() bool {
	return p == nil || p.stream == nil
}

// open returns a fresh reader and the length, or -1 when unknown.
func (p *Payload) open() (io.Reader, int64) {
	if p == nil {
		return nil, 0
	}
	if p.stream != nil {
		return p.stream, -1
	}
	return bytes.NewReader(p.data), int64(len(p.data))
}
