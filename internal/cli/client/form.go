package client

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"sort"
)

// FormFile is one file part of a multipart body
type FormFile struct {
	Field   string
	Name    string
	Content io.Reader
}

// Form is a multipart/form-data request body. Files sharing a field name are sent
// as repeated parts, which is how the portal receives batch uploads.
type Form struct {
	Fields map[string]string
	Files  []FormFile
}

// encode buffers the whole form so the request can carry a Content-Length
func (f *Form) encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	keys := make([]string, 0, len(f.Fields))
	for key := range f.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := w.WriteField(key, f.Fields[key]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", key, err)
		}
	}

	for _, file := range f.Files {
		if file.Content == nil {
			return nil, "", fmt.Errorf("form file %s has no content", file.Name)
		}
		part, err := w.CreateFormFile(file.Field, file.Name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file %s: %w", file.Name, err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", file.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}
