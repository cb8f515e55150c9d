package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"

	"family-ledger-go/internal/domain/ledger"
)

// Upload sends one file as the multipart "file" field and returns the
// stored file's metadata.
func (c *Client) Upload(ctx context.Context, filename, contentType string, content io.Reader) (*ledger.Attachment, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}

	resp, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/upload",
		body:        body.Bytes(),
		contentType: writer.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		File ledger.Attachment `json:"file"`
	}
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return nil, fmt.Errorf("decode upload %s: %w", filename, err)
	}
	return &payload.File, nil
}
