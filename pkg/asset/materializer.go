// Package asset uploads locally-created (blob-backed) media so it can be
// referenced by the remote layer store through a durable URL.
package asset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/reeledit/reeledit/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultTimeout = 60 * time.Second

// Uploader posts blobs to the asset endpoint and returns the durable URL
// the store assigned, along with the purpose it resolved for the asset.
type Uploader struct {
	baseURL string
	client  *http.Client
}

func NewUploader(baseURL string, client *http.Client) *Uploader {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Uploader{
		baseURL: baseURL,
		client:  client,
	}
}

type uploadResponse struct {
	URL     string `json:"url"`
	Purpose string `json:"purpose"`
}

func (u *Uploader) Materialize(ctx context.Context, blob []byte, mimeType string, meta models.AssetMeta) (models.AssetResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("purpose", meta.Purpose); err != nil {
		return models.AssetResult{}, err
	}
	if err := mw.WriteField("layer_name", meta.LayerName.String()); err != nil {
		return models.AssetResult{}, err
	}

	fw, err := mw.CreateFormFile("file", uploadFilename(mimeType))
	if err != nil {
		return models.AssetResult{}, err
	}
	if _, err := fw.Write(blob); err != nil {
		return models.AssetResult{}, err
	}
	if err := mw.Close(); err != nil {
		return models.AssetResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/uploads", &buf)
	if err != nil {
		return models.AssetResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return models.AssetResult{}, fmt.Errorf("uploading asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.AssetResult{}, fmt.Errorf("uploading asset: status %d: %s", resp.StatusCode, string(snippet))
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return models.AssetResult{}, fmt.Errorf("decoding upload response: %w", err)
	}
	if parsed.URL == "" {
		return models.AssetResult{}, fmt.Errorf("upload response carried no url")
	}

	return models.AssetResult{
		URL:     parsed.URL,
		Purpose: parsed.Purpose,
	}, nil
}

func uploadFilename(mimeType string) string {
	ext := ".bin"
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return uuid.New().String() + ext
}
