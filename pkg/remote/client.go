// Package remote implements the HTTP clients for the per-scene layer store:
// the session document source and the coarse-grained layer mutation
// endpoint.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/guregu/null.v4"

	"github.com/reeledit/reeledit/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultTimeout = 30 * time.Second

// Client talks to the remote layer store. All methods issue exactly one
// request; sequencing is the caller's concern.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: baseURL,
		client:  client,
	}
}

type layerPayload struct {
	Name        string              `json:"name"`
	URL         null.String         `json:"url"`
	Content     null.String         `json:"content"`
	Position    *models.Position    `json:"position,omitempty"`
	BoundingBox *models.BoundingBox `json:"bounding_box,omitempty"`
	Volume      null.Float          `json:"volume"`
	Opacity     null.Float          `json:"opacity"`
	Rotation    null.Float          `json:"rotation"`
	Animation   null.String         `json:"animation"`
	Style       map[string]string   `json:"style,omitempty"`
}

type selectorPayload struct {
	Name  string   `json:"name"`
	Index null.Int `json:"index"`
}

type addLayerRequest struct {
	Layer     layerPayload `json:"layer"`
	StartTime string       `json:"start_time"`
	EndTime   null.String  `json:"end_time"`
}

type updateLayerRequest struct {
	LayerSelector selectorPayload        `json:"layer_selector"`
	Updates       map[string]interface{} `json:"updates"`
}

type deleteLayerRequest struct {
	LayerSelector selectorPayload `json:"layer_selector"`
}

type updateBaseVideoRequest struct {
	BaseVideoURL string `json:"base_video_url"`
}

func toLayerPayload(layer models.LayerRecord) layerPayload {
	return layerPayload{
		Name:        layer.Name.String(),
		URL:         layer.URL,
		Content:     layer.Content,
		Position:    layer.Position,
		BoundingBox: layer.BoundingBox,
		Volume:      layer.Volume,
		Opacity:     layer.Opacity,
		Rotation:    layer.Rotation,
		Animation:   layer.Animation,
		Style:       layer.Style,
	}
}

func toSelectorPayload(selector models.LayerSelector) selectorPayload {
	p := selectorPayload{Name: selector.Name.String()}
	if selector.Index != nil {
		p.Index = null.IntFrom(int64(*selector.Index))
	}
	return p
}

func (c *Client) AddLayer(ctx context.Context, sceneNumber int, layer models.LayerRecord) error {
	req := addLayerRequest{Layer: toLayerPayload(layer)}
	if layer.Timing != nil {
		req.StartTime = layer.Timing.Start
		req.EndTime = layer.Timing.End
	}

	return c.do(ctx, http.MethodPost, fmt.Sprintf("/scenes/%d/layers", sceneNumber), req, nil)
}

func (c *Client) UpdateLayer(ctx context.Context, sceneNumber int, selector models.LayerSelector, updates map[string]interface{}) error {
	req := updateLayerRequest{
		LayerSelector: toSelectorPayload(selector),
		Updates:       updates,
	}

	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/scenes/%d/layers", sceneNumber), req, nil)
}

// DeleteLayer removes a layer. A 404 from the store is reported as
// models.ErrLayerNotFound so callers can treat it as already satisfied.
func (c *Client) DeleteLayer(ctx context.Context, sceneNumber int, selector models.LayerSelector) error {
	req := deleteLayerRequest{LayerSelector: toSelectorPayload(selector)}

	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/scenes/%d/layers", sceneNumber), req, nil)
}

func (c *Client) UpdateBaseVideo(ctx context.Context, sceneNumber int, baseVideoURL string) error {
	req := updateBaseVideoRequest{BaseVideoURL: baseVideoURL}

	return c.do(ctx, http.MethodPost, fmt.Sprintf("/scenes/%d/base-video", sceneNumber), req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, models.ErrLayerNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, string(snippet))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
	}

	return nil
}
