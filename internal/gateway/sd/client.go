// Package sd adapts the Stable Diffusion WebUI txt2img API to the
// image-generation gateway used by the orchestrator.
package sd

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/disintegration/imaging"

	"github.com/aliskhannn/meme-generator/internal/config"
	"github.com/aliskhannn/meme-generator/internal/gateway"
)

// txt2imgRequest is the payload for the /sdapi/v1/txt2img endpoint.
type txt2imgRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Steps          int     `json:"steps"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	SamplerName    string  `json:"sampler_name"`
	CfgScale       float64 `json:"cfg_scale"`
	RestoreFaces   bool    `json:"restore_faces"`
	BatchSize      int     `json:"batch_size"`
	NIter          int     `json:"n_iter"`
	Seed           int     `json:"seed"`
}

// txt2imgResponse carries the generated images as base64-encoded PNGs.
type txt2imgResponse struct {
	Images []string `json:"images"`
}

// Client is a thin synchronous adapter over the txt2img API.
// Every call enforces the configured per-call timeout.
type Client struct {
	httpClient *http.Client
	cfg        config.SD
	apiURL     string
}

// NewClient creates a Client for the WebUI instance described by cfg.
func NewClient(cfg config.SD) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		apiURL:     cfg.BaseURL + "/sdapi/v1/txt2img",
	}
}

// Generate renders one image for the given scene prompt using the
// config-derived generation parameters. Transport failures are normalized
// into the gateway error set; an undecodable payload is ErrInvalidResponse.
func (c *Client) Generate(ctx context.Context, prompt string) (image.Image, error) {
	payload := txt2imgRequest{
		Prompt:         prompt,
		NegativePrompt: c.cfg.NegativePrompt,
		Steps:          c.cfg.Steps,
		Width:          c.cfg.Width,
		Height:         c.cfg.Height,
		SamplerName:    c.cfg.SamplerName,
		CfgScale:       c.cfg.CfgScale,
		RestoreFaces:   c.cfg.RestoreFaces,
		BatchSize:      1,
		NIter:          1,
		Seed:           -1,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal txt2img payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create txt2img request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, gateway.Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", gateway.ErrUnavailable, resp.StatusCode, respBody)
	}

	var result txt2imgResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrInvalidResponse, err)
	}

	if len(result.Images) == 0 {
		return nil, fmt.Errorf("%w: no images in response", gateway.ErrInvalidResponse)
	}

	raw, err := base64.StdEncoding.DecodeString(result.Images[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64 image: %v", gateway.ErrInvalidResponse, err)
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable image: %v", gateway.ErrInvalidResponse, err)
	}

	return img, nil
}
