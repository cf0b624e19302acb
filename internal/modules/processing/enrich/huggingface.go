package enrich

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHuggingFaceURL = "https://api-inference.huggingface.co"
	maxGeneratedImage     = 8 << 20
)

// HuggingFace calls a text-to-image model on the inference API.
type HuggingFace struct {
	endpoint string
	model    string
	token    string
	hc       *http.Client
}

func NewHuggingFace(endpoint, model, token string) *HuggingFace {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		endpoint = defaultHuggingFaceURL
	}
	return &HuggingFace{
		endpoint: endpoint,
		model:    strings.Trim(strings.TrimSpace(model), "/"),
		token:    strings.TrimSpace(token),
		hc:       &http.Client{Timeout: 90 * time.Second},
	}
}

func (h *HuggingFace) Configured() bool { return h != nil && h.token != "" && h.model != "" }

// Generate renders prompt and returns the picture as a data URI.
func (h *HuggingFace) Generate(ctx context.Context, prompt string) (string, error) {
	if !h.Configured() {
		return "", ErrNotConfigured
	}
	payload, err := json.Marshal(map[string]string{"inputs": prompt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/models/"+h.model, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")

	resp, err := h.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGeneratedImage))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > 512 {
			body = body[:512]
		}
		return "", &UpstreamError{Service: "huggingface", Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if len(body) == 0 {
		return "", ErrNoResults
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(body)
		if !strings.HasPrefix(mime, "image/") {
			return "", &UpstreamError{Service: "huggingface", Status: resp.StatusCode, Body: "response is not an image"}
		}
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}
