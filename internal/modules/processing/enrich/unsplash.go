package enrich

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rationable/api/internal/models"
)

const defaultUnsplashEndpoint = "https://api.unsplash.com"

type Unsplash struct {
	endpoint string
	key      string
	hc       *http.Client
}

func NewUnsplash(endpoint, accessKey string) *Unsplash {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		endpoint = defaultUnsplashEndpoint
	}
	return &Unsplash{endpoint: endpoint, key: strings.TrimSpace(accessKey), hc: &http.Client{Timeout: 15 * time.Second}}
}

func (u *Unsplash) Configured() bool { return u != nil && u.key != "" }

type unsplashSearch struct {
	Results []struct {
		Description    string `json:"description"`
		AltDescription string `json:"alt_description"`
		URLs           struct {
			Regular string `json:"regular"`
			Small   string `json:"small"`
		} `json:"urls"`
		User struct {
			Name string `json:"name"`
		} `json:"user"`
		Links struct {
			HTML string `json:"html"`
		} `json:"links"`
	} `json:"results"`
}

// Search returns up to n landscape photos for query.
func (u *Unsplash) Search(ctx context.Context, query string, n int) ([]models.ImageRef, error) {
	if !u.Configured() {
		return nil, ErrNotConfigured
	}
	if n <= 0 {
		n = 1
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", strconv.Itoa(n))
	q.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.endpoint+"/search/photos?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Client-ID "+u.key)
	req.Header.Set("Accept-Version", "v1")

	resp, err := u.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &UpstreamError{Service: "unsplash", Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out unsplashSearch
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	images := make([]models.ImageRef, 0, len(out.Results))
	for _, r := range out.Results {
		if r.URLs.Regular == "" {
			continue
		}
		alt := r.AltDescription
		if alt == "" {
			alt = r.Description
		}
		images = append(images, models.ImageRef{
			URL:    r.URLs.Regular,
			Thumb:  r.URLs.Small,
			Alt:    alt,
			Author: r.User.Name,
			Link:   r.Links.HTML,
			Source: "unsplash",
		})
	}
	return images, nil
}
