package enrich

import (
	"context"
	"strings"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/rationable/api/internal/models"
)

// Google wraps the Custom Search JSON API for web and image results.
type Google struct {
	svc *customsearch.Service
	cx  string
}

// NewGoogle returns nil without error when key or cx is missing.
func NewGoogle(ctx context.Context, apiKey, cx, endpoint string) (*Google, error) {
	apiKey, cx = strings.TrimSpace(apiKey), strings.TrimSpace(cx)
	if apiKey == "" || cx == "" {
		return nil, nil
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(endpoint, "/")+"/"))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Google{svc: svc, cx: cx}, nil
}

func (g *Google) Configured() bool { return g != nil && g.svc != nil }

func (g *Google) list(ctx context.Context, query string, n int, image bool) ([]*customsearch.Result, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	if n <= 0 || n > 10 {
		n = 10
	}
	call := g.svc.Cse.List().Cx(g.cx).Q(query).Num(int64(n)).Safe("active").Context(ctx)
	if image {
		call = call.SearchType("image")
	}
	resp, err := call.Do()
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Web returns up to n web results as links. Favicons are left for the caller to resolve.
func (g *Google) Web(ctx context.Context, query string, n int) ([]models.Link, error) {
	items, err := g.list(ctx, query, n, false)
	if err != nil {
		return nil, err
	}
	links := make([]models.Link, 0, len(items))
	for _, it := range items {
		if it.Link == "" {
			continue
		}
		links = append(links, models.Link{Title: it.Title, URL: it.Link, Snippet: strings.TrimSpace(it.Snippet)})
	}
	return links, nil
}

// Images returns up to n image results.
func (g *Google) Images(ctx context.Context, query string, n int) ([]models.ImageRef, error) {
	items, err := g.list(ctx, query, n, true)
	if err != nil {
		return nil, err
	}
	images := make([]models.ImageRef, 0, len(items))
	for _, it := range items {
		if it.Link == "" {
			continue
		}
		ref := models.ImageRef{URL: it.Link, Alt: it.Title, Source: "google"}
		if it.Image != nil {
			ref.Thumb = it.Image.ThumbnailLink
			ref.Link = it.Image.ContextLink
		}
		images = append(images, ref)
	}
	return images, nil
}
