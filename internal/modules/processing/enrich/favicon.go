package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Candidate favicon locations. Each pattern receives the page's scheme://host and its host.
var defaultFaviconPatterns = []string{
	"%[1]s/favicon.ico",
	"https://www.google.com/s2/favicons?domain=%[2]s&sz=64",
	"https://icons.duckduckgo.com/ip3/%[2]s.ico",
}

const (
	faviconProbeTimeout  = 2 * time.Second
	defaultFaviconBudget = 3 * time.Second
)

// Favicons probes candidate icon URLs with HEAD requests. One Resolve call never runs longer
// than its budget.
type Favicons struct {
	patterns    []string
	placeholder string
	budget      time.Duration
	hc          *http.Client
	chain       *Chain[string]
}

func NewFavicons(placeholder string, logger *zap.Logger, patterns ...string) *Favicons {
	if len(patterns) == 0 {
		patterns = defaultFaviconPatterns
	}
	f := &Favicons{
		patterns:    patterns,
		placeholder: placeholder,
		budget:      defaultFaviconBudget,
		hc:          &http.Client{Timeout: faviconProbeTimeout},
	}
	providers := make([]Provider[string], len(patterns))
	for i, p := range patterns {
		pattern := p
		providers[i] = Provider[string]{
			Name:  fmt.Sprintf("favicon-%d", i),
			Fetch: func(ctx context.Context, page string) (string, error) { return f.probe(ctx, pattern, page) },
		}
	}
	f.chain = NewChain(
		func(s string) bool { return s == "" },
		func(string) string { return f.placeholder },
		logger,
		providers...,
	)
	return f
}

// WithBudget caps the total time spent on one page.
func (f *Favicons) WithBudget(d time.Duration) *Favicons {
	if d > 0 {
		f.budget = d
	}
	return f
}

// Resolve returns the first reachable icon for pageURL, or the placeholder.
func (f *Favicons) Resolve(ctx context.Context, pageURL string) string {
	ctx, cancel := context.WithTimeout(ctx, f.budget)
	defer cancel()
	icon, _ := f.chain.Resolve(ctx, pageURL)
	return icon
}

func (f *Favicons) probe(ctx context.Context, pattern, page string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(page))
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in %q", page)
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	candidate := fmt.Sprintf(pattern, scheme+"://"+u.Host, u.Hostname())

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, candidate, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.hc.Do(req)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UpstreamError{Service: "favicon", Status: resp.StatusCode}
	}
	return candidate, nil
}
