// Package geo resolves client IPs to a coarse location used to localize real-time search.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rationable/api/internal/pkg/response"
)

var (
	ErrInvalidIP = errors.New("invalid IP address")
	ErrPrivateIP = errors.New("IP address is not publicly routable")
)

type Location struct {
	IP          string `json:"ip"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code,omitempty"`
	Region      string `json:"region"`
	City        string `json:"city"`
}

// String renders "City, Region, Country", skipping blanks.
func (l Location) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.City, l.Region, l.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Cache is the subset of *cache.Cache the locator needs.
type Cache interface {
	Get(ctx context.Context, key string, out interface{}) error
	SetTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Locator looks IPs up on an HTTP endpoint. endpoint is a fmt pattern with one %s for the
// IP, for example "https://ipapi.co/%s/json/".
type Locator struct {
	endpoint string
	cache    Cache
	ttl      time.Duration
	hc       *http.Client
	logger   *zap.Logger
}

func NewLocator(endpoint string, c Cache, ttl time.Duration, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{endpoint: endpoint, cache: c, ttl: ttl, hc: &http.Client{Timeout: 5 * time.Second}, logger: logger}
}

// upstream accepts both the ipapi.co and the ip-api.com field names.
type upstream struct {
	CountryName string `json:"country_name"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	Region      string `json:"region"`
	RegionName  string `json:"regionName"`
	City        string `json:"city"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

func (u upstream) location(ip string) (*Location, error) {
	if u.Error || u.Status == "fail" {
		reason := u.Reason
		if reason == "" {
			reason = u.Message
		}
		return nil, fmt.Errorf("geo lookup failed: %s", reason)
	}
	loc := &Location{IP: ip, Country: u.CountryName, CountryCode: u.CountryCode, Region: u.Region, City: u.City}
	if loc.Country == "" {
		loc.Country = u.Country
	}
	if u.RegionName != "" {
		loc.Region = u.RegionName
	}
	return loc, nil
}

// Lookup resolves ip, serving repeated lookups from the cache.
func (l *Locator) Lookup(ctx context.Context, ip string) (*Location, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return nil, ErrInvalidIP
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() || parsed.IsLinkLocalUnicast() {
		return nil, ErrPrivateIP
	}
	ip = parsed.String()
	key := "geo:" + ip

	if l.cache != nil {
		var cached Location
		if err := l.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(l.endpoint, ip), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := l.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("geo lookup returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var u upstream
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, err
	}
	loc, err := u.location(ip)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.SetTTL(ctx, key, loc, l.ttl); err != nil {
			l.logger.Warn("geo cache write failed", zap.Error(err))
		}
	}
	return loc, nil
}

type Handler struct {
	locator *Locator
}

func NewHandler(locator *Locator) *Handler {
	return &Handler{locator: locator}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/geo", h.lookup)
}

// lookup resolves ?ip= or the caller's address.
func (h *Handler) lookup(c *gin.Context) {
	ip := c.Query("ip")
	if ip == "" {
		ip = c.ClientIP()
	}
	loc, err := h.locator.Lookup(c.Request.Context(), ip)
	switch {
	case errors.Is(err, ErrInvalidIP), errors.Is(err, ErrPrivateIP):
		response.BadRequest(c, err.Error())
	case err != nil:
		response.ServiceUnavailable(c, err.Error())
	default:
		response.OK(c, loc)
	}
}
