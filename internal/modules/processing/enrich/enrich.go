package enrich

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appcfg "github.com/rationable/api/internal/config"
	"github.com/rationable/api/internal/models"
	"github.com/rationable/api/internal/modules/storage/cache"
)

const (
	linksPerOption    = 3
	maxParallelOption = 4
)

// Clients bundles the upstream APIs. Unconfigured clients are left out of the chains.
type Clients struct {
	Unsplash    *Unsplash
	Google      *Google
	HuggingFace *HuggingFace
}

func NewClients(ctx context.Context, cfg appcfg.SearchConfig) (*Clients, error) {
	google, err := NewGoogle(ctx, cfg.GoogleAPIKey, cfg.GoogleCX, cfg.GoogleEndpoint)
	if err != nil {
		return nil, err
	}
	return &Clients{
		Unsplash:    NewUnsplash(cfg.UnsplashEndpoint, cfg.UnsplashAccessKey),
		Google:      google,
		HuggingFace: NewHuggingFace(cfg.HuggingFaceURL, cfg.HuggingFaceModel, cfg.HuggingFaceToken),
	}, nil
}

// ImageChain builds Unsplash → Google images → Hugging Face → placeholder.
func ImageChain(c *Clients, placeholder string, logger *zap.Logger) *Chain[*models.ImageRef] {
	var providers []Provider[*models.ImageRef]
	if c.Unsplash.Configured() {
		providers = append(providers, Provider[*models.ImageRef]{Name: "unsplash", Fetch: firstImage(c.Unsplash.Search)})
	}
	if c.Google.Configured() {
		providers = append(providers, Provider[*models.ImageRef]{Name: "google", Fetch: firstImage(c.Google.Images)})
	}
	if c.HuggingFace.Configured() {
		providers = append(providers, Provider[*models.ImageRef]{
			Name: "huggingface",
			Fetch: func(ctx context.Context, q string) (*models.ImageRef, error) {
				uri, err := c.HuggingFace.Generate(ctx, "A realistic photo of "+q)
				if err != nil {
					return nil, err
				}
				return &models.ImageRef{URL: uri, Alt: q, Source: "huggingface"}, nil
			},
		})
	}
	return NewChain(
		func(r *models.ImageRef) bool { return r == nil || r.URL == "" },
		func(q string) *models.ImageRef {
			return &models.ImageRef{URL: placeholder, Alt: q, Source: PlaceholderSource}
		},
		logger,
		providers...,
	)
}

func firstImage(search func(context.Context, string, int) ([]models.ImageRef, error)) func(context.Context, string) (*models.ImageRef, error) {
	return func(ctx context.Context, q string) (*models.ImageRef, error) {
		images, err := search(ctx, q, 1)
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			return nil, ErrNoResults
		}
		return &images[0], nil
	}
}

// Cache is the subset of *cache.Cache used here.
type Cache interface {
	Get(ctx context.Context, key string, out interface{}) error
	SetTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type enrichment struct {
	Image *models.ImageRef `json:"image"`
	Links []models.Link    `json:"links,omitempty"`
}

// Service attaches an image and supporting links to every option of a result.
type Service struct {
	images   *Chain[*models.ImageRef]
	google   *Google
	favicons *Favicons
	cache    Cache
	ttl      time.Duration
	logger   *zap.Logger
}

func NewService(images *Chain[*models.ImageRef], google *Google, favicons *Favicons, c Cache, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{images: images, google: google, favicons: favicons, cache: c, ttl: ttl, logger: logger}
}

// EnrichDecision enriches the stored result of d in place.
func (s *Service) EnrichDecision(ctx context.Context, d *models.DecisionModel) {
	s.Enrich(ctx, d.Dilemma, &d.Result)
}

// Enrich fills Image and Links on every breakdown item concurrently. Failures degrade to the
// placeholder image and no links.
func (s *Service) Enrich(ctx context.Context, dilemma string, r *models.Result) {
	if r == nil || len(r.Breakdown) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelOption)
	for i := range r.Breakdown {
		item := &r.Breakdown[i]
		g.Go(func() error {
			e := s.lookup(gctx, dilemma, item)
			item.Image = e.Image
			item.Links = e.Links
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) lookup(ctx context.Context, dilemma string, item *models.BreakdownItem) enrichment {
	query := strings.TrimSpace(item.ImageQuery)
	if query == "" {
		query = item.Option
	}
	key := cache.Key("enrich", query, item.Option, dilemma)

	var e enrichment
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &e); err == nil && e.Image != nil {
			return e
		}
	}

	image, source := s.images.Resolve(ctx, query)
	e = enrichment{Image: image, Links: s.links(ctx, item.Option+" "+dilemma)}

	if s.cache != nil && source != PlaceholderSource {
		if err := s.cache.SetTTL(ctx, key, e, s.ttl); err != nil {
			s.logger.Warn("enrichment cache write failed", zap.Error(err))
		}
	}
	return e
}

func (s *Service) links(ctx context.Context, query string) []models.Link {
	if !s.google.Configured() {
		return nil
	}
	links, err := s.google.Web(ctx, query, linksPerOption)
	if err != nil {
		s.logger.Debug("link search failed", zap.Error(err))
		return nil
	}
	s.attachFavicons(ctx, links)
	return links
}

// attachFavicons resolves every link's icon concurrently.
func (s *Service) attachFavicons(ctx context.Context, links []models.Link) {
	if s.favicons == nil || len(links) == 0 {
		return
	}
	var g errgroup.Group
	for i := range links {
		g.Go(func() error {
			links[i].Favicon = s.favicons.Resolve(ctx, links[i].URL)
			return nil
		})
	}
	_ = g.Wait()
}
