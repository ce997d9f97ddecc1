package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"imperio/internal/apierror"
	"imperio/internal/dto"
	"imperio/internal/model"
	"imperio/internal/notify"
	"imperio/internal/pricing"
	"imperio/internal/repository"
	"imperio/internal/textnorm"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	storefrontCacheKey = "catalog:storefront"
	storefrontCacheTTL = 60 * time.Second
)

type CatalogService interface {
	Storefront(ctx context.Context) (*dto.CatalogResponse, error)
	Products(ctx context.Context, onlyAvailable bool) ([]dto.ProductResponse, error)
	Categories(ctx context.Context) ([]dto.CategoryResponse, error)
	Zones(ctx context.Context) ([]dto.ZoneResponse, error)
	// ResolveByName maps a free-text product name to a catalog entry.
	ResolveByName(ctx context.Context, name string) (*model.Product, error)
	// ZoneFee reports whether zone is served and at what fee.
	ZoneFee(ctx context.Context, zone string) (fee decimal.Decimal, served bool, err error)
	UpdatePrice(ctx context.Context, id uuid.UUID, req dto.UpdatePriceRequest) (*dto.ProductResponse, error)
}

type catalogService struct {
	repo   repository.CatalogRepository
	rdb    *redis.Client
	engine *pricing.Engine
	events notify.Publisher
}

// NewCatalogService: rdb may be nil, in which case the storefront catalog is
// read from the store on every call.
func NewCatalogService(repo repository.CatalogRepository, rdb *redis.Client, engine *pricing.Engine, events notify.Publisher) CatalogService {
	if engine == nil {
		engine = pricing.DefaultEngine()
	}
	if events == nil {
		events = notify.Noop{}
	}
	return &catalogService{repo: repo, rdb: rdb, engine: engine, events: events}
}

func (s *catalogService) Storefront(ctx context.Context) (*dto.CatalogResponse, error) {
	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, storefrontCacheKey).Bytes()
		if err == nil {
			var cached dto.CatalogResponse
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("catalog: cache read failed")
		}
	}

	cats, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.Products(ctx, true)
	if err != nil {
		return nil, err
	}
	zones, err := s.Zones(ctx)
	if err != nil {
		return nil, err
	}
	resp := &dto.CatalogResponse{
		Categories:   cats,
		Products:     products,
		Zones:        zones,
		MinimumOrder: s.engine.MinimumOrder(),
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(resp); err == nil {
			if err := s.rdb.Set(ctx, storefrontCacheKey, raw, storefrontCacheTTL).Err(); err != nil {
				log.Warn().Err(err).Msg("catalog: cache write failed")
			}
		}
	}
	return resp, nil
}

func (s *catalogService) Products(ctx context.Context, onlyAvailable bool) ([]dto.ProductResponse, error) {
	products, err := s.repo.ListProducts(ctx, onlyAvailable)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, toProductResponse(&products[i]))
	}
	return out, nil
}

func (s *catalogService) Categories(ctx context.Context) ([]dto.CategoryResponse, error) {
	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.CategoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, dto.CategoryResponse{ID: c.ID.String(), Name: c.Name, SortOrder: c.SortOrder})
	}
	return out, nil
}

func (s *catalogService) Zones(ctx context.Context) ([]dto.ZoneResponse, error) {
	zones, err := s.repo.ListZones(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ZoneResponse, 0, len(zones))
	for _, z := range zones {
		out = append(out, dto.ZoneResponse{ID: z.ID.String(), Name: z.DisplayName, Fee: z.Fee})
	}
	return out, nil
}

// ResolveByName tries a folded exact match first, then a unique partial
// match. Unavailable products still resolve so that pricing can report them
// as unavailable instead of unknown.
func (s *catalogService) ResolveByName(ctx context.Context, name string) (*model.Product, error) {
	key := textnorm.Fold(name)
	if key == "" {
		return nil, &apierror.ProductError{Name: strings.TrimSpace(name)}
	}
	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return nil, err
	}

	var partial []int
	for i := range products {
		folded := textnorm.Fold(products[i].Name)
		if folded == key {
			return &products[i], nil
		}
		if strings.Contains(folded, key) {
			partial = append(partial, i)
		}
	}
	if len(partial) == 1 {
		return &products[partial[0]], nil
	}
	return nil, &apierror.ProductError{Name: strings.TrimSpace(name)}
}

func (s *catalogService) ZoneFee(ctx context.Context, zone string) (decimal.Decimal, bool, error) {
	zones, err := s.repo.ListZones(ctx, true)
	if err != nil {
		return decimal.Zero, false, err
	}
	fee, ok := pricing.NewZoneTable(zones).FeeFor(zone)
	return fee, ok, nil
}

// UpdatePrice changes future quotes only; orders keep their line snapshot.
func (s *catalogService) UpdatePrice(ctx context.Context, id uuid.UUID, req dto.UpdatePriceRequest) (*dto.ProductResponse, error) {
	if !req.Price.IsPositive() {
		return nil, &apierror.AmountError{Reason: "o preço precisa ser maior que zero"}
	}
	if req.PromoPrice != nil && (!req.PromoPrice.IsPositive() || req.PromoPrice.GreaterThanOrEqual(req.Price)) {
		return nil, &apierror.AmountError{Reason: "a promoção precisa ser positiva e menor que o preço"}
	}

	p, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	old := p.Price
	p.Price = req.Price.Round(2)
	if req.PromoPrice != nil {
		promo := req.PromoPrice.Round(2)
		p.PromoPrice = &promo
	} else {
		p.PromoPrice = nil
	}
	if req.Available != nil {
		p.Available = *req.Available
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}

	log.Info().Str("product_id", id.String()).Str("old", old.StringFixed(2)).
		Str("new", p.Price.StringFixed(2)).Msg("catalog: price updated")
	s.invalidate(ctx)
	notify.Emit(ctx, s.events, notify.EntityProduct, id.String(), notify.KindUpdated)

	resp := toProductResponse(p)
	return &resp, nil
}

func (s *catalogService) invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, storefrontCacheKey).Err(); err != nil {
		log.Warn().Err(err).Msg("catalog: cache invalidation failed")
	}
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	r := dto.ProductResponse{
		ID:         p.ID.String(),
		Name:       p.Name,
		Price:      p.Price,
		PromoPrice: p.PromoPrice,
		Available:  p.Available,
	}
	if p.Category != nil {
		name := p.Category.Name
		r.Category = &name
	}
	return r
}
