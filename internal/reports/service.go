package reports

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultSalesDays = 30
	maxSalesDays     = 365
)

// Service coordinates report query execution with the cache layer. Concurrent
// requests for the same report share one database round trip.
type Service struct {
	repo              Repository
	cache             *Cache
	group             singleflight.Group
	lowStockThreshold int
	expiryWindow      time.Duration
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache, lowStockThreshold int, expiryWindow time.Duration) *Service {
	return &Service{
		repo:              repo,
		cache:             cache,
		lowStockThreshold: lowStockThreshold,
		expiryWindow:      expiryWindow,
	}
}

// Dashboard returns the headline summary, served from cache when warm.
func (s *Service) Dashboard(ctx context.Context) (*DashboardSummary, error) {
	key, err := s.cache.BuildKey(ctx, "reports", "dashboard")
	if err != nil {
		return nil, err
	}
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		var summary DashboardSummary
		err := s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (interface{}, error) {
			return s.repo.Summary(ctx, s.lowStockThreshold, s.expiryWindow)
		})
		if err != nil {
			return nil, err
		}
		return &summary, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DashboardSummary), nil
}

// Sales returns the daily revenue series over the trailing window.
func (s *Service) Sales(ctx context.Context, days int) ([]SalesPoint, error) {
	if days <= 0 {
		days = defaultSalesDays
	}
	if days > maxSalesDays {
		days = maxSalesDays
	}
	key, err := s.cache.BuildKey(ctx, "reports", "sales", strconv.Itoa(days))
	if err != nil {
		return nil, err
	}
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		var series []SalesPoint
		err := s.cache.FetchJSON(ctx, key, &series, func(ctx context.Context) (interface{}, error) {
			return s.repo.DailySales(ctx, days)
		})
		if err != nil {
			return nil, err
		}
		return series, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]SalesPoint), nil
}

// Invalidate drops every cached report.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Warm precomputes the reports the dashboard loads first.
func (s *Service) Warm(ctx context.Context) error {
	if _, err := s.Dashboard(ctx); err != nil {
		return err
	}
	_, err := s.Sales(ctx, defaultSalesDays)
	return err
}
