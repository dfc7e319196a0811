package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sapdesk/sapdesk/internal/domain"
	"github.com/sapdesk/sapdesk/internal/repository"
	apperrors "github.com/sapdesk/sapdesk/pkg/util"
)

const (
	dashboardCacheKey = "sapdesk:analytics:dashboard"
	dashboardCacheTTL = 60 * time.Second
)

// DashboardStats is the headline figures for the landing page.
type DashboardStats struct {
	TotalTickets   int            `json:"total_tickets"`
	OpenTickets    int            `json:"open_tickets"`
	InProgress     int            `json:"in_progress"`
	ResolvedToday  int            `json:"resolved_today"`
	StatusCounts   map[string]int `json:"status_counts"`
	PriorityCounts map[string]int `json:"priority_counts"`
}

// FullAnalytics is the detailed reporting payload.
type FullAnalytics struct {
	StatusCounts             map[string]int          `json:"status_counts"`
	PriorityCounts           map[string]int          `json:"priority_counts"`
	CategoryCounts           map[string]int          `json:"category_counts"`
	DailyCounts              []repository.DailyCount `json:"daily_counts"`
	AverageResolutionMinutes float64                 `json:"average_resolution_minutes"`
	SLACompliancePercent     float64                 `json:"sla_compliance_percent"`
	EmailStats               repository.EmailStats   `json:"email_stats"`
}

// UserAnalytics summarizes one user's ticket activity.
type UserAnalytics struct {
	Created  int `json:"created"`
	Assigned int `json:"assigned"`
}

// CategorySummary is one row of the per-module breakdown.
type CategorySummary struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Count       int    `json:"count"`
}

// AnalyticsService aggregates reporting figures, caching the hot dashboard
// payload in Redis.
type AnalyticsService struct {
	tickets repository.TicketRepository
	emails  repository.EmailSourceRepository
	cache   *redis.Client
	logger  *zap.Logger
	now     func() time.Time
}

// NewAnalyticsService constructs the service. cache may be nil in tests.
func NewAnalyticsService(tickets repository.TicketRepository, emails repository.EmailSourceRepository, cache *redis.Client, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		tickets: tickets,
		emails:  emails,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

// Dashboard returns headline figures, served from cache when fresh.
// ResolvedToday counts tickets whose resolved_at falls on the current UTC day.
func (s *AnalyticsService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, dashboardCacheKey).Bytes(); err == nil {
			var stats DashboardStats
			if err := json.Unmarshal(cached, &stats); err == nil {
				return &stats, nil
			}
		}
	}

	statusCounts, err := s.tickets.StatusCounts(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	priorityCounts, err := s.tickets.PriorityCounts(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	midnight := s.now().UTC().Truncate(24 * time.Hour)
	resolvedToday, err := s.tickets.ResolvedSince(ctx, midnight)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	total := 0
	for _, count := range statusCounts {
		total += count
	}

	stats := &DashboardStats{
		TotalTickets:   total,
		OpenTickets:    statusCounts[string(domain.TicketStatusOpen)],
		InProgress:     statusCounts[string(domain.TicketStatusInProgress)],
		ResolvedToday:  resolvedToday,
		StatusCounts:   statusCounts,
		PriorityCounts: priorityCounts,
	}

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, dashboardCacheKey, payload, dashboardCacheTTL).Err(); err != nil {
				s.logger.Warn("dashboard cache write failed", zap.Error(err))
			}
		}
	}
	return stats, nil
}

// InvalidateDashboard drops the cached dashboard payload.
func (s *AnalyticsService) InvalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, dashboardCacheKey).Err(); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

// Full computes the detailed analytics payload. SLA compliance is the share
// of resolved tickets that met their due date; with nothing resolved yet it
// reports 100.
func (s *AnalyticsService) Full(ctx context.Context, trendDays int) (*FullAnalytics, error) {
	if trendDays <= 0 {
		trendDays = 30
	}

	statusCounts, err := s.tickets.StatusCounts(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	priorityCounts, err := s.tickets.PriorityCounts(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	categoryCounts, err := s.tickets.CategoryCounts(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	dailyCounts, err := s.tickets.DailyCounts(ctx, trendDays)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	avgResolution, err := s.tickets.AverageResolutionMinutes(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	slaStats, err := s.tickets.ResolvedSLAStats(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	emailStats, err := s.emails.Stats(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	compliance := 100.0
	if slaStats.ResolvedTotal > 0 {
		compliance = float64(slaStats.WithinSLA) / float64(slaStats.ResolvedTotal) * 100
	}

	return &FullAnalytics{
		StatusCounts:             statusCounts,
		PriorityCounts:           priorityCounts,
		CategoryCounts:           categoryCounts,
		DailyCounts:              dailyCounts,
		AverageResolutionMinutes: avgResolution,
		SLACompliancePercent:     compliance,
		EmailStats:               emailStats,
	}, nil
}

// ForUser summarizes one user's created and assigned ticket counts.
func (s *AnalyticsService) ForUser(ctx context.Context, userID int64) (*UserAnalytics, error) {
	_, created, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{CreatedBy: &userID, Limit: 1})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	_, assigned, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{AssignedTo: &userID, Limit: 1})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &UserAnalytics{Created: created, Assigned: assigned}, nil
}

// Categories returns the per-module ticket breakdown including empty modules.
func (s *AnalyticsService) Categories(ctx context.Context) ([]CategorySummary, error) {
	counts, err := s.tickets.CategoryCounts(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	result := make([]CategorySummary, 0, len(domain.AllCategories))
	for _, category := range domain.AllCategories {
		result = append(result, CategorySummary{
			Category:    string(category),
			Description: domain.CategoryDescription(category),
			Count:       counts[string(category)],
		})
	}
	return result, nil
}
