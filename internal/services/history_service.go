// Package services – HistoryService
//
// This file implements the HistoryService, which stores and pages through a
// user's chat exchanges. Exchanges are insert-only and listed newest first.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/repo"
	"github.com/tbourn/go-chat-relay/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HistoryService persists and lists chat exchanges.
type HistoryService struct {
	DB *gorm.DB
}

// NewHistoryService constructs a HistoryService over db.
func NewHistoryService(db *gorm.DB) *HistoryService {
	return &HistoryService{DB: db}
}

// SaveExchange inserts ex.
func (s *HistoryService) SaveExchange(ctx context.Context, ex *domain.ChatExchange) error {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "SaveExchange",
		trace.WithAttributes(
			attribute.String("user.id", ex.UserID),
			attribute.String("exchange.id", ex.ID),
		),
	)
	defer span.End()

	return repo.CreateExchange(ctx, s.DB, ex)
}

// Get returns exchange id if it belongs to userID, else ErrExchangeNotFound.
func (s *HistoryService) Get(ctx context.Context, userID, id string) (*domain.ChatExchange, error) {
	ex, err := repo.GetExchange(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrExchangeNotFound
		}
		return nil, err
	}
	if ex.UserID != userID {
		return nil, ErrExchangeNotFound
	}
	return ex, nil
}

// ListPage returns a page of userID's exchanges, newest first, and the total
// count. Out-of-range values are bounded by utils.NewPage.
func (s *HistoryService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.ChatExchange, int64, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	pg := utils.NewPage(page, pageSize)

	total, err := repo.CountExchanges(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ChatExchange{}, 0, nil
	}

	items, err := repo.ListExchangesPage(ctx, s.DB, userID, pg.Offset(), pg.Size)
	return items, total, err
}

// Stats returns the exchange count and newest timestamp for ETag
// computation.
func (s *HistoryService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.ExchangeStats(ctx, s.DB, userID)
}
