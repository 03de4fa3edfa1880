package service

import (
	"context"
	"fmt"

	"custodial-deposit-ledger/internal/core/domain"
	"custodial-deposit-ledger/internal/core/ports"
	"custodial-deposit-ledger/pkg/apperror"
)

// ReportingServiceImpl implements ports.ReportingService. Read side only; it
// queries repositories directly and never opens a transaction.
type ReportingServiceImpl struct {
	positionRepo ports.PositionRepository
	certRepo     ports.CertificateRepository
	eventRepo    ports.EventRepository
	paramsRepo   ports.ParamsRepository
	clock        ports.Clock
}

// NewReportingService creates a new ReportingServiceImpl.
func NewReportingService(
	positionRepo ports.PositionRepository,
	certRepo ports.CertificateRepository,
	eventRepo ports.EventRepository,
	paramsRepo ports.ParamsRepository,
	clock ports.Clock,
) *ReportingServiceImpl {
	return &ReportingServiceImpl{
		positionRepo: positionRepo,
		certRepo:     certRepo,
		eventRepo:    eventRepo,
		paramsRepo:   paramsRepo,
		clock:        clock,
	}
}

// GetPosition returns a position with its holder and live accrual figures.
func (s *ReportingServiceImpl) GetPosition(ctx context.Context, id int64) (*ports.PositionDetail, error) {
	position, err := s.positionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get position: %w", err))
	}
	if position == nil {
		return nil, apperror.ErrNotFound("Position")
	}

	params, err := s.paramsRepo.Get(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get params: %w", err))
	}

	detail, err := s.buildDetail(ctx, *position, params.RateBps)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ListPositions returns positions matching the filter, newest first, with
// holder and accrual figures attached.
func (s *ReportingServiceImpl) ListPositions(ctx context.Context, listParams ports.PositionListParams) ([]ports.PositionDetail, int64, error) {
	positions, total, err := s.positionRepo.List(ctx, listParams)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list positions: %w", err))
	}

	params, err := s.paramsRepo.Get(ctx)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("get params: %w", err))
	}

	details := make([]ports.PositionDetail, 0, len(positions))
	for _, position := range positions {
		detail, err := s.buildDetail(ctx, position, params.RateBps)
		if err != nil {
			return nil, 0, err
		}
		details = append(details, *detail)
	}
	return details, total, nil
}

// ListEvents returns audit trail entries matching the filter, newest first.
func (s *ReportingServiceImpl) ListEvents(ctx context.Context, params ports.EventListParams) ([]domain.LedgerEvent, int64, error) {
	events, total, err := s.eventRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list events: %w", err))
	}
	return events, total, nil
}

// Stats returns aggregate ledger figures.
func (s *ReportingServiceImpl) Stats(ctx context.Context) (*ports.LedgerStats, error) {
	stats, err := s.positionRepo.Stats(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get stats: %w", err))
	}
	return stats, nil
}

// buildDetail attaches holder and accrual to a position. Closed positions
// have no certificate and accrue nothing.
func (s *ReportingServiceImpl) buildDetail(ctx context.Context, position domain.Position, rateBps int32) (*ports.PositionDetail, error) {
	detail := &ports.PositionDetail{Position: position}
	if !position.Active {
		return detail, nil
	}

	cert, err := s.certRepo.GetByID(ctx, position.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get certificate: %w", err))
	}
	if cert != nil {
		holder := cert.Holder
		detail.Holder = &holder
	}

	interest, err := domain.AccruedInterest(position.Principal, rateBps, position.ElapsedSeconds(s.clock.Now()))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("compute interest: %w", err))
	}
	payout, err := domain.Payout(position.Principal, interest)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("compute payout: %w", err))
	}
	detail.AccruedInterest = interest
	detail.Payout = payout
	return detail, nil
}
