package service

import (
	"context"
	"fmt"

	"custodial-deposit-ledger/internal/core/domain"
	"custodial-deposit-ledger/internal/core/ports"
	"custodial-deposit-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// RegistryServiceImpl implements ports.CertificateRegistry. It owns the
// certificate-id -> holder mapping and only ever mints or burns when the
// vault engine presents the bound issuer key.
type RegistryServiceImpl struct {
	certRepo   ports.CertificateRepository
	paramsRepo ports.ParamsRepository
	eventRepo  ports.EventRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewRegistryService creates a new RegistryServiceImpl.
func NewRegistryService(
	certRepo ports.CertificateRepository,
	paramsRepo ports.ParamsRepository,
	eventRepo ports.EventRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *RegistryServiceImpl {
	return &RegistryServiceImpl{
		certRepo:   certRepo,
		paramsRepo: paramsRepo,
		eventRepo:  eventRepo,
		transactor: transactor,
		log:        log,
	}
}

// Mint creates a certificate inside the caller's transaction. Only the bound
// issuer may mint, and an id is never written twice.
func (s *RegistryServiceImpl) Mint(ctx context.Context, tx pgx.Tx, issuerKey string, cert *domain.Certificate) error {
	if err := s.checkIssuer(ctx, tx, issuerKey); err != nil {
		return err
	}

	existing, err := s.certRepo.GetForUpdate(ctx, tx, cert.ID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("check certificate: %w", err))
	}
	if existing != nil {
		return apperror.ErrDuplicateCertificate(cert.ID)
	}

	if err := s.certRepo.Create(ctx, tx, cert); err != nil {
		return apperror.InternalError(fmt.Errorf("create certificate: %w", err))
	}
	return nil
}

// Burn removes a certificate inside the caller's transaction. The id is
// retired permanently.
func (s *RegistryServiceImpl) Burn(ctx context.Context, tx pgx.Tx, issuerKey string, id int64) error {
	if err := s.checkIssuer(ctx, tx, issuerKey); err != nil {
		return err
	}

	deleted, err := s.certRepo.Delete(ctx, tx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("delete certificate: %w", err))
	}
	if !deleted {
		return apperror.ErrCertificateNotFound(id)
	}
	return nil
}

// HolderOf resolves ownership within an open transaction, locking the
// certificate row so the answer stays true until the transaction ends.
func (s *RegistryServiceImpl) HolderOf(ctx context.Context, tx pgx.Tx, id int64) (uuid.UUID, error) {
	cert, err := s.certRepo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return uuid.Nil, apperror.InternalError(fmt.Errorf("lock certificate: %w", err))
	}
	if cert == nil {
		return uuid.Nil, apperror.ErrCertificateNotFound(id)
	}
	return cert.Holder, nil
}

// OwnerOf is the public ownership lookup.
func (s *RegistryServiceImpl) OwnerOf(ctx context.Context, id int64) (uuid.UUID, error) {
	cert, err := s.certRepo.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, apperror.InternalError(fmt.Errorf("get certificate: %w", err))
	}
	if cert == nil {
		return uuid.Nil, apperror.ErrCertificateNotFound(id)
	}
	return cert.Holder, nil
}

// Get fetches a certificate by id.
func (s *RegistryServiceImpl) Get(ctx context.Context, id int64) (*domain.Certificate, error) {
	cert, err := s.certRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get certificate: %w", err))
	}
	if cert == nil {
		return nil, apperror.ErrCertificateNotFound(id)
	}
	return cert, nil
}

// Transfer reassigns a certificate to a new holder. Only the current holder
// or the approved delegate may transfer; the vault engine is not involved.
func (s *RegistryServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.Certificate, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	cert, err := s.certRepo.GetForUpdate(ctx, dbTx, req.CertificateID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock certificate: %w", err))
	}
	if cert == nil {
		return nil, apperror.ErrCertificateNotFound(req.CertificateID)
	}
	if !cert.CanTransfer(req.Caller) {
		return nil, apperror.ErrNotCertificateHolder()
	}

	if err := s.certRepo.UpdateHolder(ctx, dbTx, req.CertificateID, req.NewHolder); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update holder: %w", err))
	}

	event := newEvent(domain.EventKindTransfer)
	event.PositionID = &req.CertificateID
	event.Counterparty = &req.NewHolder
	if err := s.eventRepo.Create(ctx, dbTx, event); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record transfer event: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Int64("certificate_id", req.CertificateID).
		Str("from", cert.Holder.String()).
		Str("to", req.NewHolder.String()).
		Msg("certificate transferred")

	cert.Holder = req.NewHolder
	cert.Delegate = nil
	return cert, nil
}

// Approve sets (or clears, when Delegate is nil) the certificate's approved
// delegate. Only the current holder may approve.
func (s *RegistryServiceImpl) Approve(ctx context.Context, req ports.ApproveRequest) (*domain.Certificate, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	cert, err := s.certRepo.GetForUpdate(ctx, dbTx, req.CertificateID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock certificate: %w", err))
	}
	if cert == nil {
		return nil, apperror.ErrCertificateNotFound(req.CertificateID)
	}
	if cert.Holder != req.Caller {
		return nil, apperror.ErrNotCertificateHolder()
	}

	if err := s.certRepo.UpdateDelegate(ctx, dbTx, req.CertificateID, req.Delegate); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update delegate: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	cert.Delegate = req.Delegate
	return cert, nil
}

// BindIssuer rebinds the sole authorized minter/burner. This is the
// registry's trust-boundary operation: admin-only and always event-logged.
func (s *RegistryServiceImpl) BindIssuer(ctx context.Context, caller uuid.UUID, issuerKey string) error {
	if issuerKey == "" {
		return apperror.Validation("issuer key must not be empty")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	params, err := s.paramsRepo.GetForUpdate(ctx, dbTx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock params: %w", err))
	}
	if caller != params.AdminID {
		return apperror.ErrUnauthorized()
	}

	if err := s.paramsRepo.UpdateIssuerKey(ctx, dbTx, issuerKey); err != nil {
		return apperror.InternalError(fmt.Errorf("update issuer key: %w", err))
	}

	details := fmt.Sprintf("issuer rebound from %q to %q", params.IssuerKey, issuerKey)
	event := newEvent(domain.EventKindIssuerRebind)
	event.Counterparty = &caller
	event.Details = &details
	if err := s.eventRepo.Create(ctx, dbTx, event); err != nil {
		return apperror.InternalError(fmt.Errorf("record rebind event: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Warn().
		Str("old_issuer", params.IssuerKey).
		Str("new_issuer", issuerKey).
		Str("admin", caller.String()).
		Msg("authorized issuer rebound")

	return nil
}

// checkIssuer verifies the presented key against the binding, locking the
// params row so the binding cannot change mid-operation.
func (s *RegistryServiceImpl) checkIssuer(ctx context.Context, tx pgx.Tx, issuerKey string) error {
	params, err := s.paramsRepo.GetForUpdate(ctx, tx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock params: %w", err))
	}
	if issuerKey == "" || issuerKey != params.IssuerKey {
		return apperror.ErrUnauthorized()
	}
	return nil
}
