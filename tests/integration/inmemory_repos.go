package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"custodial-deposit-ledger/internal/core/domain"
	"custodial-deposit-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// memStore is the shared state behind the in-memory repositories. The
// transactor serializes transactions with a single mutex, which stands in
// for the params row lock, and memTx collects undo functions so a rolled
// back transaction leaves the store untouched.
type memStore struct {
	mu           sync.RWMutex
	participants map[uuid.UUID]domain.Participant
	accounts     map[uuid.UUID]domain.Account
	positions    map[int64]domain.Position
	certs        map[int64]domain.Certificate
	params       *domain.LedgerParams
	events       []domain.LedgerEvent
	idem         map[string]domain.IdempotencyLog
}

func newMemStore() *memStore {
	return &memStore{
		participants: make(map[uuid.UUID]domain.Participant),
		accounts:     make(map[uuid.UUID]domain.Account),
		positions:    make(map[int64]domain.Position),
		certs:        make(map[int64]domain.Certificate),
		idem:         make(map[string]domain.IdempotencyLog),
	}
}

// --- In-Memory Transactor ---

type inMemoryTransactor struct {
	txMu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.txMu.Lock()
	return &memTx{release: t.txMu.Unlock}, nil
}

// memTx serializes transactions and replays undo functions on rollback.
type memTx struct {
	noopTx
	release func()
	mu      sync.Mutex
	undos   []func()
	done    bool
}

func (t *memTx) onRollback(undo func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undos = append(t.undos, undo)
}

func (t *memTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undos = nil
	t.release()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	for i := len(t.undos) - 1; i >= 0; i-- {
		t.undos[i]()
	}
	t.undos = nil
	t.release()
	return nil
}

// registerUndo records an undo on the transaction when it is a memTx.
func registerUndo(tx pgx.Tx, undo func()) {
	if mt, ok := tx.(*memTx); ok {
		mt.onRollback(undo)
	}
}

// --- In-Memory Participant Repo ---

type inMemoryParticipantRepo struct {
	store *memStore
}

func (r *inMemoryParticipantRepo) Create(ctx context.Context, p *domain.Participant) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.participants {
		if existing.Username == p.Username {
			return fmt.Errorf("username already exists")
		}
	}
	r.store.participants[p.ID] = *p
	return nil
}

func (r *inMemoryParticipantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Participant, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.participants[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *inMemoryParticipantRepo) GetByUsername(ctx context.Context, username string) (*domain.Participant, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, p := range r.store.participants {
		if p.Username == username {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

// --- In-Memory Account Repo ---

type inMemoryAccountRepo struct {
	store *memStore
}

func (r *inMemoryAccountRepo) Create(ctx context.Context, a *domain.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.accounts[a.ParticipantID] = *a
	return nil
}

func (r *inMemoryAccountRepo) GetByParticipantID(ctx context.Context, participantID uuid.UUID) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.accounts[participantID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *inMemoryAccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, participantID uuid.UUID) (*domain.Account, error) {
	return r.GetByParticipantID(ctx, participantID)
}

func (r *inMemoryAccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, participantID uuid.UUID, newBalance int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.accounts[participantID]
	if !ok {
		return fmt.Errorf("account not found")
	}
	old := a.Balance
	registerUndo(tx, func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		acc := r.store.accounts[participantID]
		acc.Balance = old
		r.store.accounts[participantID] = acc
	})
	a.Balance = newBalance
	a.UpdatedAt = time.Now().UTC()
	r.store.accounts[participantID] = a
	return nil
}

// --- In-Memory Position Repo ---

type inMemoryPositionRepo struct {
	store *memStore
}

func (r *inMemoryPositionRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Position) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id := p.ID
	registerUndo(tx, func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		delete(r.store.positions, id)
	})
	r.store.positions[id] = *p
	return nil
}

func (r *inMemoryPositionRepo) GetByID(ctx context.Context, id int64) (*domain.Position, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.positions[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *inMemoryPositionRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Position, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryPositionRepo) Close(ctx context.Context, tx pgx.Tx, id int64, closedAt time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.positions[id]
	if !ok || !p.Active {
		return false, nil
	}
	registerUndo(tx, func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		pos := r.store.positions[id]
		pos.Active = true
		pos.ClosedAt = nil
		r.store.positions[id] = pos
	})
	p.Active = false
	p.ClosedAt = &closedAt
	r.store.positions[id] = p
	return true, nil
}

func (r *inMemoryPositionRepo) List(ctx context.Context, params ports.PositionListParams) ([]domain.Position, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.Position
	for _, p := range r.store.positions {
		if params.Active != nil && p.Active != *params.Active {
			continue
		}
		if params.Holder != nil {
			cert, ok := r.store.certs[p.ID]
			if !ok || cert.Holder != *params.Holder {
				continue
			}
		}
		result = append(result, p)
	}
	total := int64(len(result))

	// Simple pagination
	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.Position{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryPositionRepo) Stats(ctx context.Context) (*ports.LedgerStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	stats := &ports.LedgerStats{}
	for _, p := range r.store.positions {
		if p.Active {
			stats.OpenPositions++
			stats.PrincipalLocked += p.Principal
		} else {
			stats.ClosedPositions++
		}
	}
	for _, e := range r.store.events {
		if e.Kind == domain.EventKindWithdrawal && e.Amount != nil {
			stats.TotalPaidOut += *e.Amount
		}
	}
	return stats, nil
}

// --- In-Memory Certificate Repo ---

type inMemoryCertificateRepo struct {
	store *memStore
}

func (r *inMemoryCertificateRepo) Create(ctx context.Context, tx pgx.Tx, cert *domain.Certificate) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id := cert.ID
	registerUndo(tx, func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		delete(r.store.certs, id)
	})
	r.store.certs[id] = *cert
	return nil
}

func (r *inMemoryCertificateRepo) GetByID(ctx context.Context, id int64) (*domain.Certificate, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.certs[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *inMemoryCertificateRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Certificate, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryCertificateRepo) Delete(ctx context.Context, tx pgx.Tx, id int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.certs[id]
	if !ok {
		return false, nil
	}
	registerUndo(tx, func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		r.store.certs[id] = c
	})
	delete(r.store.certs, id)
	return true, nil
}

func (r *inMemoryCertificateRepo) UpdateHolder(ctx context.Context, tx pgx.Tx, id int64, newHolder uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.certs[id]
	if !ok {
		return fmt.Errorf("certificate not found")
	}
	old := c
	registerUndo(tx, func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		r.store.certs[id] = old
	})
	c.Holder = newHolder
	c.Delegate = nil
	c.UpdatedAt = time.Now().UTC()
	r.store.certs[id] = c
	return nil
}

func (r *inMemoryCertificateRepo) UpdateDelegate(ctx context.Context, tx pgx.Tx, id int64, delegate *uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.certs[id]
	if !ok {
		return fmt.Errorf("certificate not found")
	}
	old := c
	registerUndo(tx, func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		r.store.certs[id] = old
	})
	c.Delegate = delegate
	c.UpdatedAt = time.Now().UTC()
	r.store.certs[id] = c
	return nil
}

// --- In-Memory Params Repo ---

type inMemoryParamsRepo struct {
	store *memStore
}

func (r *inMemoryParamsRepo) Init(ctx context.Context, params *domain.LedgerParams) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.params != nil {
		return nil
	}
	cp := *params
	r.store.params = &cp
	return nil
}

func (r *inMemoryParamsRepo) Get(ctx context.Context) (*domain.LedgerParams, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if r.store.params == nil {
		return nil, fmt.Errorf("ledger params not initialized")
	}
	cp := *r.store.params
	return &cp, nil
}

func (r *inMemoryParamsRepo) GetForUpdate(ctx context.Context, tx pgx.Tx) (*domain.LedgerParams, error) {
	return r.Get(ctx)
}

func (r *inMemoryParamsRepo) AdvancePositionSequence(ctx context.Context, tx pgx.Tx) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.params == nil {
		return 0, fmt.Errorf("ledger params not initialized")
	}
	id := r.store.params.NextPositionID
	registerUndo(tx, func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		r.store.params.NextPositionID = id
	})
	r.store.params.NextPositionID = id + 1
	return id, nil
}

func (r *inMemoryParamsRepo) UpdateRate(ctx context.Context, tx pgx.Tx, newRateBps int32) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	old := r.store.params.RateBps
	registerUndo(tx, func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		r.store.params.RateBps = old
	})
	r.store.params.RateBps = newRateBps
	return nil
}

func (r *inMemoryParamsRepo) UpdateIssuerKey(ctx context.Context, tx pgx.Tx, issuerKey string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	old := r.store.params.IssuerKey
	registerUndo(tx, func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		r.store.params.IssuerKey = old
	})
	r.store.params.IssuerKey = issuerKey
	return nil
}

func (r *inMemoryParamsRepo) UpdateAdmin(ctx context.Context, tx pgx.Tx, newAdmin uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	old := r.store.params.AdminID
	registerUndo(tx, func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		r.store.params.AdminID = old
	})
	r.store.params.AdminID = newAdmin
	return nil
}

// --- In-Memory Event Repo ---

type inMemoryEventRepo struct {
	store *memStore
}

func (r *inMemoryEventRepo) Create(ctx context.Context, tx pgx.Tx, event *domain.LedgerEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id := event.ID
	registerUndo(tx, func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		for i := range r.store.events {
			if r.store.events[i].ID == id {
				r.store.events = append(r.store.events[:i], r.store.events[i+1:]...)
				break
			}
		}
	})
	r.store.events = append(r.store.events, *event)
	return nil
}

func (r *inMemoryEventRepo) List(ctx context.Context, params ports.EventListParams) ([]domain.LedgerEvent, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.LedgerEvent
	for _, e := range r.store.events {
		if params.Kind != nil && e.Kind != *params.Kind {
			continue
		}
		if params.PositionID != nil && (e.PositionID == nil || *e.PositionID != *params.PositionID) {
			continue
		}
		if params.From != nil && e.CreatedAt.Unix() < *params.From {
			continue
		}
		if params.To != nil && e.CreatedAt.Unix() > *params.To {
			continue
		}
		result = append(result, e)
	}
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.LedgerEvent{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- In-Memory Idempotency Repo ---

type inMemoryIdempotencyRepo struct {
	store *memStore
}

func (r *inMemoryIdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := log.Key
	registerUndo(tx, func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		delete(r.store.idem, key)
	})
	r.store.idem[key] = *log
	return nil
}

func (r *inMemoryIdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	l, ok := r.store.idem[key]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// --- Fake Clock ---

// fakeClock is a settable clock shared by the vault and reporting services,
// so tests can advance accrual time directly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
