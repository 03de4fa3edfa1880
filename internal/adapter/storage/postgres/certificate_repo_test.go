package postgres

import (
	"context"
	"testing"
	"time"

	"custodial-deposit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCertificate(id int64) *domain.Certificate {
	return &domain.Certificate{
		ID:        id,
		Holder:    uuid.New(),
		IssuedAt:  time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func certificateColumns() []string {
	return []string{"id", "holder", "delegate", "metadata_uri", "issued_at", "updated_at"}
}

func certificateRow(c *domain.Certificate) *pgxmock.Rows {
	return pgxmock.NewRows(certificateColumns()).AddRow(
		c.ID, c.Holder, c.Delegate, c.MetadataURI, c.IssuedAt, c.UpdatedAt,
	)
}

func TestCertificateRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCertificateRepo(mock)
	c := newTestCertificate(1)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO certificates").
		WithArgs(c.ID, c.Holder, c.Delegate, c.MetadataURI, c.IssuedAt, c.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, c)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCertificateRepo(mock)
	c := newTestCertificate(1)

	mock.ExpectQuery("SELECT .+ FROM certificates WHERE id").
		WithArgs(c.ID).
		WillReturnRows(certificateRow(c))

	result, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, c.Holder, result.Holder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCertificateRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM certificates WHERE id").
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows(certificateColumns()))

	result, err := repo.GetByID(context.Background(), 9)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepo_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCertificateRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM certificates").
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	deleted, err := repo.Delete(context.Background(), tx, 1)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepo_Delete_Missing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCertificateRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM certificates").
		WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	deleted, err := repo.Delete(context.Background(), tx, 9)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepo_UpdateHolder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCertificateRepo(mock)
	newHolder := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE certificates SET holder .+ delegate = NULL").
		WithArgs(newHolder, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateHolder(context.Background(), tx, 1, newHolder)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepo_UpdateDelegate_Clear(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCertificateRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE certificates SET delegate").
		WithArgs((*uuid.UUID)(nil), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateDelegate(context.Background(), tx, 1, nil)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
