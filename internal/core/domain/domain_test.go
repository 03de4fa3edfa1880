package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPosition_ElapsedSeconds(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &Position{ID: 1, Principal: 1_000, StartTime: start, Active: true}

	assert.Equal(t, int64(0), p.ElapsedSeconds(start))
	assert.Equal(t, int64(90), p.ElapsedSeconds(start.Add(90*time.Second)))
}

func TestPosition_ElapsedSeconds_ClockRegression(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &Position{ID: 1, Principal: 1_000, StartTime: start, Active: true}

	// A clock reading before StartTime clamps to zero elapsed time.
	assert.Equal(t, int64(0), p.ElapsedSeconds(start.Add(-time.Hour)))
}

func TestCertificate_CanTransfer(t *testing.T) {
	holder := uuid.New()
	delegate := uuid.New()
	stranger := uuid.New()

	cert := &Certificate{ID: 1, Holder: holder}
	assert.True(t, cert.CanTransfer(holder))
	assert.False(t, cert.CanTransfer(stranger))

	cert.Delegate = &delegate
	assert.True(t, cert.CanTransfer(delegate))
	assert.False(t, cert.CanTransfer(stranger))
}

func TestParticipant_IsActive(t *testing.T) {
	p := &Participant{Status: ParticipantStatusActive}
	assert.True(t, p.IsActive())

	p.Status = ParticipantStatusSuspended
	assert.False(t, p.IsActive())
}
