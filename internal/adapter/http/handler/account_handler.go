package handler

import (
	"custodial-deposit-ledger/internal/adapter/http/dto"
	"custodial-deposit-ledger/internal/adapter/http/middleware"
	"custodial-deposit-ledger/internal/core/ports"
	"custodial-deposit-ledger/pkg/apperror"
	"custodial-deposit-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AccountHandler handles base-asset account endpoints.
type AccountHandler struct {
	accountSvc ports.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// GetBalance handles GET /api/v1/accounts/balance.
func (h *AccountHandler) GetBalance(c *gin.Context) {
	participantID, ok := c.Get(middleware.CtxParticipantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	account, err := h.accountSvc.Balance(c.Request.Context(), participantID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		ParticipantID: account.ParticipantID.String(),
		Balance:       account.Balance,
	})
}

// Topup handles POST /api/v1/accounts/topup.
func (h *AccountHandler) Topup(c *gin.Context) {
	participantID, ok := c.Get(middleware.CtxParticipantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	account, err := h.accountSvc.Topup(c.Request.Context(), participantID.(uuid.UUID), req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.BalanceResponse{
		ParticipantID: account.ParticipantID.String(),
		Balance:       account.Balance,
	})
}
