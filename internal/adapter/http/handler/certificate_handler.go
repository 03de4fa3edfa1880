package handler

import (
	"time"

	"custodial-deposit-ledger/internal/adapter/http/dto"
	"custodial-deposit-ledger/internal/adapter/http/middleware"
	"custodial-deposit-ledger/internal/core/domain"
	"custodial-deposit-ledger/internal/core/ports"
	"custodial-deposit-ledger/pkg/apperror"
	"custodial-deposit-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CertificateHandler handles certificate endpoints.
type CertificateHandler struct {
	registry ports.CertificateRegistry
}

// NewCertificateHandler creates a new CertificateHandler.
func NewCertificateHandler(registry ports.CertificateRegistry) *CertificateHandler {
	return &CertificateHandler{registry: registry}
}

// GetCertificate handles GET /api/v1/certificates/:id.
func (h *CertificateHandler) GetCertificate(c *gin.Context) {
	certID, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	cert, err := h.registry.Get(c.Request.Context(), certID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toCertificateResponse(cert))
}

// GetOwner handles GET /api/v1/certificates/:id/owner. Public, no auth.
func (h *CertificateHandler) GetOwner(c *gin.Context) {
	certID, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	holder, err := h.registry.OwnerOf(c.Request.Context(), certID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.OwnerResponse{
		CertificateID: certID,
		Holder:        holder.String(),
	})
}

// Transfer handles POST /api/v1/certificates/:id/transfer.
func (h *CertificateHandler) Transfer(c *gin.Context) {
	participantID, ok := c.Get(middleware.CtxParticipantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	certID, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	newHolder, err := uuid.Parse(req.NewHolder)
	if err != nil {
		response.Error(c, apperror.Validation("invalid new_holder"))
		return
	}

	cert, err := h.registry.Transfer(c.Request.Context(), ports.TransferRequest{
		CertificateID: certID,
		Caller:        participantID.(uuid.UUID),
		NewHolder:     newHolder,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toCertificateResponse(cert))
}

// Approve handles POST /api/v1/certificates/:id/approve.
func (h *CertificateHandler) Approve(c *gin.Context) {
	participantID, ok := c.Get(middleware.CtxParticipantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	certID, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	var delegate *uuid.UUID
	if req.Delegate != nil {
		id, err := uuid.Parse(*req.Delegate)
		if err != nil {
			response.Error(c, apperror.Validation("invalid delegate"))
			return
		}
		delegate = &id
	}

	cert, err := h.registry.Approve(c.Request.Context(), ports.ApproveRequest{
		CertificateID: certID,
		Caller:        participantID.(uuid.UUID),
		Delegate:      delegate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toCertificateResponse(cert))
}

func toCertificateResponse(cert *domain.Certificate) dto.CertificateResponse {
	resp := dto.CertificateResponse{
		ID:          cert.ID,
		Holder:      cert.Holder.String(),
		MetadataURI: cert.MetadataURI,
		IssuedAt:    cert.IssuedAt.Format(time.RFC3339),
		UpdatedAt:   cert.UpdatedAt.Format(time.RFC3339),
	}
	if cert.Delegate != nil {
		s := cert.Delegate.String()
		resp.Delegate = &s
	}
	return resp
}
