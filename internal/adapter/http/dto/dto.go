package dto

// RegisterRequest is the request body for participant registration.
type RegisterRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password    string `json:"password" binding:"required,min=8,max=128"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=100"`
}

// LoginRequest is the request body for participant login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	ParticipantID string `json:"participant_id"`
	Username      string `json:"username"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// DepositRequest is the request body for opening a position.
type DepositRequest struct {
	ReferenceID string  `json:"reference_id" binding:"required,max=100,safe_id"`
	Amount      int64   `json:"amount" binding:"required,gt=0"`
	MetadataURI *string `json:"metadata_uri,omitempty" binding:"omitempty,safe_url"`
}

// TransferRequest is the request body for certificate reassignment.
type TransferRequest struct {
	NewHolder string `json:"new_holder" binding:"required,uuid"`
}

// ApproveRequest is the request body for delegate approval. A null delegate
// clears any existing approval.
type ApproveRequest struct {
	Delegate *string `json:"delegate" binding:"omitempty,uuid"`
}

// TopupRequest is the request body for account topup.
type TopupRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// SetRateRequest is the request body for a rate change. Pointer so a zero
// rate passes the required check.
type SetRateRequest struct {
	RateBps *int32 `json:"rate_bps" binding:"required"`
}

// BindIssuerRequest is the request body for rebinding the registry issuer.
type BindIssuerRequest struct {
	IssuerKey string `json:"issuer_key" binding:"required,min=1,max=100,safe_id"`
}

// TransferAdminRequest is the request body for the admin handoff.
type TransferAdminRequest struct {
	NewAdmin string `json:"new_admin" binding:"required,uuid"`
}

// FundReserveRequest is the request body for topping up the reserve.
type FundReserveRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// PositionResponse is the wire form of a deposit position.
type PositionResponse struct {
	ID        int64   `json:"id"`
	Principal int64   `json:"principal"`
	StartTime string  `json:"start_time"`
	Active    bool    `json:"active"`
	CreatedAt string  `json:"created_at"`
	ClosedAt  *string `json:"closed_at,omitempty"`
}

// CertificateResponse is the wire form of a certificate.
type CertificateResponse struct {
	ID          int64   `json:"id"`
	Holder      string  `json:"holder"`
	Delegate    *string `json:"delegate,omitempty"`
	MetadataURI *string `json:"metadata_uri,omitempty"`
	IssuedAt    string  `json:"issued_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// DepositResponse is the response body for a successful deposit.
type DepositResponse struct {
	Position    PositionResponse    `json:"position"`
	Certificate CertificateResponse `json:"certificate"`
}

// WithdrawResponse is the response body for a successful withdrawal.
type WithdrawResponse struct {
	PositionID int64  `json:"position_id"`
	Principal  int64  `json:"principal"`
	Interest   int64  `json:"interest"`
	Payout     int64  `json:"payout"`
	ClosedAt   string `json:"closed_at"`
}

// PositionDetailResponse pairs a position with holder and live accrual.
type PositionDetailResponse struct {
	Position        PositionResponse `json:"position"`
	Holder          *string          `json:"holder,omitempty"`
	AccruedInterest int64            `json:"accrued_interest"`
	Payout          int64            `json:"payout"`
}

// PositionListResponse wraps a paginated position list.
type PositionListResponse struct {
	Items      []PositionDetailResponse `json:"items"`
	Total      int64                    `json:"total"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"page_size"`
	TotalPages int                      `json:"total_pages"`
}

// AccrualResponse is the response for a live accrual query.
type AccrualResponse struct {
	PositionID      int64 `json:"position_id"`
	AccruedInterest int64 `json:"accrued_interest"`
	Payout          int64 `json:"payout"`
}

// OwnerResponse is the response for the public ownership lookup.
type OwnerResponse struct {
	CertificateID int64  `json:"certificate_id"`
	Holder        string `json:"holder"`
}

// BalanceResponse is the response for an account balance query.
type BalanceResponse struct {
	ParticipantID string `json:"participant_id"`
	Balance       int64  `json:"balance"`
}

// RateResponse is the response for the current rate query.
type RateResponse struct {
	RateBps int32 `json:"rate_bps"`
}

// RateChangeResponse is the response for an applied rate change.
type RateChangeResponse struct {
	OldRateBps int32 `json:"old_rate_bps"`
	NewRateBps int32 `json:"new_rate_bps"`
}

// StatsResponse is the response for ledger-wide statistics.
type StatsResponse struct {
	OpenPositions   int64 `json:"open_positions"`
	ClosedPositions int64 `json:"closed_positions"`
	PrincipalLocked int64 `json:"principal_locked"`
	TotalPaidOut    int64 `json:"total_paid_out"`
}

// EventResponse is the wire form of a ledger event.
type EventResponse struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	PositionID   *int64  `json:"position_id,omitempty"`
	Counterparty *string `json:"counterparty,omitempty"`
	Amount       *int64  `json:"amount,omitempty"`
	OldRateBps   *int32  `json:"old_rate_bps,omitempty"`
	NewRateBps   *int32  `json:"new_rate_bps,omitempty"`
	Details      *string `json:"details,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// EventListResponse wraps a paginated event list.
type EventListResponse struct {
	Items      []EventResponse `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}
