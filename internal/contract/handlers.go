package contract

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/coverledger/coverledger/internal/ledger"
	"github.com/coverledger/coverledger/internal/money"
	"github.com/coverledger/coverledger/internal/pagination"
	"github.com/coverledger/coverledger/internal/treasury"
	"github.com/coverledger/coverledger/internal/validation"
)

// Handler provides HTTP endpoints for the underwriting ledger.
type Handler struct {
	service  *Service
	store    ledger.Store
	treasury *treasury.Treasury
}

// NewHandler creates a new contract handler.
func NewHandler(service *Service, store ledger.Store, tr *treasury.Treasury) *Handler {
	return &Handler{service: service, store: store, treasury: tr}
}

// RegisterRoutes sets up public (read-only) routes plus quoting.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/policies/:id", h.GetPolicy)
	r.GET("/policies/:id/claims", h.ListPolicyClaims)
	r.GET("/claims/:id", h.GetClaim)
	r.GET("/accounts/:address/policies", h.ListAccountPolicies)
	r.GET("/accounts/:address/profile", h.GetProfile)
	r.GET("/accounts/:address/balance", h.GetBalance)
	r.POST("/quotes", h.QuotePremium)
}

// RegisterProtectedRoutes sets up the auth-required workflow routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/policies", h.CreatePolicy)
	r.POST("/policies/:id/claims", h.SubmitClaim)
}

// RegisterAdminRoutes sets up admin-only routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/pause", h.Pause)
	r.POST("/resume", h.Resume)
	r.POST("/claims/:id/process", h.ProcessClaim)
	r.POST("/deposits", h.Deposit)
	r.POST("/accounts/:address/blacklist", h.Blacklist)
	r.GET("/counters", h.Counters)
}

// respondError maps workflow errors onto the API failure taxonomy.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, ErrPaused):
		status = http.StatusServiceUnavailable
		code = "paused"
	case errors.Is(err, ErrInvalidAmount):
		status = http.StatusBadRequest
		code = "invalid_amount"
	case errors.Is(err, ErrInvalidRiskScore):
		status = http.StatusBadRequest
		code = "invalid_risk_score"
	case errors.Is(err, ErrNotPolicyHolder):
		status = http.StatusForbidden
		code = "not_policy_holder"
	case errors.Is(err, ErrPolicyExpired):
		status = http.StatusGone
		code = "policy_expired"
	case errors.Is(err, ledger.ErrPolicyNotFound), errors.Is(err, ledger.ErrClaimNotFound),
		errors.Is(err, ledger.ErrProfileNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, ledger.ErrClaimProcessed):
		status = http.StatusConflict
		code = "claim_processed"
	case errors.Is(err, treasury.ErrInsufficientFunds), errors.Is(err, ledger.ErrInsufficientReserve):
		status = http.StatusPaymentRequired
		code = "insufficient_funds"
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

func limitQuery(c *gin.Context) int {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	return limit
}

// GetPolicy handles GET /v1/policies/:id
func (h *Handler) GetPolicy(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	policy, err := h.store.GetPolicy(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"policy": policy})
}

// GetClaim handles GET /v1/claims/:id
func (h *Handler) GetClaim(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	claim, err := h.store.GetClaim(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claim": claim})
}

// ListPolicyClaims handles GET /v1/policies/:id/claims
func (h *Handler) ListPolicyClaims(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if _, err := h.store.GetPolicy(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	limit := limitQuery(c)
	before, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "cursor is not valid",
		})
		return
	}

	claims, err := h.store.ListClaimsByPolicy(c.Request.Context(), id, before, limit+1)
	if err != nil {
		respondError(c, err)
		return
	}
	claims, next, hasMore := pagination.ComputePage(claims, limit, func(cl *ledger.Claim) uint64 { return cl.ID })
	c.JSON(http.StatusOK, gin.H{
		"claims":     claims,
		"count":      len(claims),
		"nextCursor": next,
		"hasMore":    hasMore,
	})
}

// ListAccountPolicies handles GET /v1/accounts/:address/policies
func (h *Handler) ListAccountPolicies(c *gin.Context) {
	holder := common.HexToAddress(c.Param("address"))

	limit := limitQuery(c)
	before, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "cursor is not valid",
		})
		return
	}

	policies, err := h.store.ListPoliciesByHolder(c.Request.Context(), holder, before, limit+1)
	if err != nil {
		respondError(c, err)
		return
	}
	policies, next, hasMore := pagination.ComputePage(policies, limit, func(p *ledger.Policy) uint64 { return p.ID })
	c.JSON(http.StatusOK, gin.H{
		"policies":   policies,
		"count":      len(policies),
		"nextCursor": next,
		"hasMore":    hasMore,
	})
}

// GetProfile handles GET /v1/accounts/:address/profile
func (h *Handler) GetProfile(c *gin.Context) {
	account := common.HexToAddress(c.Param("address"))

	profile, err := h.store.GetProfile(c.Request.Context(), account)
	if err == ledger.ErrProfileNotFound {
		// Profiles are created lazily; absent means first-time defaults.
		profile = ledger.NewProfile(account)
	} else if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// GetBalance handles GET /v1/accounts/:address/balance
func (h *Handler) GetBalance(c *gin.Context) {
	account := common.HexToAddress(c.Param("address"))
	balance := h.treasury.BalanceOf(account)
	c.JSON(http.StatusOK, gin.H{
		"account":   account.Hex(),
		"balance":   balance,
		"formatted": money.Format(balance),
	})
}

// QuoteRequest is the body for POST /v1/quotes.
type QuoteRequest struct {
	Account        string `json:"account"`
	CoverageAmount uint64 `json:"coverageAmount"`
	Category       string `json:"category"`
}

// QuotePremium handles POST /v1/quotes
func (h *Handler) QuotePremium(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "coverageAmount and category are required",
		})
		return
	}
	if req.Account != "" && !validation.IsValidAddress(req.Account) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": "account must be a valid address",
		})
		return
	}
	if !validation.ValidCategory(req.Category) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "category must be a short lowercase tag",
		})
		return
	}

	quote, err := h.service.QuotePremium(c.Request.Context(), common.HexToAddress(req.Account), req.CoverageAmount, req.Category)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": quote})
}

// CreatePolicyRequest is the body for POST /v1/policies.
type CreatePolicyRequest struct {
	CoverageAmount uint64 `json:"coverageAmount"`
	Category       string `json:"category"`
	EvidenceDigest string `json:"evidenceDigest"`
}

// CreatePolicy handles POST /v1/policies
func (h *Handler) CreatePolicy(c *gin.Context) {
	caller := c.GetString("authAccount")
	if caller == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "authentication required",
		})
		return
	}

	var req CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "coverageAmount and category are required",
		})
		return
	}
	if !validation.ValidCategory(req.Category) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "category must be a short lowercase tag",
		})
		return
	}
	if req.EvidenceDigest != "" && !validation.IsValidDigest(req.EvidenceDigest) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "evidenceDigest must be a 32-byte hex digest",
		})
		return
	}

	policy, err := h.service.CreatePolicy(c.Request.Context(),
		common.HexToAddress(caller), req.CoverageAmount, req.Category,
		common.HexToHash(req.EvidenceDigest))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"policy": policy})
}

// SubmitClaimRequest is the body for POST /v1/policies/:id/claims.
type SubmitClaimRequest struct {
	Amount         uint64 `json:"amount"`
	Description    string `json:"description"`
	EvidenceDigest string `json:"evidenceDigest"`
}

// SubmitClaim handles POST /v1/policies/:id/claims
func (h *Handler) SubmitClaim(c *gin.Context) {
	caller := c.GetString("authAccount")
	if caller == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "authentication required",
		})
		return
	}

	policyID, ok := idParam(c)
	if !ok {
		return
	}

	var req SubmitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "amount is required",
		})
		return
	}
	if req.EvidenceDigest != "" && !validation.IsValidDigest(req.EvidenceDigest) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "evidenceDigest must be a 32-byte hex digest",
		})
		return
	}

	claim, err := h.service.SubmitClaim(c.Request.Context(),
		common.HexToAddress(caller), policyID, req.Amount,
		validation.SanitizeString(req.Description, validation.MaxDescriptionLength),
		common.HexToHash(req.EvidenceDigest))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"claim": claim})
}

// Pause handles POST /v1/admin/pause
func (h *Handler) Pause(c *gin.Context) {
	if err := h.service.Pause(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "contract paused"})
}

// Resume handles POST /v1/admin/resume
func (h *Handler) Resume(c *gin.Context) {
	if err := h.service.Resume(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "contract resumed"})
}

// ProcessClaim handles POST /v1/admin/claims/:id/process
func (h *Handler) ProcessClaim(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	claim, err := h.service.ProcessClaim(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	outcome := "denied"
	if claim.Approved {
		outcome = "paid"
	}
	c.JSON(http.StatusOK, gin.H{"claim": claim, "outcome": outcome})
}

// DepositRequest is the body for POST /v1/admin/deposits.
type DepositRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// Deposit handles POST /v1/admin/deposits, crediting an account so it
// can pay premiums.
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "account and a positive amount are required",
		})
		return
	}
	if !validation.IsValidAddress(req.Account) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": "account must be a valid address",
		})
		return
	}

	account := common.HexToAddress(req.Account)
	h.treasury.Credit(account, req.Amount)
	c.JSON(http.StatusOK, gin.H{
		"account": account.Hex(),
		"balance": h.treasury.BalanceOf(account),
	})
}

// BlacklistRequest is the body for POST /v1/admin/accounts/:address/blacklist.
type BlacklistRequest struct {
	Blacklisted     *bool   `json:"blacklisted"`
	ReputationScore *uint64 `json:"reputationScore"`
}

// Blacklist handles POST /v1/admin/accounts/:address/blacklist, the only
// write path for profile standing.
func (h *Handler) Blacklist(c *gin.Context) {
	account := common.HexToAddress(c.Param("address"))

	var req BlacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Blacklisted == nil && req.ReputationScore == nil) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "blacklisted or reputationScore is required",
		})
		return
	}

	profile, err := h.store.GetProfile(c.Request.Context(), account)
	if err == ledger.ErrProfileNotFound {
		profile = ledger.NewProfile(account)
	} else if err != nil {
		respondError(c, err)
		return
	}

	if req.Blacklisted != nil {
		profile.Blacklisted = *req.Blacklisted
	}
	if req.ReputationScore != nil {
		profile.ReputationScore = *req.ReputationScore
	}

	if err := h.store.PutProfile(c.Request.Context(), profile); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// Counters handles GET /v1/admin/counters
func (h *Handler) Counters(c *gin.Context) {
	counters, err := h.service.Counters(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"counters": counters,
		"custody":  h.treasury.CustodyBalance(),
	})
}
