package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
)

// AdminService defines the engine methods the admin handler requires.
type AdminService interface {
	SetMarketCreator(ctx context.Context, caller, agent domain.AccountID) error
	SetResolverOracle(ctx context.Context, caller, agent domain.AccountID) error
	Deposit(ctx context.Context, caller, account domain.AccountID, amount uint64) error
	Config(ctx context.Context) (domain.TrustedAgents, error)
	GetBalance(ctx context.Context, account domain.AccountID) (uint64, error)
}

// AdminHandler serves agent configuration and funding endpoints.
type AdminHandler struct {
	admin  AdminService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		logger: logger,
	}
}

// setAgentRequest is the body for both agent configuration endpoints.
type setAgentRequest struct {
	Agent string `json:"agent"`
}

// SetMarketCreator configures the trusted market creator agent.
// POST /api/admin/market-creator
func (h *AdminHandler) SetMarketCreator(w http.ResponseWriter, r *http.Request) {
	h.setAgent(w, r, h.admin.SetMarketCreator)
}

// SetResolverOracle configures the trusted resolver oracle agent.
// POST /api/admin/resolver-oracle
func (h *AdminHandler) SetResolverOracle(w http.ResponseWriter, r *http.Request) {
	h.setAgent(w, r, h.admin.SetResolverOracle)
}

func (h *AdminHandler) setAgent(w http.ResponseWriter, r *http.Request, set func(context.Context, domain.AccountID, domain.AccountID) error) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req setAgentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	agent, err := domain.ParseAccountID(req.Agent)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed agent address")
		return
	}

	if err := set(r.Context(), caller, agent); err != nil {
		writeDomainError(w, r, h.logger, err, "failed to configure agent")
		return
	}

	agents, err := h.admin.Config(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to load config")
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

// GetConfig returns the configured trusted agents.
// GET /api/config
func (h *AdminHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	agents, err := h.admin.Config(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to load config")
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

// depositRequest is the body for admin-credited deposits.
type depositRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// Deposit credits an account's balance. Admin only.
// POST /api/admin/deposits
func (h *AdminHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	account, err := domain.ParseAccountID(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed account address")
		return
	}

	if err := h.admin.Deposit(r.Context(), caller, account, req.Amount); err != nil {
		writeDomainError(w, r, h.logger, err, "failed to deposit")
		return
	}

	balance, err := h.admin.GetBalance(r.Context(), account)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to load balance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"balance": balance,
	})
}

// GetBalance returns an account's spendable balance.
// GET /api/accounts/{account}/balance
func (h *AdminHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, err := domain.ParseAccountID(r.PathValue("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed account address")
		return
	}
	balance, err := h.admin.GetBalance(r.Context(), account)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to load balance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"balance": balance,
	})
}
