package cart

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-promo/internal/common"
	"github.com/noah-isme/toko-promo/internal/promotion"
)

const codeEvaluationTimeout = "EVALUATION_TIMEOUT"

// Handler wires the pricing service to HTTP.
type Handler struct {
	Svc          *Service
	MaxBodyBytes int64
}

type whatIfRequest struct {
	promotion.Request
	Promotions []promotion.Promotion `json:"promotions"`
}

// Price prices a cart against the tenant's live catalog.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "pricing service not configured", nil)
		return
	}
	var req promotion.Request
	if err := common.DecodeJSON(w, r, h.MaxBodyBytes, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	res, err := h.Svc.Price(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeResult(w, r, res)
}

// Evaluate prices a cart against promotions supplied in the body. Nothing is
// read from or written to the catalog.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "pricing service not configured", nil)
		return
	}
	var req whatIfRequest
	if err := common.DecodeJSON(w, r, h.MaxBodyBytes, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if messages := ruleProblems(req.Promotions); len(messages) > 0 {
		common.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"data": PriceResponse{
				Success:           false,
				Outcome:           promotion.OutcomeInvalid,
				Messages:          messages,
				Currency:          req.Currency,
				CartItems:         []LineResponse{},
				AppliedPromotions: []PromotionSummaryResponse{},
			},
		})
		return
	}
	res, err := h.Svc.Evaluate(r.Context(), req.Request, req.Promotions)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeResult(w, r, res)
}

func ruleProblems(promos []promotion.Promotion) []string {
	var out []string
	for _, p := range promos {
		if len(p.Rules) == 0 {
			out = append(out, fmt.Sprintf("promotion %q has no rules", p.Name))
		}
		for i, rule := range p.Rules {
			if err := rule.Validate(); err != nil {
				out = append(out, fmt.Sprintf("promotion %q rule %d: %v", p.Name, i, err))
			}
		}
	}
	return out
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res promotion.Result) {
	status := http.StatusOK
	switch res.Outcome {
	case promotion.OutcomeInvalid:
		status = http.StatusUnprocessableEntity
	case promotion.OutcomeFailed:
		status = http.StatusInternalServerError
	}
	withTrace, _ := strconv.ParseBool(r.URL.Query().Get("trace"))
	common.JSON(w, status, map[string]any{"data": NewPriceResponse(res, withTrace)})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrTenantRequired):
		common.JSONError(w, http.StatusBadRequest, common.CodeTenantRequired, "tenant is required", nil)
	case errors.Is(err, ErrCatalogUnavailable):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("load promotion catalog")
		common.JSONError(w, http.StatusServiceUnavailable, common.CodeCatalogUnavailable, "promotion catalog unavailable", nil)
	case errors.Is(err, ErrEvaluationTimeout):
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("promotion evaluation timed out")
		common.JSONError(w, http.StatusServiceUnavailable, codeEvaluationTimeout, "promotion evaluation timed out", nil)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("price cart")
		common.WriteError(w, err)
	}
}
