package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"autoreply.app/relay/internal/http/dto"
	"autoreply.app/relay/internal/service"
)

type MerchantHandler struct {
	service service.MerchantService
}

func NewMerchantHandler(service service.MerchantService) *MerchantHandler {
	return &MerchantHandler{service: service}
}

func (h *MerchantHandler) Onboard(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.OnboardMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	merchant, err := h.service.Onboard(ctx, service.OnboardParams{
		MerchantID:     req.MerchantID,
		ChannelID:      req.ChannelID,
		AIConfig:       req.AIConfig,
		Profile:        req.Profile,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to onboard merchant", "error", err, "merchant_id", req.MerchantID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to onboard merchant"})
		return
	}

	c.JSON(http.StatusCreated, dto.MerchantResponse{
		ID:               merchant.ID,
		ChannelID:        merchant.ChannelID,
		AutoReplyEnabled: merchant.AutoReplyEnabled,
	})
}

func (h *MerchantHandler) TopUp(c *gin.Context) {
	ctx := c.Request.Context()
	merchantID := c.Param("id")

	var req dto.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.service.TopUp(ctx, merchantID, req.Amount)
	if err != nil {
		h.writeError(c, err, merchantID, "failed to top up balance")
		return
	}

	c.JSON(http.StatusOK, balanceResponse(view))
}

func (h *MerchantHandler) Balance(c *gin.Context) {
	merchantID := c.Param("id")

	view, err := h.service.Balance(c.Request.Context(), merchantID)
	if err != nil {
		h.writeError(c, err, merchantID, "failed to load balance")
		return
	}

	c.JSON(http.StatusOK, balanceResponse(view))
}

func (h *MerchantHandler) writeError(c *gin.Context, err error, merchantID, msg string) {
	switch {
	case errors.Is(err, service.ErrMerchantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "merchant not found"})
	case errors.Is(err, service.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.ErrorContext(c.Request.Context(), msg, "error", err, "merchant_id", merchantID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func balanceResponse(view *service.BalanceView) dto.BalanceResponse {
	resp := dto.BalanceResponse{
		MerchantID:       view.MerchantID,
		Balance:          view.Balance,
		AutoReplyEnabled: view.AutoReplyEnabled,
		Entries:          make([]dto.LedgerEntryResponse, 0, len(view.Entries)),
	}
	for _, e := range view.Entries {
		resp.Entries = append(resp.Entries, dto.LedgerEntryResponse{
			ID:               e.ID,
			Amount:           e.Amount,
			ResultingBalance: e.ResultingBalance,
			Reason:           e.Reason,
			CreatedAt:        e.CreatedAt,
		})
	}
	return resp
}
