package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/echolabs/echocore/internal/services"
	"github.com/echolabs/echocore/internal/utils"
)

type BillingHandler struct {
	svc services.BillingService
}

func NewBillingHandler(svc services.BillingService) *BillingHandler {
	return &BillingHandler{svc: svc}
}

func (h *BillingHandler) Balance(c *gin.Context) {
	orgID, ok := paramUint(c, "organization_id")
	if !ok {
		return
	}

	info, err := h.svc.Balance(c.Request.Context(), orgID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

type AddPaymentRequest struct {
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Reference string  `json:"reference"`
}

func (h *BillingHandler) AddPayment(c *gin.Context) {
	orgID, ok := paramUint(c, "organization_id")
	if !ok {
		return
	}

	var req AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "BillingHandler.AddPayment", "invalid request body", err))
		return
	}

	info, err := h.svc.AddPayment(c.Request.Context(), orgID, req.Amount, req.Method, req.Reference)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}
