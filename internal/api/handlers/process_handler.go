package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/echolabs/echocore/internal/services"
	"github.com/echolabs/echocore/internal/utils"
)

type ProcessHandler struct {
	svc services.ProcessService
}

func NewProcessHandler(svc services.ProcessService) *ProcessHandler {
	return &ProcessHandler{svc: svc}
}

// Trigger queues a processing run for one respondent attempt. The request
// is acknowledged once queued; the run itself happens on the worker pool.
func (h *ProcessHandler) Trigger(c *gin.Context) {
	orgID, ok := paramUint(c, "organization_id")
	if !ok {
		return
	}
	interviewID, ok := paramUint(c, "interview_id")
	if !ok {
		return
	}
	respondentHash := c.Param("respondent_hash")

	attempt := 0
	if raw := c.Query("attempt"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(c, utils.E(utils.CodeInvalidArgument, "ProcessHandler.Trigger", "attempt must be a positive integer", err))
			return
		}
		attempt = n
	}

	if err := h.svc.Enqueue(c.Request.Context(), orgID, interviewID, respondentHash, attempt); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Reset returns a failed or finished respondent to the processable state.
func (h *ProcessHandler) Reset(c *gin.Context) {
	respondentID, ok := paramUint(c, "respondent_id")
	if !ok {
		return
	}

	if err := h.svc.Reset(c.Request.Context(), respondentID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (h *ProcessHandler) Runs(c *gin.Context) {
	respondentID, ok := paramUint(c, "respondent_id")
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	runs, err := h.svc.Runs(c.Request.Context(), respondentID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
