package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"telemed-server/internal/advice"
	"telemed-server/internal/utils"
)

// Advisor produces a symptom assessment.
type Advisor interface {
	Advise(ctx context.Context, req advice.Request) (*advice.Result, error)
}

// AdviceHandler proxies symptom descriptions to the language model.
type AdviceHandler struct {
	Advisor Advisor
}

func NewAdviceHandler(advisor Advisor) *AdviceHandler {
	return &AdviceHandler{Advisor: advisor}
}

// AdviceRequest represents the request body for a symptom check.
type AdviceRequest struct {
	Age         string `json:"age"`
	Gender      string `json:"gender"`
	Description string `json:"description" binding:"required"`
}

// GetAdvice returns the model's structured assessment. Upstream failures answer 502.
func (h *AdviceHandler) GetAdvice(c *gin.Context) {
	var req AdviceRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	result, err := h.Advisor.Advise(c.Request.Context(), advice.Request{
		Age:         req.Age,
		Gender:      req.Gender,
		Description: req.Description,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Advice generated successfully", result)
}
