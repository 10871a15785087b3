package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/procurement-api/internal/dto"
	"github.com/noah-isme/procurement-api/internal/models"
	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
	"github.com/noah-isme/procurement-api/pkg/response"
)

type assetService interface {
	UpdateCondition(ctx context.Context, assetID string, req dto.UpdateConditionRequest, actor models.Actor) (*dto.ConditionUpdateResult, error)
}

// AssetHandler exposes asset maintenance endpoints.
type AssetHandler struct {
	service assetService
}

// NewAssetHandler builds an AssetHandler.
func NewAssetHandler(svc assetService) *AssetHandler {
	return &AssetHandler{service: svc}
}

// UpdateCondition godoc
// @Summary Update asset condition
// @Description Records a new condition. Marking an active asset Obsolete queues it for automatic disposal.
// @Tags Assets
// @Accept json
// @Produce json
// @Param id path string true "Asset ID"
// @Param payload body dto.UpdateConditionRequest true "Condition payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assets/{id}/condition [patch]
func (h *AssetHandler) UpdateCondition(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateConditionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid condition payload"))
		return
	}
	result, err := h.service.UpdateCondition(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
