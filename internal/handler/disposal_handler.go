package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/procurement-api/internal/dto"
	"github.com/noah-isme/procurement-api/internal/models"
	"github.com/noah-isme/procurement-api/internal/service"
	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
	"github.com/noah-isme/procurement-api/pkg/response"
)

type disposalQueueService interface {
	ListFor(ctx context.Context, query dto.DisposalQueueQuery, caller models.Viewer) ([]models.DisposalRecord, error)
}

type disposalService interface {
	CreateRequest(ctx context.Context, req dto.CreateDisposalRequest, actor models.Actor) (string, error)
	Decide(ctx context.Context, req dto.DisposalDecisionRequest, actor models.Actor) (string, error)
	History(ctx context.Context, assetID string, viewer models.Viewer) ([]models.DisposalApproval, error)
}

type disposalExporter interface {
	ExportDisposals(ctx context.Context, query dto.DisposalExportQuery, caller models.Viewer) (*service.ExportFile, error)
}

// DisposalHandler serves the disposal queue and approval endpoints.
type DisposalHandler struct {
	queue     disposalQueueService
	disposals disposalService
	exporter  disposalExporter
}

// NewDisposalHandler constructs a DisposalHandler.
func NewDisposalHandler(queue disposalQueueService, disposals disposalService, exporter disposalExporter) *DisposalHandler {
	return &DisposalHandler{queue: queue, disposals: disposals, exporter: exporter}
}

// List godoc
// @Summary List disposal queue
// @Description Unified view of manual requests and automatically flagged assets. type=requests shows undecided items, type=records decided ones.
// @Tags Disposals
// @Produce json
// @Param type query string false "requests or records" Enums(requests, records)
// @Param record_status query string false "Narrow records" Enums(approved, rejected)
// @Param department query string false "Department filter"
// @Param user_id query string false "View the queue as this user (privileged only)"
// @Success 200 {object} dto.DisposalQueueResponse
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /disposals [get]
func (h *DisposalHandler) List(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.DisposalQueueQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	records, err := h.queue.ListFor(c.Request.Context(), query, actor.Viewer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Fields(c, http.StatusOK, gin.H{"disposals": records})
}

// CreateRequest godoc
// @Summary Submit a manual disposal request
// @Tags Disposals
// @Accept json
// @Produce json
// @Param payload body dto.CreateDisposalRequest true "Disposal request"
// @Success 201 {object} dto.CreateDisposalResponse
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /disposals/requests [post]
func (h *DisposalHandler) CreateRequest(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateDisposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid disposal request payload"))
		return
	}
	id, err := h.disposals.CreateRequest(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"request_id": id})
}

// Decide godoc
// @Summary Approve or reject a disposal
// @Description Applies the decision atomically and appends an approval record.
// @Tags Disposals
// @Accept json
// @Produce json
// @Param payload body dto.DisposalDecisionRequest true "Decision"
// @Success 200 {object} dto.DisposalDecisionResponse
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /disposals/decisions [post]
func (h *DisposalHandler) Decide(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.DisposalDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	message, err := h.disposals.Decide(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Fields(c, http.StatusOK, gin.H{"message": message})
}

// Export godoc
// @Summary Export disposal queue
// @Tags Disposals
// @Produce octet-stream
// @Param format query string false "csv, pdf or xlsx" Enums(csv, pdf, xlsx)
// @Param type query string false "requests or records" Enums(requests, records)
// @Param record_status query string false "Narrow records" Enums(approved, rejected)
// @Param department query string false "Department filter"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /disposals/export [get]
func (h *DisposalHandler) Export(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.DisposalExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.exporter.ExportDisposals(c.Request.Context(), query, actor.Viewer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}

// History godoc
// @Summary Disposal decision history of an asset
// @Tags Disposals
// @Produce json
// @Param id path string true "Asset ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assets/{id}/disposal-approvals [get]
func (h *DisposalHandler) History(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.disposals.History(c.Request.Context(), c.Param("id"), actor.Viewer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}
