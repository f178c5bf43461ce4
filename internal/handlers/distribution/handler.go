// internal/handlers/distribution/handler.go
package distribution

import (
	"context"
	"errors"
	"io"
	"net/http"

	"leadflow-service/internal/domain/contact"
	"leadflow-service/internal/domain/stats"
	"leadflow-service/internal/middleware"
	"leadflow-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Engine is the distribution service as seen by HTTP.
type Engine interface {
	ImportBulk(ctx context.Context, rows []contact.RawRow, batchName string, adminID int64) (*contact.ImportResult, error)
	ImportFile(ctx context.Context, src io.Reader, filename, batchName string, adminID int64) (*contact.ImportResult, error)
	AssignToTL(ctx context.Context, count int, tlID, adminID int64) (*contact.AssignToTLResult, error)
	AssignToUser(ctx context.Context, count int, userID, adminID int64) (*contact.AssignToUserResult, error)
	Reassign(ctx context.Context, dataIDs []string, targetID, adminID int64) (*contact.BulkResult, error)
	TLDistribute(ctx context.Context, tlID int64, dataIDs []string, memberIDs []int64, method contact.DistributionMethod) (*contact.BulkResult, error)
	AdminWithdraw(ctx context.Context, dataIDs []string, adminID int64, reason string) (*contact.BulkResult, error)
	TLWithdraw(ctx context.Context, tlID int64, dataIDs []string, memberIDs []int64, reason string) (*contact.BulkResult, error)
	Archive(ctx context.Context, dataIDs []string, adminID int64, reason string) (*contact.BulkResult, error)
	UpdateStatus(ctx context.Context, dataID string, userID int64, req contact.UpdateStatusRequest) (*contact.TeamAssignment, error)
	GetRecord(ctx context.Context, id string, callerID int64, roles []string) (*contact.ContactRecord, error)
	GetPendingData(ctx context.Context, f contact.ListFilters) (*contact.RecordListResponse, error)
	GetTLPool(ctx context.Context, tlID int64, f contact.ListFilters) (*contact.RecordListResponse, error)
	GetMyQueue(ctx context.Context, userID int64, f contact.ListFilters) (*contact.QueueResponse, error)
	GetAllBatches(ctx context.Context, f stats.BatchFilters) (*stats.BatchListResponse, error)
	GetBatchStats(ctx context.Context, batchNumber string) (*stats.BatchSummary, error)
}

type DataHandler struct {
	engine         Engine
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewDataHandler(engine Engine, maxUploadBytes int64, logger *zap.Logger) *DataHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataHandler{engine: engine, maxUploadBytes: maxUploadBytes, logger: logger}
}

// ========== Admin Endpoints ==========

// Import ingests manually entered rows
func (h *DataHandler) Import(c *gin.Context) {
	adminID := middleware.MustGetIdentityID(c)

	var req contact.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.engine.ImportBulk(c.Request.Context(), req.Rows, req.BatchName, adminID)
	if err != nil {
		response.FromError(c, "import failed", err)
		return
	}

	response.Success(c, http.StatusCreated, "data imported", result)
}

// ImportFile ingests a CSV or XLSX upload from the "file" form field
func (h *DataHandler) ImportFile(c *gin.Context) {
	adminID := middleware.MustGetIdentityID(c)

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, "file too large", err)
			return
		}
		response.ValidationError(c, "file is required", err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.ValidationError(c, "unable to read upload", err)
		return
	}
	defer f.Close()

	result, err := h.engine.ImportFile(c.Request.Context(), f, fh.Filename, c.PostForm("batch_name"), adminID)
	if err != nil {
		response.FromError(c, "import failed", err)
		return
	}

	response.Success(c, http.StatusCreated, "file imported", result)
}

// AssignToTL grants the oldest pending records to a TL
func (h *DataHandler) AssignToTL(c *gin.Context) {
	adminID := middleware.MustGetIdentityID(c)

	var req contact.AssignToTLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.engine.AssignToTL(c.Request.Context(), req.Count, req.TLID, adminID)
	if err != nil {
		response.FromError(c, "failed to assign data", err)
		return
	}

	response.Success(c, http.StatusOK, "data assigned to TL", result)
}

// AssignToUser grants the oldest pending records directly to a team member
func (h *DataHandler) AssignToUser(c *gin.Context) {
	adminID := middleware.MustGetIdentityID(c)

	var req contact.AssignToUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.engine.AssignToUser(c.Request.Context(), req.Count, req.UserID, adminID)
	if err != nil {
		response.FromError(c, "failed to assign data", err)
		return
	}

	response.Success(c, http.StatusOK, "data assigned to user", result)
}

func (h *DataHandler) Reassign(c *gin.Context) {
	adminID := middleware.MustGetIdentityID(c)

	var req contact.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.engine.Reassign(c.Request.Context(), req.DataIDs, req.TargetID, adminID)
	h.bulk(c, "data reassigned", "failed to reassign data", result, err)
}

func (h *DataHandler) AdminWithdraw(c *gin.Context) {
	adminID := middleware.MustGetIdentityID(c)

	var req contact.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.engine.AdminWithdraw(c.Request.Context(), req.DataIDs, adminID, req.Reason)
	h.bulk(c, "data withdrawn", "failed to withdraw data", result, err)
}

func (h *DataHandler) Archive(c *gin.Context) {
	adminID := middleware.MustGetIdentityID(c)

	var req contact.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.engine.Archive(c.Request.Context(), req.DataIDs, adminID, req.Reason)
	h.bulk(c, "data archived", "failed to archive data", result, err)
}

func (h *DataHandler) PendingData(c *gin.Context) {
	var filters contact.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	result, err := h.engine.GetPendingData(c.Request.Context(), filters)
	if err != nil {
		response.FromError(c, "failed to list pending data", err)
		return
	}

	response.Success(c, http.StatusOK, "pending data retrieved", result)
}

func (h *DataHandler) Batches(c *gin.Context) {
	var filters stats.BatchFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	result, err := h.engine.GetAllBatches(c.Request.Context(), filters)
	if err != nil {
		response.FromError(c, "failed to list batches", err)
		return
	}

	response.Success(c, http.StatusOK, "batches retrieved", result)
}

func (h *DataHandler) BatchStats(c *gin.Context) {
	result, err := h.engine.GetBatchStats(c.Request.Context(), c.Param("batch"))
	if err != nil {
		response.FromError(c, "failed to load batch stats", err)
		return
	}

	response.Success(c, http.StatusOK, "batch stats retrieved", result)
}

// ========== TL Endpoints ==========

func (h *DataHandler) Distribute(c *gin.Context) {
	tlID := middleware.MustGetIdentityID(c)

	var req contact.DistributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.engine.TLDistribute(c.Request.Context(), tlID, req.DataIDs, req.TeamMemberIDs, req.Method)
	h.bulk(c, "data distributed", "failed to distribute data", result, err)
}

func (h *DataHandler) TLWithdraw(c *gin.Context) {
	tlID := middleware.MustGetIdentityID(c)

	var req contact.TLWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.engine.TLWithdraw(c.Request.Context(), tlID, req.DataIDs, req.TeamMemberIDs, req.Reason)
	h.bulk(c, "data withdrawn", "failed to withdraw data", result, err)
}

func (h *DataHandler) TLPool(c *gin.Context) {
	tlID := middleware.MustGetIdentityID(c)

	var filters contact.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	result, err := h.engine.GetTLPool(c.Request.Context(), tlID, filters)
	if err != nil {
		response.FromError(c, "failed to list TL data", err)
		return
	}

	response.Success(c, http.StatusOK, "TL data retrieved", result)
}

// ========== Member Endpoints ==========

func (h *DataHandler) MyQueue(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	var filters contact.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	result, err := h.engine.GetMyQueue(c.Request.Context(), userID, filters)
	if err != nil {
		response.FromError(c, "failed to list queue", err)
		return
	}

	response.Success(c, http.StatusOK, "queue retrieved", result)
}

func (h *DataHandler) UpdateStatus(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	var req contact.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.engine.UpdateStatus(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		response.FromError(c, "failed to update status", err)
		return
	}

	response.Success(c, http.StatusOK, "status updated", result)
}

// GetRecord returns one record scoped to what the caller may see
func (h *DataHandler) GetRecord(c *gin.Context) {
	callerID := middleware.MustGetIdentityID(c)

	result, err := h.engine.GetRecord(c.Request.Context(), c.Param("id"), callerID, middleware.GetRoles(c))
	if err != nil {
		response.FromError(c, "record not found", err)
		return
	}

	response.Success(c, http.StatusOK, "record retrieved", result)
}

// bulk writes a partial-failure envelope. Per-record failures still answer 200.
func (h *DataHandler) bulk(c *gin.Context, okMsg, failMsg string, result *contact.BulkResult, err error) {
	if err != nil {
		response.FromError(c, failMsg, err)
		return
	}
	if result.TotalErrors > 0 {
		h.logger.Warn("bulk operation partially failed",
			zap.String("path", c.FullPath()),
			zap.Int("count", result.Count),
			zap.Int("errors", result.TotalErrors))
	}
	response.Success(c, http.StatusOK, okMsg, result)
}
