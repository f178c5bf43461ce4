// internal/handlers/stats/handler.go
package stats

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"leadflow-service/internal/domain/stats"
	"leadflow-service/internal/middleware"
	"leadflow-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Reporter is the read side of the distribution service.
type Reporter interface {
	Overview(ctx context.Context) (*stats.Overview, error)
	GetTLStats(ctx context.Context, tlID int64) (*stats.TLStats, error)
	GetUserStats(ctx context.Context, userID int64, from, to *time.Time) (*stats.UserStats, error)
}

type StatsHandler struct {
	reporter Reporter
}

func NewStatsHandler(reporter Reporter) *StatsHandler {
	return &StatsHandler{reporter: reporter}
}

// Overview returns global counts and the latest batches
func (h *StatsHandler) Overview(c *gin.Context) {
	result, err := h.reporter.Overview(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to load stats", err)
		return
	}

	response.Success(c, http.StatusOK, "stats retrieved", result)
}

// MyTLStats returns the calling TL's pool stats
func (h *StatsHandler) MyTLStats(c *gin.Context) {
	h.tlStats(c, middleware.MustGetIdentityID(c))
}

// TLStats returns any TL's pool stats (admin)
func (h *StatsHandler) TLStats(c *gin.Context) {
	tlID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid TL id", err)
		return
	}
	h.tlStats(c, tlID)
}

func (h *StatsHandler) tlStats(c *gin.Context, tlID int64) {
	result, err := h.reporter.GetTLStats(c.Request.Context(), tlID)
	if err != nil {
		response.FromError(c, "failed to load TL stats", err)
		return
	}

	response.Success(c, http.StatusOK, "TL stats retrieved", result)
}

// MyUserStats returns the caller's status breakdown
func (h *StatsHandler) MyUserStats(c *gin.Context) {
	h.userStats(c, middleware.MustGetIdentityID(c))
}

// UserStats returns any member's status breakdown (admin)
func (h *StatsHandler) UserStats(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid user id", err)
		return
	}
	h.userStats(c, userID)
}

func (h *StatsHandler) userStats(c *gin.Context, userID int64) {
	var filters stats.UserStatsFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	result, err := h.reporter.GetUserStats(c.Request.Context(), userID, filters.From, filters.To)
	if err != nil {
		response.FromError(c, "failed to load user stats", err)
		return
	}

	response.Success(c, http.StatusOK, "user stats retrieved", result)
}
