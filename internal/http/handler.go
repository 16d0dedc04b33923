package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/waste-contracts/internal/calendar"
	"github.com/nurpe/waste-contracts/internal/http/middleware"
	"github.com/nurpe/waste-contracts/internal/model"
	"github.com/nurpe/waste-contracts/internal/repository"
	"github.com/nurpe/waste-contracts/internal/service"
)

type Handler struct {
	terminations *service.TerminationService
	log          zerolog.Logger
}

func NewHandler(terminations *service.TerminationService, log zerolog.Logger) *Handler {
	return &Handler{terminations: terminations, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)
	protected.POST("/contracts/:type/terminations", h.terminateOverlapping)
	protected.GET("/contracts/:type/:id/effective", h.effectiveTerms)
}

// Fields are optional: a request without sectors, start date or contract id
// terminates nothing.
type terminateRequest struct {
	SectorIDs         []string `json:"sector_ids"`
	ServiceStart      string   `json:"service_start"`
	NewContractID     string   `json:"new_contract_id"`
	NewContractNumber string   `json:"new_contract_number"`
}

func (h *Handler) terminateOverlapping(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if !principal.CanManageContracts() {
		h.handleError(c, service.ErrPermissionDenied)
		return
	}

	contractType, err := model.ParseContractType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract type"})
		return
	}

	var req terminateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sectorIDs := make([]uuid.UUID, 0, len(req.SectorIDs))
	for _, raw := range req.SectorIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sector_ids"})
			return
		}
		sectorIDs = append(sectorIDs, id)
	}

	var serviceStart *calendar.Date
	if strings.TrimSpace(req.ServiceStart) != "" {
		parsed, err := calendar.Parse(req.ServiceStart)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid service_start"})
			return
		}
		serviceStart = &parsed
	}

	var newContractID uuid.UUID
	if raw := strings.TrimSpace(req.NewContractID); raw != "" {
		newContractID, err = uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid new_contract_id"})
			return
		}
	}

	result, err := h.terminations.TerminateOverlapping(c.Request.Context(), service.TerminateInput{
		ContractType:      contractType,
		SectorIDs:         sectorIDs,
		ServiceStart:      serviceStart,
		NewContractID:     newContractID,
		NewContractNumber: strings.TrimSpace(req.NewContractNumber),
		ActingUserID:      principal.UserID,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) effectiveTerms(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if principal.IsDriver() {
		h.handleError(c, service.ErrPermissionDenied)
		return
	}

	contractType, err := model.ParseContractType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract type"})
		return
	}

	contractID, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	terms, err := h.terminations.EffectiveTerms(c.Request.Context(), contractType, contractID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, terms)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidContractType),
		errors.Is(err, service.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case repository.IsRetryable(err):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent update, retry the request"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
