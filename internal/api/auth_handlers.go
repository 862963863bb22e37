package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

// AdminHandlers serves admin login and curated list configuration
type AdminHandlers struct {
	auth    services.AdminAuthenticator
	curated *services.CuratedService
	logger  *zap.Logger
}

// NewAdminHandlers creates new admin handlers
func NewAdminHandlers(auth services.AdminAuthenticator, curated *services.CuratedService, logger *zap.Logger) *AdminHandlers {
	return &AdminHandlers{auth: auth, curated: curated, logger: logger}
}

type loginRequest struct {
	Secret string `json:"secret"`
}

// Login exchanges the shared admin secret for a session token
func (h *AdminHandlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	token, expiresAt, err := h.auth.Login(req.Secret)
	if err != nil {
		status := http.StatusForbidden
		message := "Invalid admin credentials"
		if errors.Is(err, services.ErrAdminUnauthorized) {
			status = http.StatusUnauthorized
			message = "Admin credentials required"
		} else if !errors.Is(err, services.ErrAdminForbidden) {
			h.logger.Error("failed to issue admin token", zap.Error(err))
			status = http.StatusInternalServerError
			message = "Internal server error"
		} else {
			h.logger.Warn("admin login rejected", zap.String("client_ip", c.ClientIP()))
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   message,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"token":     token,
		"expiresAt": expiresAt.UTC(),
	})
}

// GetConfig returns the ids of a curated list
func (h *AdminHandlers) GetConfig(c *gin.Context) {
	kind, err := models.ParseCuratedKind(c.Param("kind"))
	if err != nil {
		respondError(c, err)
		return
	}

	list, err := h.curated.GetList(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"kind":       list.Kind,
		"productIds": list.ProductIDs,
	})
}

type curatedListRequest struct {
	ProductIDs []int `json:"productIds"`
}

// PutConfig replaces the ids of a curated list
func (h *AdminHandlers) PutConfig(c *gin.Context) {
	kind, err := models.ParseCuratedKind(c.Param("kind"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req curatedListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	list := &models.CuratedList{Kind: kind, ProductIDs: req.ProductIDs}
	if list.ProductIDs == nil {
		list.ProductIDs = []int{}
	}
	if err := h.curated.PutList(c.Request.Context(), list); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"kind":       list.Kind,
		"productIds": list.ProductIDs,
	})
}
