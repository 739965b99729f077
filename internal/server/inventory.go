package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bolibana/boutique/internal/sync"
	"github.com/gin-gonic/gin"
)

func (s *Server) registerInventoryRoutes() {
	inventory := s.engine.Group("/inventory")
	{
		inventory.GET("/status/", s.GetSyncStatus)
		inventory.POST("/sync/products/", s.SyncProducts)
		inventory.POST("/sync/categories/", s.SyncCategories)
		inventory.GET("/sites/", s.ListSites)
		inventory.GET("/connection/", s.TestConnection)
		inventory.POST("/keys/", s.CreateKey)
		inventory.GET("/keys/", s.ListKeys)
		inventory.POST("/sales/:order_id/", s.UploadSale)
	}
}

// GetSyncStatus reports catalog counts, scheduling state and the most
// recently synced products.
func (s *Server) GetSyncStatus(c *gin.Context) {
	ctx := c.Request.Context()

	counts, err := s.catalog.Counts(ctx, s.db)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	recent, err := s.catalog.RecentlySyncedProducts(ctx, s.db, 10)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	allowed, reason := s.scheduler.ShouldSync(ctx, sync.KindProducts)

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"counts":          counts,
		"recent_products": recent,
		"sync_allowed":    allowed,
		"sync_blocked_by": reason,
	}})
}

func (s *Server) SyncProducts(c *gin.Context) {
	s.triggerSync(c, sync.KindProducts)
}

func (s *Server) SyncCategories(c *gin.Context) {
	s.triggerSync(c, sync.KindCategories)
}

func (s *Server) triggerSync(c *gin.Context, kind sync.Kind) {
	force := parseBoolParam(c.Query("force"))

	result := s.scheduler.SyncNow(c.Request.Context(), kind, force)

	status := http.StatusOK
	if !result.Success {
		switch result.Reason {
		case sync.ReasonInProgress, sync.ReasonCooldown:
			status = http.StatusConflict
		case sync.ReasonNoCredential:
			status = http.StatusConflict
		default:
			status = http.StatusBadGateway
		}
	}
	c.JSON(status, gin.H{"data": result})
}

func (s *Server) ListSites(c *gin.Context) {
	sites, err := s.client.ListSites(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sites})
}

func (s *Server) TestConnection(c *gin.Context) {
	ok := s.client.TestConnection(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"connected": ok}})
}

type createKeyRequest struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

func (s *Server) CreateKey(c *gin.Context) {
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "default"
	}

	if err := s.vault.SetKey(c.Request.Context(), name, req.Key); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"name": name}})
}

func (s *Server) ListKeys(c *gin.Context) {
	keys, err := s.vault.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": keys})
}

// UploadSale reports one local order upstream. The report always comes back
// with status 200; a failed upload is carried inside the report.
func (s *Server) UploadSale(c *gin.Context) {
	orderID, err := strconv.ParseInt(strings.TrimSpace(c.Param("order_id")), 10, 64)
	if err != nil || orderID <= 0 {
		invalidRequest(c)
		return
	}

	report := s.uploader.Upload(c.Request.Context(), orderID)
	c.JSON(http.StatusOK, gin.H{"data": report})
}

func parseBoolParam(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
