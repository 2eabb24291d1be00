package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sitechat/internal/common"
	"github.com/suPer8Hu/sitechat/internal/config"
	"github.com/suPer8Hu/sitechat/internal/httpapi/handlers"
	"github.com/suPer8Hu/sitechat/internal/httpapi/middleware"
	"github.com/suPer8Hu/sitechat/internal/settings"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB, cfg config.Config, store settings.Store) *gin.Engine {
	return newRouter(cfg, handlers.NewHandler(db, cfg, store))
}

func newRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	cookie := middleware.CookieOptions{
		Name:      cfg.SessionCookieName,
		TTL:       cfg.SessionTTL,
		Secure:    cfg.CookieSecure,
		CrossSite: len(cfg.CORSAllowedOrigins) > 0,
	}

	r.GET("/ping", h.Ping)

	// widget assets are session-agnostic
	r.GET("/widget.js", h.WidgetScript)
	r.GET("/widget.css", h.WidgetStyle)

	// page views issue the session
	page := r.Group("/widget")
	page.Use(middleware.Session(cookie))
	page.GET("", h.WidgetPage)
	page.GET("/bootstrap", h.WidgetBootstrap)

	// chat only reads it
	r.POST("/chat/messages", middleware.LoadSession(cookie), h.SendChatMessage)

	admin := r.Group("/admin")
	admin.Use(middleware.AdminAuth(cfg.AdminUser, cfg.AdminPasswordHash))
	admin.GET("/conversations", h.ListConversations)
	admin.GET("/conversations/export.csv", h.ExportConversations)
	admin.GET("/settings", h.GetSettings)
	admin.PUT("/settings", h.UpdateSettings)

	return r
}
