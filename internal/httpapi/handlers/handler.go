package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sitechat/internal/ai"
	"github.com/suPer8Hu/sitechat/internal/auth"
	"github.com/suPer8Hu/sitechat/internal/chat"
	"github.com/suPer8Hu/sitechat/internal/common"
	"github.com/suPer8Hu/sitechat/internal/config"
	"github.com/suPer8Hu/sitechat/internal/settings"
	"gorm.io/gorm"
)

type Handler struct {
	DB       *gorm.DB
	Cfg      config.Config
	Settings settings.Store
	Tokens   *auth.TokenSigner
	Repo     *chat.Repo
	ChatSvc  *chat.Service
}

func NewHandler(db *gorm.DB, cfg config.Config, store settings.Store) *Handler {
	repo := chat.NewRepo(db)
	gateway := ai.NewClient(cfg.CompletionTimeout)
	tokens := auth.NewTokenSigner(cfg.TokenSecret, cfg.TokenTTL)
	assembler := chat.NewAssembler(cfg.SiteName, cfg.Location())
	chatSvc := chat.NewService(repo, assembler, gateway, store, tokens)
	return &Handler{
		DB:       db,
		Cfg:      cfg,
		Settings: store,
		Tokens:   tokens,
		Repo:     repo,
		ChatSvc:  chatSvc,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		common.Fail(c, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	common.OK(c, "pong")
}
