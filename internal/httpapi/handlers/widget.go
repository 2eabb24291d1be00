package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/sitechat/internal/common"
	"github.com/suPer8Hu/sitechat/internal/httpapi/middleware"
	"github.com/suPer8Hu/sitechat/internal/logger"
	"github.com/suPer8Hu/sitechat/internal/widget"
)

// accountAnonymous is the account every public widget token is issued for.
const accountAnonymous uint64 = 0

func (h *Handler) WidgetScript(c *gin.Context) { h.serveAsset(c, "widget.js") }

func (h *Handler) WidgetStyle(c *gin.Context) { h.serveAsset(c, "widget.css") }

func (h *Handler) serveAsset(c *gin.Context, name string) {
	b, ct, err := widget.Asset(name)
	if err != nil {
		common.Fail(c, http.StatusNotFound, "route not found")
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, ct, b)
}

// WidgetPage renders a host page with the widget embedded.
func (h *Handler) WidgetPage(c *gin.Context) {
	var buf bytes.Buffer
	if err := widget.RenderPage(&buf, widget.PageData{
		SiteName: h.Cfg.SiteName,
		BotName:  h.Cfg.BotName,
	}); err != nil {
		logger.Log.WithError(err).Error("render widget page")
		common.Fail(c, http.StatusInternalServerError, "failed to render page")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// WidgetBootstrap hands the script an anti-forgery token bound to the
// caller's session, plus display strings.
func (h *Handler) WidgetBootstrap(c *gin.Context) {
	s, ok := middleware.SessionFrom(c)
	if !ok {
		common.Fail(c, http.StatusInternalServerError, "session unavailable")
		return
	}
	token, err := h.Tokens.Issue(s.ID, accountAnonymous)
	if err != nil {
		logger.Log.WithError(err).Error("issue widget token")
		common.Fail(c, http.StatusInternalServerError, "failed to issue token")
		return
	}
	if s.Issued {
		logger.Log.WithFields(logrus.Fields{
			"session_id": s.ID,
			"request_id": c.GetString(middleware.RequestIDKey),
		}).Info("widget session started")
	}
	c.Header("Cache-Control", "no-store")
	common.OK(c, gin.H{
		"token":    token,
		"bot_name": h.Cfg.BotName,
		"greeting": widget.DefaultGreeting,
	})
}
