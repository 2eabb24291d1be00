package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sitechat/internal/chat"
	"github.com/suPer8Hu/sitechat/internal/common"
	"github.com/suPer8Hu/sitechat/internal/httpapi/middleware"
	"github.com/suPer8Hu/sitechat/internal/logger"
)

const (
	msgInvalidToken   = "Invalid request. Nonce verification failed."
	msgEmptyMessage   = "Please enter a message."
	msgMissingSession = "Session expired. Please refresh the page."
	msgConfigMissing  = "API key is not configured. Please check the settings."
	msgUnavailable    = "An error occurred while processing your request."
	msgNoCompletion   = "No response from assistant."
	msgPersist        = "Failed to save conversation."
)

type sendMessageReq struct {
	Token   string `form:"token" json:"token"`
	Message string `form:"message" json:"message"`
}

// SendChatMessage answers one widget turn. The body is form-encoded (as the
// widget posts it) or JSON.
func (h *Handler) SendChatMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBind(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	var sessionID string
	if s, ok := middleware.SessionFrom(c); ok {
		sessionID = s.ID
	}

	reply, err := h.ChatSvc.SendMessage(c.Request.Context(), chat.SendRequest{
		Token:     req.Token,
		Message:   req.Message,
		SessionID: sessionID,
	})
	if err != nil {
		status, msg := chatErrorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.Log.WithError(err).
				WithField("request_id", c.GetString(middleware.RequestIDKey)).
				Warn("chat message failed")
		}
		common.Fail(c, status, msg)
		return
	}

	common.OK(c, reply)
}

func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrInvalidToken):
		return http.StatusForbidden, msgInvalidToken
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest, msgEmptyMessage
	case errors.Is(err, chat.ErrMissingSession):
		return http.StatusBadRequest, msgMissingSession
	case errors.Is(err, chat.ErrConfigMissing):
		return http.StatusInternalServerError, msgConfigMissing
	case errors.Is(err, chat.ErrGatewayUnavailable):
		return http.StatusBadGateway, msgUnavailable
	case errors.Is(err, chat.ErrNoCompletion):
		return http.StatusBadGateway, msgNoCompletion
	case errors.Is(err, chat.ErrPersist):
		return http.StatusInternalServerError, msgPersist
	default:
		return http.StatusInternalServerError, msgUnavailable
	}
}
