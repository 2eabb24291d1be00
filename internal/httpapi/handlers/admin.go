package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/sitechat/internal/chat"
	"github.com/suPer8Hu/sitechat/internal/common"
	"github.com/suPer8Hu/sitechat/internal/logger"
)

type conversationView struct {
	ID        uint64         `json:"id"`
	SessionID string         `json:"session_id"`
	UserID    *uint64        `json:"user_id"`
	Messages  []chat.Message `json:"messages,omitempty"`
	// Raw is set instead of Messages when the stored blob cannot be decoded.
	Raw       string         `json:"raw,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func toView(c chat.Conversation) conversationView {
	v := conversationView{
		ID:        c.ID,
		SessionID: c.SessionID,
		UserID:    c.UserID,
		CreatedAt: c.CreatedAt,
	}
	if msgs, err := c.Messages(); err == nil {
		v.Messages = msgs
	} else {
		v.Raw = c.Transcript
	}
	return v
}

func (h *Handler) ListConversations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	ctx := c.Request.Context()
	rows, err := h.Repo.List(ctx, limit, offset)
	if err != nil {
		logger.Log.WithError(err).Error("list conversations")
		common.Fail(c, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	total, err := h.Repo.Count(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("count conversations")
		common.Fail(c, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	out := make([]conversationView, 0, len(rows))
	for _, r := range rows {
		out = append(out, toView(r))
	}
	common.OK(c, gin.H{
		"conversations": out,
		"total":         total,
	})
}

// ExportConversations streams every conversation as CSV, newest first.
func (h *Handler) ExportConversations(c *gin.Context) {
	filename := "conversations-" + time.Now().Format("2006-01-02") + ".csv"
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	if err := w.Write([]string{"ID", "User ID", "Conversation", "Date"}); err != nil {
		return
	}

	err := h.Repo.Each(c.Request.Context(), func(conv chat.Conversation) error {
		userID := ""
		if conv.UserID != nil {
			userID = strconv.FormatUint(*conv.UserID, 10)
		}
		return w.Write([]string{
			strconv.FormatUint(conv.ID, 10),
			userID,
			prettyTranscript(conv.Transcript),
			conv.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	})
	w.Flush()
	if err == nil {
		err = w.Error()
	}
	if err != nil {
		// headers are gone; the truncated file is all we can do
		logger.Log.WithError(err).Error("export conversations")
	}
}

func prettyTranscript(blob string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(blob), "", "    "); err != nil {
		return blob
	}
	return buf.String()
}

func (h *Handler) GetSettings(c *gin.Context) {
	cur, err := h.Settings.Current(c.Request.Context())
	if err != nil {
		logger.Log.WithError(err).Error("read settings")
		common.Fail(c, http.StatusInternalServerError, "failed to read settings")
		return
	}
	common.OK(c, cur.Masked())
}

type updateSettingsReq struct {
	// nil, or the masked key as shown by GetSettings, keeps the stored value
	APIKey   *string `json:"api_key" form:"api_key"`
	Model    *string `json:"model" form:"model"`
	Endpoint *string `json:"endpoint" form:"endpoint"`
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req updateSettingsReq
	if err := c.ShouldBind(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	cur, err := h.Settings.Current(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("read settings")
		common.Fail(c, http.StatusInternalServerError, "failed to read settings")
		return
	}

	next := cur
	if req.APIKey != nil && *req.APIKey != cur.Masked().APIKey {
		next.APIKey = *req.APIKey
	}
	if req.Model != nil {
		next.Model = *req.Model
	}
	if req.Endpoint != nil {
		next.Endpoint = *req.Endpoint
	}
	next = next.WithDefaults()

	if err := h.Settings.Save(ctx, next); err != nil {
		logger.Log.WithError(err).Error("save settings")
		common.Fail(c, http.StatusInternalServerError, "failed to save settings")
		return
	}
	logger.Log.WithFields(logrus.Fields{
		"model":    next.Model,
		"endpoint": next.Endpoint,
	}).Info("completion settings updated")
	common.OK(c, next.Masked())
}
