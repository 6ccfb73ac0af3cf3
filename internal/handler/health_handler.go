package handler

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragchat/internal/cache"
	"github.com/xxxsen/ragchat/internal/pkg/errcode"
	"github.com/xxxsen/ragchat/internal/pkg/response"
)

const serverVersion = "1.0.0"

type HealthHandler struct {
	db      *sql.DB
	answers *cache.AnswerCache
}

func NewHealthHandler(db *sql.DB, answers *cache.AnswerCache) *HealthHandler {
	return &HealthHandler{db: db, answers: answers}
}

func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		response.Error(c, errcode.ErrInternal, "database unavailable")
		return
	}
	response.Success(c, gin.H{
		"status":         "ok",
		"version":        serverVersion,
		"cached_answers": h.answers.Len(),
	})
}
