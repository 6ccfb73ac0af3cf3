package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragchat/internal/pkg/response"
	"github.com/xxxsen/ragchat/internal/service"
)

type MemoryHandler struct {
	memories *service.MemoryService
}

func NewMemoryHandler(memories *service.MemoryService) *MemoryHandler {
	return &MemoryHandler{memories: memories}
}

func (h *MemoryHandler) Get(c *gin.Context) {
	view, err := h.memories.Get(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *MemoryHandler) Clear(c *gin.Context) {
	if err := h.memories.Clear(c.Request.Context(), getUserID(c), c.Param("target")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"cleared": true})
}

func (h *MemoryHandler) Insights(c *gin.Context) {
	digest, err := h.memories.Insights(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"insights": digest})
}
