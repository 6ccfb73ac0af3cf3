package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragchat/internal/pkg/response"
	"github.com/xxxsen/ragchat/internal/service"
)

type GraphHandler struct {
	graphs *service.GraphService
}

func NewGraphHandler(graphs *service.GraphService) *GraphHandler {
	return &GraphHandler{graphs: graphs}
}

func (h *GraphHandler) Stats(c *gin.Context) {
	stats, err := h.graphs.Stats(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *GraphHandler) Entities(c *gin.Context) {
	entities, err := h.graphs.Entities(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, entities)
}

func (h *GraphHandler) Full(c *gin.Context) {
	full, err := h.graphs.Full(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, full)
}

func (h *GraphHandler) Entity(c *gin.Context) {
	detail, err := h.graphs.Entity(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, detail)
}
