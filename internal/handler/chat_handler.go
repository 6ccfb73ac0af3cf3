package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragchat/internal/cache"
	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/errcode"
	"github.com/xxxsen/ragchat/internal/pkg/response"
	"github.com/xxxsen/ragchat/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type askRequest struct {
	Query   string             `json:"query"`
	Filters model.QueryFilters `json:"filters"`
}

func (h *ChatHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	rsp, err := h.chat.Ask(c.Request.Context(), getUserID(c), req.Query, req.Filters, nil)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, rsp)
}

// AskStream answers over server-sent events. A cache hit emits one "cached"
// event with the full answer; a fresh answer arrives as a "token" event. Both
// are followed by "citations", an optional "memory" event when the gate wrote
// something, and a terminal "done" carrying [DONE]. Errors after the stream
// has started arrive as an "error" event since the status line is already on
// the wire.
func (h *ChatHandler) AskStream(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.Flush()

	rsp, err := h.chat.Ask(c.Request.Context(), getUserID(c), req.Query, req.Filters, nil)
	if err != nil {
		c.SSEvent("error", err.Error())
		c.Writer.Flush()
		return
	}
	if rsp.CacheStatus == cache.StatusHit {
		c.SSEvent("cached", rsp.Answer)
	} else {
		c.SSEvent("token", rsp.Answer)
	}
	citations, err := json.Marshal(rsp.Citations)
	if err != nil {
		c.SSEvent("error", "encode citations failed")
		c.Writer.Flush()
		return
	}
	c.SSEvent("citations", string(citations))
	if rsp.Memory.Written {
		if payload, err := json.Marshal(rsp.Memory); err == nil {
			c.SSEvent("memory", string(payload))
		}
	}
	c.SSEvent("done", "[DONE]")
	c.Writer.Flush()
}
