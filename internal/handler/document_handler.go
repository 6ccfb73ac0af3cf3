package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragchat/internal/pkg/errcode"
	"github.com/xxxsen/ragchat/internal/pkg/response"
	"github.com/xxxsen/ragchat/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
	ingest    *service.IngestService
}

func NewDocumentHandler(documents *service.DocumentService, ingest *service.IngestService) *DocumentHandler {
	return &DocumentHandler{documents: documents, ingest: ingest}
}

// Upload accepts one multipart file and runs the full ingestion pipeline
// before replying, so a following query immediately sees the document.
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "file field is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "open upload failed")
		return
	}
	defer file.Close()

	result, err := h.ingest.Ingest(c.Request.Context(), getUserID(c), fileHeader.Filename, file, fileHeader.Size)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
