package handler

import (
	"complaintdesk/backend/internal/attachments"
	"complaintdesk/backend/internal/config"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UploadAttachment stores the multipart "file" field and returns its public URL.
func (h *Handler) UploadAttachment(c *gin.Context) {
	if h.Attachments == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Attachments are not configured"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxAttachmentSize+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing file"})
		return
	}
	if fh.Size > config.MaxAttachmentSize {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Unreadable file"})
		return
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	id := identity(c)
	name := attachments.ObjectName(id.UserID, fh.Filename, h.Now())
	url, err := h.Attachments.Put(c.Request.Context(), name, contentType, f)
	if err != nil {
		log.Printf("ERROR: Upload of %s for %s failed: %v", fh.Filename, id.UserID, err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url, "name": name})
}
