package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/minio/minio-go/v7"

	"github.com/devhivehq/devhive-backend/internal/httpx"
	"github.com/devhivehq/devhive-backend/internal/service"
	"github.com/devhivehq/devhive-backend/internal/storage"
)

const (
	maxAttachmentSize = 25 << 20 // 25 MiB
	downloadURLExpiry = 15 * time.Minute
)

type AttachmentHandler struct {
	store               *storage.AttachmentStore
	conversationService *service.ConversationService
}

func NewAttachmentHandler(store *storage.AttachmentStore, conversationService *service.ConversationService) *AttachmentHandler {
	return &AttachmentHandler{store: store, conversationService: conversationService}
}

// Upload stores an attachment payload scoped to a conversation. The returned
// key goes into the metadata of the image or file message that references it.
func (h *AttachmentHandler) Upload(c *fiber.Ctx) error {
	if h.store == nil {
		return httpx.Error(c, fiber.StatusServiceUnavailable, "storage_not_configured", "Storage not configured")
	}
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	conversationID, ok := paramUint(c, "id")
	if !ok {
		return httpx.BadRequest(c, "invalid_conversation", "Invalid conversation id")
	}

	if err := h.conversationService.CheckMembership(conversationID, userID); err != nil {
		return httpx.FromServiceError(c, "upload_failed", err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return httpx.BadRequest(c, "missing_file", "file is required")
	}
	if fileHeader.Size <= 0 || fileHeader.Size > maxAttachmentSize {
		return httpx.BadRequest(c, "invalid_file_size", "File is empty or too large")
	}

	key, err := storage.AttachmentKey(conversationID, fileHeader.Filename)
	if err != nil {
		return httpx.BadRequest(c, "invalid_filename", "Invalid filename")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return httpx.Internal(c, "upload_failed")
	}
	defer f.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	st, err := h.store.Put(c.Context(), key, f, fileHeader.Size, contentType)
	if err != nil {
		return httpx.Internal(c, "upload_failed")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"key":          key,
		"size":         st.Size,
		"content_type": contentType,
	})
}

// Download hands back a short-lived presigned URL instead of streaming the
// object through the API.
func (h *AttachmentHandler) Download(c *fiber.Ctx) error {
	if h.store == nil {
		return httpx.Error(c, fiber.StatusServiceUnavailable, "storage_not_configured", "Storage not configured")
	}
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	conversationID, ok := paramUint(c, "id")
	if !ok {
		return httpx.BadRequest(c, "invalid_conversation", "Invalid conversation id")
	}
	if err := h.conversationService.CheckMembership(conversationID, userID); err != nil {
		return httpx.FromServiceError(c, "download_failed", err)
	}

	key := c.Query("key")
	if key == "" {
		return httpx.BadRequest(c, "missing_key", "key is required")
	}
	if !storage.KeyInConversation(key, conversationID) {
		return httpx.Forbidden(c, "wrong_conversation", "Key does not belong to this conversation")
	}

	if _, err := h.store.Stat(c.Context(), key); err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && (resp.StatusCode == 404 || resp.Code == "NoSuchKey") {
			return httpx.NotFound(c, "not_found", "Not found")
		}
		return httpx.Internal(c, "download_failed")
	}

	url, err := h.store.PresignDownload(c.Context(), key, downloadURLExpiry)
	if err != nil {
		return httpx.Internal(c, "download_failed")
	}

	return c.JSON(fiber.Map{"url": url, "expires_in": int(downloadURLExpiry.Seconds())})
}
