package ginserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront/internal/app/apperr"
	"storefront/internal/app/dto"
	chatapp "storefront/internal/app/handlers/chat"
	"storefront/internal/app/queries"
)

const defaultMaxAttachmentBytes = 5 << 20

type AttachmentHTTP interface {
	Upload(c *gin.Context)
}

type AttachmentStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// AttachmentHandler stores images for a chat the caller participates in and
// returns the URL to post as an image message.
type AttachmentHandler struct {
	Queries  queries.Bus
	Store    AttachmentStore
	Logger   *slog.Logger
	MaxBytes int64
}

func (h AttachmentHandler) Upload(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	chatID := c.Param("id")
	membership, err := queries.Ask[chatapp.MembershipQuery, dto.Membership](c.Request.Context(), h.Queries, chatapp.MembershipQuery{CallerID: caller, ChatID: chatID})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		writeError(c, h.Logger, apperr.Validation("file", "multipart field file is required", err))
		return
	}
	limit := h.MaxBytes
	if limit <= 0 {
		limit = defaultMaxAttachmentBytes
	}
	if header.Size <= 0 {
		writeError(c, h.Logger, apperr.Validation("file", "file is empty", nil))
		return
	}
	if header.Size > limit {
		writeError(c, h.Logger, apperr.Validation("file", fmt.Sprintf("file exceeds %d bytes", limit), nil))
		return
	}
	file, err := header.Open()
	if err != nil {
		writeError(c, h.Logger, apperr.Validation("file", "file could not be read", err))
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		writeError(c, h.Logger, apperr.Validation("file", "file could not be read", err))
		return
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		writeError(c, h.Logger, apperr.Validation("file", "only image attachments are supported", nil))
		return
	}

	key := fmt.Sprintf("chats/%s/%s%s", membership.ChatID, uuid.NewString(), strings.ToLower(path.Ext(header.Filename)))
	body := io.MultiReader(bytes.NewReader(head), file)
	url, err := h.Store.Put(c.Request.Context(), key, body, header.Size, contentType)
	if err != nil {
		writeError(c, h.Logger, apperr.Storage(err))
		return
	}
	c.JSON(http.StatusCreated, dto.Attachment{URL: url, Key: key, ContentType: contentType, Size: header.Size})
}

var _ AttachmentHTTP = AttachmentHandler{}
