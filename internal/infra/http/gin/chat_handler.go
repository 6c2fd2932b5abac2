package ginserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"storefront/internal/app/apperr"
	"storefront/internal/app/commands"
	"storefront/internal/app/dto"
	chatapp "storefront/internal/app/handlers/chat"
	"storefront/internal/app/outbox"
	"storefront/internal/app/queries"
	"storefront/internal/infra/obs"
)

const idempotencyHeader = "Idempotency-Key"

// ChatHTTP exposes chat endpoints.
type ChatHTTP interface {
	List(c *gin.Context)
	Start(c *gin.Context)
	Open(c *gin.Context)
	PostMessage(c *gin.Context)
	MarkRead(c *gin.Context)
	Deactivate(c *gin.Context)
	UnreadSummary(c *gin.Context)
}

type ChatHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type startChatRequest struct {
	ProductID    string `json:"product_id"`
	OtherPartyID string `json:"other_party_id"`
}

type postMessageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

func (h ChatHandler) List(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	page, size, err := pageParams(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	query := chatapp.ListChatsQuery{CallerID: caller, Page: page, PageSize: size}
	result, err := queries.Ask[chatapp.ListChatsQuery, dto.ChatList](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Start returns 201 when a chat was created and 200 when the active chat
// for the same participants and product already existed.
func (h ChatHandler) Start(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req startChatRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	cmd := chatapp.StartChatCommand{CallerID: caller, ProductID: req.ProductID, OtherPartyID: req.OtherPartyID}
	result, err := commands.Dispatch[chatapp.StartChatCommand, *dto.StartChatResult](commandContext(c, caller), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

// Open returns the chat with a page of messages and marks it read for the caller.
func (h ChatHandler) Open(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	page, size, err := pageParams(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	cmd := chatapp.OpenChatCommand{CallerID: caller, ChatID: c.Param("id"), Page: page, PageSize: size}
	result, err := commands.Dispatch[chatapp.OpenChatCommand, *dto.ChatThread](commandContext(c, caller), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ChatHandler) PostMessage(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req postMessageRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	cmd := chatapp.PostMessageCommand{
		CallerID:        caller,
		ChatID:          c.Param("id"),
		Content:         req.Content,
		Type:            req.Type,
		IdempotencyKeyV: strings.TrimSpace(c.GetHeader(idempotencyHeader)),
	}
	result, err := commands.Dispatch[chatapp.PostMessageCommand, *dto.ChatMessage](commandContext(c, caller), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h ChatHandler) MarkRead(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	cmd := chatapp.MarkReadCommand{CallerID: caller, ChatID: c.Param("id")}
	result, err := commands.Dispatch[chatapp.MarkReadCommand, *dto.MarkReadResult](commandContext(c, caller), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ChatHandler) Deactivate(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	cmd := chatapp.DeactivateChatCommand{CallerID: caller, ChatID: c.Param("id")}
	result, err := commands.Dispatch[chatapp.DeactivateChatCommand, *dto.DeactivateResult](commandContext(c, caller), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ChatHandler) UnreadSummary(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	query := chatapp.UnreadSummaryQuery{CallerID: caller}
	result, err := queries.Ask[chatapp.UnreadSummaryQuery, dto.UnreadSummary](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// commandContext carries the request id and caller onto events recorded by the command.
func commandContext(c *gin.Context, caller string) context.Context {
	ctx := c.Request.Context()
	headers := map[string]string{"caller_id": caller}
	if id := obs.RequestIDFromContext(ctx); id != "" {
		headers["request_id"] = id
	}
	return outbox.WithHeaders(ctx, headers)
}

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("body", "request body is required", err)
		}
		return apperr.Validation("body", "request body must be valid JSON", err)
	}
	return nil
}

// pageParams reads page and page_size. Absent values are zero and resolved
// to defaults by the handlers; non-numeric values are rejected.
func pageParams(c *gin.Context) (int, int, error) {
	page, err := parseIntParam(c.Query("page"), "page")
	if err != nil {
		return 0, 0, err
	}
	size, err := parseIntParam(c.Query("page_size"), "page_size")
	if err != nil {
		return 0, 0, err
	}
	return page, size, nil
}

func parseIntParam(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(field, field+" must be an integer", err)
	}
	if value < 0 {
		return 0, apperr.Validation(field, field+" must not be negative", nil)
	}
	return value, nil
}

var _ ChatHTTP = ChatHandler{}
