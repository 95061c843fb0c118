package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leobrain/crawler/internal/database"
	"github.com/leobrain/crawler/internal/domain"
	"github.com/leobrain/crawler/internal/logger"
)

// ContentStore is the repository surface the contents handlers consume.
type ContentStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Content, error)
	GetByURL(ctx context.Context, url string) (*domain.Content, error)
	List(ctx context.Context, skip, limit int, source string) ([]*domain.Content, error)
	Count(ctx context.Context, source string) (int64, error)
}

// ObjectGetter fetches stored bodies from the object store.
type ObjectGetter interface {
	Get(ctx context.Context, objectName string) ([]byte, error)
}

// ItemStorer persists submitted items through the ingest pipeline.
type ItemStorer interface {
	ProcessItem(ctx context.Context, item *domain.Item) (bool, error)
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// ContentsHandler serves the stored content routes.
type ContentsHandler struct {
	repo     ContentStore
	objects  ObjectGetter
	pipeline ItemStorer
	log      logger.Interface
}

// NewContentsHandler creates a ContentsHandler. The logger may be nil.
func NewContentsHandler(repo ContentStore, objects ObjectGetter, pipeline ItemStorer, log logger.Interface) *ContentsHandler {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &ContentsHandler{repo: repo, objects: objects, pipeline: pipeline, log: log}
}

// ListContents returns a page of stored content with the unpaged total.
func (h *ContentsHandler) ListContents(c *gin.Context) {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil || skip < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "skip must be a non-negative integer"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit < 1 || limit > maxListLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be between 1 and %d", maxListLimit)})
		return
	}
	source := c.Query("source")

	ctx := c.Request.Context()
	total, err := h.repo.Count(ctx, source)
	if err != nil {
		h.log.Error("Failed to count contents", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list contents"})
		return
	}
	items, err := h.repo.List(ctx, skip, limit, source)
	if err != nil {
		h.log.Error("Failed to list contents", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list contents"})
		return
	}
	if items == nil {
		items = []*domain.Content{}
	}

	c.JSON(http.StatusOK, gin.H{"total": total, "items": items})
}

// GetContent returns one stored content record.
func (h *ContentsHandler) GetContent(c *gin.Context) {
	id, ok := h.contentID(c)
	if !ok {
		return
	}
	content, ok := h.loadContent(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, content)
}

// GetContentBody streams the stored body text for one content record.
func (h *ContentsHandler) GetContentBody(c *gin.Context) {
	id, ok := h.contentID(c)
	if !ok {
		return
	}
	content, ok := h.loadContent(c, id)
	if !ok {
		return
	}

	body, err := h.objects.Get(c.Request.Context(), content.BodyRef)
	if err != nil {
		h.log.Error("Stored body unavailable",
			"id", id,
			"body_ref", content.BodyRef,
			"error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored body unavailable"})
		return
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", body)
}

// createContentRequest is the POST payload; url and source are required.
type createContentRequest struct {
	URL         string     `json:"url"`
	Source      string     `json:"source"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Body        string     `json:"body"`
	PublishedAt *time.Time `json:"published_at"`
}

// CreateContent stores a submitted item through the ingest pipeline.
func (h *ContentsHandler) CreateContent(c *gin.Context) {
	var req createContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.URL == "" || req.Source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url and source are required"})
		return
	}

	item := &domain.Item{
		URL:         req.URL,
		Title:       req.Title,
		Body:        req.Body,
		Source:      req.Source,
		Author:      req.Author,
		PublishedAt: req.PublishedAt,
	}

	ctx := c.Request.Context()
	stored, err := h.pipeline.ProcessItem(ctx, item)
	if err != nil {
		h.log.Error("Failed to store submitted content", "url", req.URL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store content"})
		return
	}
	if !stored {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("content with url %s already exists", req.URL)})
		return
	}

	content, err := h.repo.GetByURL(ctx, req.URL)
	if err != nil {
		// The row landed; only the read-back failed.
		h.log.Error("Failed to load stored content", "url", req.URL, "error", err)
		c.JSON(http.StatusOK, gin.H{"url": req.URL, "source": req.Source})
		return
	}
	c.JSON(http.StatusOK, content)
}

// contentID parses the :id route parameter.
func (h *ContentsHandler) contentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return 0, false
	}
	return id, true
}

// loadContent fetches one row, writing the error response itself when the
// lookup fails.
func (h *ContentsHandler) loadContent(c *gin.Context, id int64) (*domain.Content, bool) {
	content, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("content %d not found", id)})
			return nil, false
		}
		h.log.Error("Failed to load content", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load content"})
		return nil, false
	}
	return content, true
}
