package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/mikan-comb/app/feed"
	"github.com/lysyi3m/mikan-comb/app/session"
	"github.com/lysyi3m/mikan-comb/app/staging"
)

func NewHandler(sess *session.Session, version string, defaultMode session.Mode) *Handler {
	return &Handler{
		session:     sess,
		version:     version,
		defaultMode: defaultMode,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"stats":     h.session.Stats(),
	})
}

func (h *Handler) GetInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "Mikan Comb",
		"version":     h.version,
		"description": "Mikan release feed with on-demand detail enrichment, magnet resolution and staging",
		"endpoints": map[string]string{
			"health":  "/health",
			"items":   "/items",
			"item":    "/items/<key>",
			"select":  "/items/<key>/select (POST)",
			"action":  "/items/<key>/actions/<browser_pikpak|download|copy|default> (POST)",
			"refresh": "/refresh (POST)",
			"staging": "/staging",
			"stage":   "/staging/<key> (POST, DELETE)",
			"clear":   "/staging (DELETE)",
			"export":  "/staging/export (POST)",
		},
	})
}

func (h *Handler) ListItems(c *gin.Context) {
	today, earlier := h.session.Sections()

	c.JSON(http.StatusOK, gin.H{
		"today":   h.views(today),
		"earlier": h.views(earlier),
		"counts": gin.H{
			"today":   len(today),
			"earlier": len(earlier),
			"total":   len(today) + len(earlier),
		},
	})
}

func (h *Handler) GetItem(c *gin.Context) {
	item, ok := h.session.Item(c.Param("key"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"item":     h.view(item),
		"markdown": feed.DetailMarkdown(item),
	})
}

func (h *Handler) SelectItem(c *gin.Context) {
	key := c.Param("key")

	item, outcome, err := h.session.Select(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"item":     h.view(item),
		"outcome":  outcome.String(),
		"markdown": feed.DetailMarkdown(item),
	})
}

func (h *Handler) ExecuteAction(c *gin.Context) {
	key := c.Param("key")

	raw := c.Param("mode")
	if raw == "default" {
		raw = string(h.defaultMode)
	}

	mode, err := session.ParseMode(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fx := session.NewRecorder()
	if err := h.session.Execute(c.Request.Context(), fx, key, mode); err != nil {
		if errors.Is(err, session.ErrUnknownItem) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
			return
		}
		slog.Error("Action failed", "key", key, "mode", string(mode), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "effects": fx.Effects()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mode":    string(mode),
		"effects": fx.Effects(),
	})
}

func (h *Handler) Refresh(c *gin.Context) {
	fx := session.NewRecorder()

	result, err := h.session.Load(c.Request.Context(), fx, true)
	if err != nil {
		slog.Error("Feed refresh failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "effects": fx.Effects()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":  result,
		"effects": fx.Effects(),
	})
}

func (h *Handler) ListStaged(c *gin.Context) {
	items := h.session.Staged()

	c.JSON(http.StatusOK, gin.H{
		"items": h.views(items),
		"total": len(items),
	})
}

func (h *Handler) ClearStaged(c *gin.Context) {
	cleared := len(h.session.Staged())
	h.session.ClearStaged()

	c.JSON(http.StatusOK, gin.H{
		"cleared": cleared,
		"total":   0,
	})
}

func (h *Handler) StageItem(c *gin.Context) {
	fx := session.NewRecorder()

	err := h.session.Stage(fx, c.Param("key"))
	switch {
	case errors.Is(err, session.ErrUnknownItem):
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
	case errors.Is(err, staging.ErrAlreadyStaged):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "effects": fx.Effects()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusCreated, gin.H{
			"total":   len(h.session.Staged()),
			"effects": fx.Effects(),
		})
	}
}

func (h *Handler) UnstageItem(c *gin.Context) {
	fx := session.NewRecorder()
	removed := h.session.Unstage(fx, c.Param("key"))

	c.JSON(http.StatusOK, gin.H{
		"removed": removed,
		"total":   len(h.session.Staged()),
		"effects": fx.Effects(),
	})
}

func (h *Handler) ExportStaged(c *gin.Context) {
	fx := session.NewRecorder()

	export, err := h.session.ExportStaged(c.Request.Context(), fx)
	switch {
	case errors.Is(err, staging.ErrNothingStaged):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "effects": fx.Effects()})
	case errors.Is(err, staging.ErrNothingFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "total": export.Total, "effects": fx.Effects()})
	case err != nil:
		slog.Error("Staged export failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "effects": fx.Effects()})
	default:
		c.JSON(http.StatusOK, gin.H{
			"export":  export,
			"effects": fx.Effects(),
		})
	}
}
