package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/export"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/history"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/plans"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/store"
)

type recordHistoryRequest struct {
	OriginalText   string  `json:"originalText" binding:"required"`
	ResultText     string  `json:"resultText" binding:"required"`
	Mode           string  `json:"mode"`
	SourceLanguage string  `json:"sourceLanguage"`
	TargetLanguage string  `json:"targetLanguage"`
	Quality        float64 `json:"quality"`
}

// RecordHistory stores a completed operation for the authenticated user.
func (s *Server) RecordHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	typ, ok := historyTypeParam(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRecordBodyBytes)
	var req recordHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if len(req.OriginalText) > maxTextBytes || len(req.ResultText) > maxTextBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "text too large"})
		return
	}
	if typ == models.HistoryTranslation && (req.SourceLanguage == "" || req.TargetLanguage == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sourceLanguage and targetLanguage are required"})
		return
	}

	entry := models.HistoryEntry{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           typ,
		OriginalText:   req.OriginalText,
		ResultText:     req.ResultText,
		Mode:           req.Mode,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Quality:        req.Quality,
		Status:         models.HistoryStatusCompleted,
		CreatedAt:      time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	if err := s.store.InsertHistory(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("user", userID).Str("type", string(typ)).Msg("record history failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save history"})
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// ListHistory returns the most recent entries of one type.
func (s *Server) ListHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	typ, ok := historyTypeParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	entries, err := s.store.ListHistory(ctx, userID, typ, s.cfg.Usage.HistoryLimit)
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Str("type", string(typ)).Msg("list history failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	paraphrases, summaries, translations := history.Split(entries)
	var items any
	switch typ {
	case models.HistoryParaphrase:
		items = nonNil(paraphrases)
	case models.HistorySummary:
		items = nonNil(summaries)
	default:
		items = nonNil(translations)
	}
	c.JSON(http.StatusOK, gin.H{
		"type":    typ,
		"count":   len(entries),
		"entries": items,
	})
}

// GetHistoryFeed merges the three histories into one feed. Query parameters:
// q, type, status, sort (date|type|status), order (asc|desc), grouped.
func (s *Server) GetHistoryFeed(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	types := []models.HistoryType{models.HistoryParaphrase, models.HistorySummary, models.HistoryTranslation}
	results := make([][]models.HistoryEntry, len(types))
	g, gctx := errgroup.WithContext(ctx)
	for i, typ := range types {
		i, typ := i, typ
		g.Go(func() error {
			entries, err := s.store.ListHistory(gctx, userID, typ, s.cfg.Usage.HistoryLimit)
			if err != nil {
				return fmt.Errorf("%s: %w", typ, err)
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("history feed failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	var all []models.HistoryEntry
	for _, r := range results {
		all = append(all, r...)
	}
	paraphrases, summaries, translations := history.Split(all)

	q := history.Query{
		Search: c.Query("q"),
		Type:   c.Query("type"),
		Status: c.Query("status"),
		SortBy: c.DefaultQuery("sort", history.SortDate),
		Order:  c.DefaultQuery("order", "desc"),
	}
	items := history.Aggregate(paraphrases, summaries, translations, q)

	resp := gin.H{
		"count": len(items),
		"stats": history.Stats(items),
	}
	if isTruthy(c.Query("grouped")) {
		resp["groups"] = nonNil(history.GroupByDay(items, s.cfg.Usage.Location))
	} else {
		resp["items"] = items
	}
	c.JSON(http.StatusOK, resp)
}

// ExportHistory downloads one entry as PDF or plain text. Export is a paid
// feature.
func (s *Server) ExportHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	typ, ok := historyTypeParam(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if res := s.access.CheckFeatureAccess(userID, plans.FeatureExport); !res.HasAccess {
		c.JSON(accessStatus(res), res)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	entry, err := s.store.GetHistory(ctx, userID, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && entry.Type != typ) {
		c.JSON(http.StatusNotFound, gin.H{"error": "history entry not found"})
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("load history entry failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	data, err := export.Render(entry, format)
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Str("format", string(format)).Msg("export failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export"})
		return
	}

	filename := strings.ReplaceAll(export.Filename(entry, format), `"`, "")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, format.ContentType(), data)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
