package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/z-wentao/docscribe/pkg/models"
	"github.com/z-wentao/docscribe/pkg/queue"
	"github.com/z-wentao/docscribe/pkg/scheduler"
	"github.com/z-wentao/docscribe/pkg/service"
	"github.com/z-wentao/docscribe/pkg/storage"
	"github.com/z-wentao/docscribe/pkg/templates"
	"github.com/z-wentao/docscribe/pkg/transcriber"
	"github.com/z-wentao/docscribe/pkg/transcription"
)

// App holds what the HTTP handlers need.
type App struct {
	store         storage.Store
	service       *service.Service
	uploadDir     string
	maxUploadSize int64
	log           zerolog.Logger
}

func (app *App) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(app.log))

	api := r.Group("/api")
	{
		api.GET("/ping", app.handlePing)
		api.GET("/jobs", app.handleListJobs)

		api.POST("/documents", app.handleUpload)
		api.GET("/documents", app.handleListDocuments)
		api.GET("/documents/:ref", app.handleGetDocument)
		api.DELETE("/documents/:ref", app.handleDeleteDocument)

		api.POST("/documents/:ref/transcription", app.handleSubmit)
		api.DELETE("/documents/:ref/transcription", app.handleCancel)
		api.GET("/documents/:ref/transcription/status", app.handleStatus)

		api.GET("/documents/:ref/transcript", app.handleTranscript)
		api.GET("/documents/:ref/transcript.srt", app.handleSubtitles("srt"))
		api.GET("/documents/:ref/transcript.vtt", app.handleSubtitles("vtt"))
	}
	return r
}

// requestLogger logs one line per request.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrDocumentNotFound), errors.Is(err, service.ErrNoTranscript):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrShutdown), errors.Is(err, queue.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (app *App) fail(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		app.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (app *App) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"version": "1.0.0",
	})
}

// isValidMediaFormat reports whether the extension is audio or video that
// ffmpeg can read.
func isValidMediaFormat(ext string) bool {
	_, ok := mediaTypes[strings.ToLower(ext)]
	return ok
}

// handleUpload stores the uploaded media on a new document and schedules
// its transcription.
func (app *App) handleUpload(c *gin.Context) {
	// 1. validate
	file, err := c.FormFile("media")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing media file"})
		return
	}
	ext := filepath.Ext(file.Filename)
	if !isValidMediaFormat(ext) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported media format %q", ext)})
		return
	}
	if file.Size > app.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file too large, max %.0f MB", float64(app.maxUploadSize)/1024/1024),
		})
		return
	}
	lang := strings.TrimSpace(c.PostForm("language"))

	// 2. save the file under a fresh ref
	ref := uuid.New().String()
	savePath := filepath.Join(app.uploadDir, ref+ext)
	if err := c.SaveUploadedFile(file, savePath); err != nil {
		app.fail(c, fmt.Errorf("save upload: %w", err))
		return
	}

	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mediaType(ext)
	}
	blob := models.Blob{Filename: file.Filename, MimeType: mimeType, Length: file.Size, Path: savePath}

	// 3. create the document
	doc := &storage.Document{
		Ref:        ref,
		Type:       documentType(mimeType),
		Title:      file.Filename,
		Properties: map[string]json.RawMessage{},
	}
	doc.Properties[transcription.PropMedia], _ = json.Marshal(blob)
	if lang != "" {
		doc.Properties[transcription.PropLanguage], _ = json.Marshal(lang)
	}
	if err := app.store.Create(c.Request.Context(), doc); err != nil {
		os.Remove(savePath)
		app.fail(c, err)
		return
	}

	app.log.Info().Str("doc", ref).Str("filename", file.Filename).Int64("size", file.Size).Msg("media uploaded")

	// 4. schedule the transcription when a model exists for the language
	ok, err := app.service.CanSubmit(c.Request.Context(), ref)
	if err != nil {
		app.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{
			"document": doc,
			"error":    fmt.Sprintf("no model available for language %s", lang),
		})
		return
	}
	if err := app.service.OnDocumentChanged(c.Request.Context(), ref, true); err != nil {
		app.fail(c, err)
		return
	}

	status := app.service.StatusOf(ref)
	c.JSON(http.StatusAccepted, gin.H{
		"document": doc,
		"status":   status,
		"message":  templates.StatusMessage(status),
	})
}

var mediaTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".mpeg": "video/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".webm": "video/webm",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

func mediaType(ext string) string {
	ext = strings.ToLower(ext)
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

func documentType(mimeType string) string {
	if strings.HasPrefix(mimeType, "video/") {
		return "Video"
	}
	return "Audio"
}

func (app *App) handleListDocuments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	docs, err := app.store.List(c.Request.Context(), limit)
	if err != nil {
		app.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "total": len(docs)})
}

func (app *App) handleGetDocument(c *gin.Context) {
	doc, err := app.store.Get(c.Request.Context(), c.Param("ref"))
	if err != nil {
		app.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// handleDeleteDocument stops any job first. A running job that reaches the
// save step afterwards finds the document gone and writes nothing.
func (app *App) handleDeleteDocument(c *gin.Context) {
	ref := c.Param("ref")
	app.service.Cancel(ref)

	doc, err := app.store.Get(c.Request.Context(), ref)
	if err != nil {
		app.fail(c, err)
		return
	}
	if err := app.store.Delete(c.Request.Context(), ref); err != nil {
		app.fail(c, err)
		return
	}

	var blob models.Blob
	if raw, ok := doc.Properties[transcription.PropMedia]; ok && json.Unmarshal(raw, &blob) == nil {
		if blob.IsLocal() && filepath.Dir(blob.Path) == filepath.Clean(app.uploadDir) {
			os.Remove(blob.Path)
		}
	}
	c.Status(http.StatusNoContent)
}

func (app *App) handleSubmit(c *gin.Context) {
	ref := c.Param("ref")

	ok, err := app.service.CanSubmit(c.Request.Context(), ref)
	if err != nil {
		app.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "no model available for the document language"})
		return
	}

	job, created, err := app.service.Submit(c.Request.Context(), ref)
	if err != nil {
		app.fail(c, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusAccepted
	}
	c.JSON(code, gin.H{"job": job, "created": created})
}

func (app *App) handleCancel(c *gin.Context) {
	if !app.service.Cancel(c.Param("ref")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active transcription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (app *App) handleStatus(c *gin.Context) {
	status := app.service.StatusOf(c.Param("ref"))
	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"message": templates.StatusMessage(status),
	})
}

func (app *App) handleTranscript(c *gin.Context) {
	t, err := app.service.Transcript(c.Request.Context(), c.Param("ref"))
	if err != nil {
		app.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sections": t.Sections(),
		"text":     t.Text(),
	})
}

func (app *App) handleSubtitles(format string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := c.Param("ref")
		t, err := app.service.Transcript(c.Request.Context(), ref)
		if err != nil {
			app.fail(c, err)
			return
		}

		contentType := "application/x-subrip; charset=utf-8"
		write := transcriber.WriteSRT
		if format == "vtt" {
			contentType = "text/vtt; charset=utf-8"
			write = transcriber.WriteVTT
		}
		c.Header("Content-Type", contentType)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.%s", ref, format))
		c.Status(http.StatusOK)
		if err := write(c.Writer, t); err != nil {
			app.log.Error().Err(err).Str("doc", ref).Msg("write subtitles")
		}
	}
}

func (app *App) handleListJobs(c *gin.Context) {
	type jobView struct {
		models.JobSnapshot
		Age     string `json:"age"`
		Message string `json:"message"`
	}

	now := time.Now()
	snaps := app.service.Jobs()
	jobs := make([]jobView, 0, len(snaps))
	for _, s := range snaps {
		status := app.service.StatusOf(s.Key.DocRef)
		if status == nil {
			// expired between List and StatusOf
			status = models.StatusFromSnapshot(s, 0, 0)
		}
		jobs = append(jobs, jobView{
			JobSnapshot: s,
			Age:         templates.FormatAge(s.CreatedAt, now),
			Message:     templates.StatusMessage(status),
		})
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}
