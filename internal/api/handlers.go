package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"pdfrenamer/internal/models"
	"pdfrenamer/internal/service/renamer"
	"pdfrenamer/internal/session"
)

const refreshHint = "please refresh the page and try again"

var (
	errNoFiles     = errors.New("select at least one PDF file")
	errEmptyName   = errors.New("proposed name must not be empty")
	errUnknownFile = errors.New("file not found")
)

// BatchProcessor registers uploads into a session registry.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, sessionID string, reg *session.Registry, files []models.UploadedFile) renamer.BatchReport
}

// HistoryLister reads the per-session processing log.
type HistoryLister interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.HistoryRecord, error)
}

// Handler wires HTTP routes to the renamer and the session store.
type Handler struct {
	renamer  BatchProcessor
	sessions *session.Store
	history  HistoryLister
}

// NewHandler constructs a Handler. history may be nil.
func NewHandler(processor BatchProcessor, sessions *session.Store, history HistoryLister) *Handler {
	return &Handler{
		renamer:  processor,
		sessions: sessions,
		history:  history,
	}
}

// RegisterRoutes attaches the page, the JSON API and the recovery handler.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(pageTemplate)
	router.Use(h.Recovery())

	router.GET("/api/healthz", h.healthz)

	withSession := router.Group("/")
	withSession.Use(h.sessions.Middleware(), h.sessions.CSRFMiddleware())
	withSession.GET("/", h.showPage)
	withSession.POST("/upload", h.uploadPage)
	withSession.POST("/rename", h.renamePage)
	withSession.POST("/clear", h.clearPage)

	api := withSession.Group("/api")
	api.GET("/files", h.listFiles)
	api.POST("/files", h.uploadFiles)
	api.DELETE("/files", h.clearFiles)
	api.PATCH("/files/:name", h.renameFile)
	api.GET("/files/:name/download", h.downloadFile)
	api.GET("/history", h.listHistory)
}

// Recovery turns a panic that escaped every handler into a fatal banner or
// a JSON error telling the user to reload.
func (h *Handler) Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.Printf("unhandled failure on %s %s: %v", c.Request.Method, c.Request.URL.Path, rec)
		if wantsJSON(c) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "unexpected error",
				"hint":  refreshHint,
			})
			return
		}
		c.HTML(http.StatusInternalServerError, pageTemplateName, pageData{
			Fatal: "Something went wrong and the page state may be inconsistent. Please reload the page and start again.",
		})
		c.Abort()
	})
}

func wantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

func (h *Handler) currentSession(c *gin.Context) *session.Session {
	sess, ok := session.FromContext(c)
	if !ok {
		// routes are always mounted behind the session middleware
		panic("session middleware not installed")
	}
	return sess
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listFiles(c *gin.Context) {
	sess := h.currentSession(c)
	c.JSON(http.StatusOK, gin.H{
		"state": sess.Registry.State().String(),
		"files": sess.Registry.List(),
	})
}

func (h *Handler) uploadFiles(c *gin.Context) {
	sess := h.currentSession(c)
	files, rejected, err := readUploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report := h.renamer.ProcessBatch(c.Request.Context(), sess.ID, sess.Registry, files)
	report.Warnings = append(rejected, report.Warnings...)
	c.JSON(http.StatusOK, gin.H{
		"state":    sess.Registry.State().String(),
		"added":    nonNilEntries(report.Added),
		"skipped":  report.Skipped,
		"warnings": report.Warnings,
		"files":    sess.Registry.List(),
	})
}

type renameRequest struct {
	ProposedName string `json:"proposed_name"`
}

func (h *Handler) renameFile(c *gin.Context) {
	sess := h.currentSession(c)
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	name := c.Param("name")
	if err := applyRename(sess.Registry, name, req.ProposedName); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errUnknownFile) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	entry, _ := sess.Registry.Get(name)
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) clearFiles(c *gin.Context) {
	sess := h.currentSession(c)
	sess.Registry.ClearAll()
	c.Status(http.StatusNoContent)
}

func (h *Handler) downloadFile(c *gin.Context) {
	sess := h.currentSession(c)
	entry, ok := sess.Registry.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownFile.Error()})
		return
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": entry.ProposedName})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, "application/pdf", entry.Content)
}

func (h *Handler) listHistory(c *gin.Context) {
	sess := h.currentSession(c)
	records := []models.HistoryRecord{}
	if h.history != nil {
		got, err := h.history.ListBySession(c.Request.Context(), sess.ID, 0)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if got != nil {
			records = got
		}
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}

// applyRename stores proposed exactly as typed. Blank names are refused here
// because they cannot be offered as a download name.
func applyRename(reg *session.Registry, original, proposed string) error {
	if strings.TrimSpace(proposed) == "" {
		return errEmptyName
	}
	if !reg.SetProposedName(original, proposed) {
		return errUnknownFile
	}
	return nil
}

// readUploads collects the "files" parts of a multipart request. Only the
// base name of each upload is kept; parts without a usable name are
// returned as warnings instead.
func readUploads(c *gin.Context) ([]models.UploadedFile, []renamer.Warning, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, errNoFiles
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return nil, nil, errNoFiles
	}
	files := make([]models.UploadedFile, 0, len(headers))
	var warnings []renamer.Warning
	for _, fh := range headers {
		name, ok := uploadName(fh.Filename)
		if !ok {
			warnings = append(warnings, renamer.Warning{
				File:    fh.Filename,
				Status:  models.StatusRejected,
				Message: fmt.Sprintf("%q was skipped: the file has no usable name", fh.Filename),
			})
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		files = append(files, models.UploadedFile{Name: name, Content: data})
	}
	return files, warnings, nil
}

// uploadName reduces a client file name to its base. Names that would be
// rewritten by URL path cleaning cannot be addressed later and are refused.
func uploadName(raw string) (string, bool) {
	name := path.Base(strings.ReplaceAll(raw, "\\", "/"))
	switch name {
	case ".", "..", "/":
		return "", false
	}
	if strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}

func nonNilEntries(entries []models.Entry) []models.Entry {
	if entries == nil {
		return []models.Entry{}
	}
	return entries
}
