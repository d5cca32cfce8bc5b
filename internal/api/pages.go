package api

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"pdfrenamer/internal/models"
	"pdfrenamer/internal/service/renamer"
	"pdfrenamer/internal/session"
)

const pageTemplateName = "index.html"

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New(pageTemplateName).Funcs(template.FuncMap{
	"pathEscape": url.PathEscape,
}).ParseFS(templateFS, "templates/"+pageTemplateName))

type pageData struct {
	Fatal     string
	Notice    string
	Warnings  []renamer.Warning
	Skipped   []string
	Entries   []models.Entry
	Listing   bool
	CSRFToken string
}

func (h *Handler) render(c *gin.Context, status int, data pageData) {
	sess := h.currentSession(c)
	data.Entries = sess.Registry.List()
	data.Listing = sess.Registry.State() == session.Listing
	data.CSRFToken = session.CSRFTokenFromContext(c)
	c.HTML(status, pageTemplateName, data)
}

func (h *Handler) showPage(c *gin.Context) {
	h.render(c, http.StatusOK, pageData{})
}

func (h *Handler) uploadPage(c *gin.Context) {
	sess := h.currentSession(c)
	files, rejected, err := readUploads(c)
	if err != nil {
		h.render(c, http.StatusOK, pageData{Notice: err.Error()})
		return
	}
	report := h.renamer.ProcessBatch(c.Request.Context(), sess.ID, sess.Registry, files)
	report.Warnings = append(rejected, report.Warnings...)
	h.render(c, http.StatusOK, pageData{Warnings: report.Warnings, Skipped: report.Skipped})
}

func (h *Handler) renamePage(c *gin.Context) {
	sess := h.currentSession(c)
	if err := applyRename(sess.Registry, c.PostForm("original_name"), c.PostForm("proposed_name")); err != nil {
		h.render(c, http.StatusBadRequest, pageData{Notice: err.Error()})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) clearPage(c *gin.Context) {
	sess := h.currentSession(c)
	sess.Registry.ClearAll()
	c.Redirect(http.StatusSeeOther, "/")
}
