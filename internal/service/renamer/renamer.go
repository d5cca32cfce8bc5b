// Package renamer drives an upload batch through extraction, title
// generation and registration.
package renamer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/model"

	"pdfrenamer/internal/extract"
	"pdfrenamer/internal/models"
	"pdfrenamer/internal/service/ai"
	"pdfrenamer/internal/session"
)

// ErrNotPDF rejects uploads whose content does not sniff as a PDF.
var ErrNotPDF = errors.New("file is not a pdf")

// ModelSource hands out the shared summarization model.
type ModelSource interface {
	Load(ctx context.Context) (model.BaseChatModel, error)
	Identity() string
}

// HistoryRecorder persists per-file outcomes. It may be nil.
type HistoryRecorder interface {
	Record(ctx context.Context, rec models.HistoryRecord) (int64, error)
}

// Warning explains why one file of a batch was skipped.
type Warning struct {
	File    string               `json:"file"`
	Status  models.HistoryStatus `json:"status"`
	Message string               `json:"message"`
}

// BatchReport summarizes one upload batch.
type BatchReport struct {
	Added    []models.Entry `json:"added"`
	Skipped  []string       `json:"skipped,omitempty"`
	Warnings []Warning      `json:"warnings,omitempty"`
}

type Service struct {
	models  ModelSource
	titles  *ai.TitleGenerator
	history HistoryRecorder
}

func NewService(source ModelSource, titles *ai.TitleGenerator, history HistoryRecorder) *Service {
	return &Service{models: source, titles: titles, history: history}
}

// ProcessBatch registers every file of the batch whose name is not yet in
// reg. Names already registered are skipped without touching the model.
// Failures become warnings; the batch always runs to the end.
func (s *Service) ProcessBatch(ctx context.Context, sessionID string, reg *session.Registry, files []models.UploadedFile) BatchReport {
	var report BatchReport
	for _, file := range files {
		if reg.Has(file.Name) {
			report.Skipped = append(report.Skipped, file.Name)
			continue
		}
		proposed, status, err := s.Propose(ctx, file.Content)
		if err != nil {
			warn := Warning{File: file.Name, Status: status, Message: warningMessage(file.Name, status, err)}
			report.Warnings = append(report.Warnings, warn)
			s.record(ctx, sessionID, file.Name, "", status, err.Error())
			continue
		}
		if !reg.Upsert(file.Name, file.Content, proposed) {
			report.Skipped = append(report.Skipped, file.Name)
			continue
		}
		entry, _ := reg.Get(file.Name)
		report.Added = append(report.Added, entry)
		s.record(ctx, sessionID, file.Name, proposed, models.StatusRenamed, "")
	}
	return report
}

// Propose derives a file name for content. On failure the returned status
// says which stage gave up.
func (s *Service) Propose(ctx context.Context, content []byte) (string, models.HistoryStatus, error) {
	if !IsPDF(content) {
		return "", models.StatusRejected, ErrNotPDF
	}
	text := extract.FirstPageText(content)
	if !text.OK() {
		return "", models.StatusExtractionFailed, text.Err
	}
	chatModel, err := s.models.Load(ctx)
	if err != nil {
		return "", models.StatusTitleFailed, err
	}
	s.titles.SetIdentity(s.models.Identity())
	title := s.titles.Generate(ctx, chatModel, text.Text)
	if !title.OK() {
		return "", models.StatusTitleFailed, title.Err
	}
	name := FileName(title.Title)
	if name == "" {
		return "", models.StatusTitleFailed, ai.ErrNoTitle
	}
	return name, models.StatusRenamed, nil
}

// IsPDF reports whether a PDF header appears where readers look for one,
// which tolerates junk before the header.
func IsPDF(content []byte) bool {
	return extract.HeaderOffset(content) >= 0
}

// FileName turns a title into "<title>.pdf", dropping characters that would
// escape the download directory or break the header.
func FileName(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return ' '
		}
		return r
	}, title)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return ""
	}
	return cleaned + ".pdf"
}

func (s *Service) record(ctx context.Context, sessionID, original, proposed string, status models.HistoryStatus, reason string) {
	if s.history == nil {
		return
	}
	_, err := s.history.Record(ctx, models.HistoryRecord{
		SessionID:    sessionID,
		OriginalName: original,
		ProposedName: proposed,
		Status:       status,
		Reason:       reason,
	})
	if err != nil {
		log.Printf("record history for %s failed: %v", original, err)
	}
}

func warningMessage(name string, status models.HistoryStatus, err error) string {
	switch status {
	case models.StatusRejected:
		return fmt.Sprintf("%s was skipped: only PDF files are accepted", name)
	case models.StatusExtractionFailed:
		return fmt.Sprintf("could not read text from %s: %v", name, err)
	default:
		return fmt.Sprintf("could not generate a title for %s: %v", name, err)
	}
}
