package renamer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrenamer/internal/models"
	"pdfrenamer/internal/pdftest"
	"pdfrenamer/internal/service/ai"
	"pdfrenamer/internal/session"
)

type fakeChatModel struct {
	reply string
	err   error
	calls atomic.Int32
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{Role: schema.Assistant, Content: f.reply}, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type staticSource struct {
	model model.BaseChatModel
	err   error
}

func (s staticSource) Load(context.Context) (model.BaseChatModel, error) { return s.model, s.err }
func (s staticSource) Identity() string                                   { return "fake/test" }

type memHistory struct {
	mu   sync.Mutex
	recs []models.HistoryRecord
}

func (h *memHistory) Record(_ context.Context, rec models.HistoryRecord) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recs = append(h.recs, rec)
	return int64(len(h.recs)), nil
}

func newService(cm model.BaseChatModel, hist HistoryRecorder) *Service {
	return NewService(staticSource{model: cm}, ai.NewTitleGenerator(ai.TitleOptions{}, nil), hist)
}

func TestProcessBatchRenamesReport(t *testing.T) {
	fake := &fakeChatModel{reply: "Quarterly Revenue Growth Report. Fiscal Year 2024"}
	hist := &memHistory{}
	svc := newService(fake, hist)
	reg := session.NewRegistry()
	content := pdftest.Build("Quarterly Revenue Growth Report for Fiscal Year 2024")

	report := svc.ProcessBatch(context.Background(), "s1", reg, []models.UploadedFile{{Name: "report.pdf", Content: content}})
	require.Empty(t, report.Warnings)
	require.Len(t, report.Added, 1)
	assert.Equal(t, "Quarterly Revenue Growth Report.pdf", report.Added[0].ProposedName)

	entry, ok := reg.Get("report.pdf")
	require.True(t, ok)
	assert.Equal(t, content, entry.Content)
	assert.Equal(t, session.Listing, reg.State())

	require.Len(t, hist.recs, 1)
	assert.Equal(t, models.StatusRenamed, hist.recs[0].Status)
	assert.Equal(t, "s1", hist.recs[0].SessionID)
}

func TestProcessBatchIsIdempotentPerName(t *testing.T) {
	fake := &fakeChatModel{reply: "First Title"}
	svc := newService(fake, nil)
	reg := session.NewRegistry()
	ctx := context.Background()

	first := models.UploadedFile{Name: "doc.pdf", Content: pdftest.Build("first upload")}
	second := models.UploadedFile{Name: "doc.pdf", Content: pdftest.Build("a different document")}

	svc.ProcessBatch(ctx, "s", reg, []models.UploadedFile{first})
	report := svc.ProcessBatch(ctx, "s", reg, []models.UploadedFile{second})

	assert.Equal(t, []string{"doc.pdf"}, report.Skipped)
	assert.Empty(t, report.Added)
	assert.Equal(t, int32(1), fake.calls.Load())
	assert.Equal(t, 1, reg.Len())
	entry, _ := reg.Get("doc.pdf")
	assert.Equal(t, first.Content, entry.Content)
}

func TestProcessBatchSkipsFailuresAndContinues(t *testing.T) {
	fake := &fakeChatModel{reply: "Good Document"}
	hist := &memHistory{}
	svc := newService(fake, hist)
	reg := session.NewRegistry()

	files := []models.UploadedFile{
		{Name: "notes.txt", Content: []byte("plain text, not a pdf")},
		{Name: "blank.pdf", Content: pdftest.Build("    ")},
		{Name: "empty.pdf", Content: pdftest.Build()},
		{Name: "good.pdf", Content: pdftest.Build("A perfectly readable page")},
	}
	report := svc.ProcessBatch(context.Background(), "s", reg, files)

	require.Len(t, report.Warnings, 3)
	assert.Equal(t, models.StatusRejected, report.Warnings[0].Status)
	assert.Equal(t, models.StatusExtractionFailed, report.Warnings[1].Status)
	assert.Equal(t, models.StatusExtractionFailed, report.Warnings[2].Status)
	assert.Contains(t, report.Warnings[0].Message, "notes.txt")

	require.Len(t, report.Added, 1)
	assert.Equal(t, "Good Document.pdf", report.Added[0].ProposedName)
	assert.Equal(t, 1, reg.Len())
	assert.False(t, reg.Has("blank.pdf"))
	assert.Equal(t, int32(1), fake.calls.Load())
	assert.Len(t, hist.recs, 4)
}

func TestProcessBatchTitleFailureLeavesFileUnregistered(t *testing.T) {
	fake := &fakeChatModel{err: errors.New("inference timed out")}
	svc := newService(fake, nil)
	reg := session.NewRegistry()
	file := models.UploadedFile{Name: "a.pdf", Content: pdftest.Build("Some text")}

	report := svc.ProcessBatch(context.Background(), "s", reg, []models.UploadedFile{file})
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, models.StatusTitleFailed, report.Warnings[0].Status)
	assert.Contains(t, report.Warnings[0].Message, "inference timed out")
	assert.Equal(t, session.Idle, reg.State())

	fake.err = nil
	fake.reply = "Recovered Title"
	report = svc.ProcessBatch(context.Background(), "s", reg, []models.UploadedFile{file})
	require.Len(t, report.Added, 1, "failed names are retried on the next upload")
}

func TestProcessBatchModelUnavailable(t *testing.T) {
	svc := NewService(staticSource{err: ai.ErrNoProvider}, ai.NewTitleGenerator(ai.TitleOptions{}, nil), nil)
	reg := session.NewRegistry()
	report := svc.ProcessBatch(context.Background(), "s", reg, []models.UploadedFile{
		{Name: "a.pdf", Content: pdftest.Build("Some text")},
	})
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, models.StatusTitleFailed, report.Warnings[0].Status)
	assert.Zero(t, reg.Len())
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Board Minutes.pdf", FileName("Board Minutes"))
	assert.Equal(t, "Q1 Q2 Plan.pdf", FileName("Q1/Q2\\ Plan"))
	assert.Equal(t, "Tab Separated.pdf", FileName("Tab\tSeparated\x00"))
	assert.Equal(t, "", FileName(" / "))
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF(pdftest.Build("x")))
	assert.True(t, IsPDF(pdftest.WithPrefix("\x00\x00junk\n", pdftest.Build("x"))))
	assert.False(t, IsPDF([]byte("hello")))
	assert.False(t, IsPDF(nil))
}

func TestProcessBatchAcceptsLeadingJunk(t *testing.T) {
	fake := &fakeChatModel{reply: "Scanned Invoice"}
	svc := newService(fake, nil)
	reg := session.NewRegistry()
	content := pdftest.WithPrefix("MIME-Version: 1.0\r\n\r\n", pdftest.Build("Invoice 2024-117 from Acme"))

	report := svc.ProcessBatch(context.Background(), "s", reg, []models.UploadedFile{{Name: "scan.pdf", Content: content}})
	require.Empty(t, report.Warnings)
	require.Len(t, report.Added, 1)
	assert.Equal(t, "Scanned Invoice.pdf", report.Added[0].ProposedName)

	entry, _ := reg.Get("scan.pdf")
	assert.Equal(t, content, entry.Content, "stored bytes are the upload, junk included")
}
