package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/campusdesk/complaint-api/internal/models"
	appErrors "github.com/campusdesk/complaint-api/pkg/errors"
	"github.com/campusdesk/complaint-api/pkg/export"
)

// ExportFormat names a supported register rendering.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Enabled bool
	MaxRows int
}

// ExportResult is one rendered complaint register.
type ExportResult struct {
	Payload     []byte
	ContentType string
	Filename    string
}

// ExportService renders the complaint register synchronously. The register is
// small enough that rendering inline beats queueing.
type ExportService struct {
	complaints complaintSnapshotter
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
	now        func() time.Time
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(complaints complaintSnapshotter, csv csvRenderer, pdf pdfRenderer, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 10000
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{complaints: complaints, csv: csv, pdf: pdf, logger: logger, now: time.Now, cfg: cfg}
}

// Generate renders the full complaint register in the requested format.
func (s *ExportService) Generate(ctx context.Context, actor models.Actor, format ExportFormat) (*ExportResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}

	snapshot, err := s.complaints.Snapshot(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint snapshot")
	}
	if len(snapshot) > s.cfg.MaxRows {
		snapshot = snapshot[:s.cfg.MaxRows]
	}

	dataset := buildRegisterDataset(snapshot)

	var payload []byte
	var contentType string
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Complaint Register")
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("complaints_%s.%s", s.now().UTC().Format("20060102_150405"), format)
	return &ExportResult{Payload: payload, ContentType: contentType, Filename: filename}, nil
}

func buildRegisterDataset(snapshot []models.Complaint) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"ID", "Title", "Category", "Priority", "Status", "Submitted By", "Assigned To", "Anonymous", "Rating", "Created At", "Updated At"},
	}
	for i := range snapshot {
		c := &snapshot[i]
		submitter := c.SubmitterName
		if c.Anonymous {
			submitter = "Anonymous"
		}
		assignee := ""
		if c.AssigneeName != nil {
			assignee = *c.AssigneeName
		}
		rating := ""
		if c.FeedbackRating != nil {
			rating = strconv.Itoa(*c.FeedbackRating)
		}
		anonymous := "No"
		if c.Anonymous {
			anonymous = "Yes"
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":           c.ID,
			"Title":        c.Title,
			"Category":     c.Category,
			"Priority":     string(c.Priority),
			"Status":       string(c.Status),
			"Submitted By": submitter,
			"Assigned To":  assignee,
			"Anonymous":    anonymous,
			"Rating":       rating,
			"Created At":   c.CreatedAt.UTC().Format(time.RFC3339),
			"Updated At":   c.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return dataset
}
