package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/procurement-api/internal/dto"
	"github.com/noah-isme/procurement-api/internal/models"
	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
	"github.com/noah-isme/procurement-api/pkg/export"
)

// Supported export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
)

var exportContentTypes = map[string]string{
	ExportFormatCSV:  "text/csv; charset=utf-8",
	ExportFormatPDF:  "application/pdf",
	ExportFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

var disposalColumns = []export.Column{
	{Key: "id", Label: "ID", Width: 1.6},
	{Key: "asset_tag", Label: "Asset Tag", Width: 1},
	{Key: "asset_name", Label: "Asset", Width: 1.6},
	{Key: "department", Label: "Department", Width: 1.2},
	{Key: "source_type", Label: "Source", Width: 0.8},
	{Key: "status", Label: "Status", Width: 0.8},
	{Key: "reason", Label: "Reason", Width: 2},
	{Key: "method", Label: "Method", Width: 0.9},
	{Key: "requested_by", Label: "Requested By", Width: 1.2},
	{Key: "request_date", Label: "Request Date", Width: 1.2},
}

type queueLister interface {
	ListFor(ctx context.Context, query dto.DisposalQueueQuery, caller models.Viewer) ([]models.DisposalRecord, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportFile is a rendered attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// ExportService renders the disposal queue into downloadable files.
type ExportService struct {
	queue     queueLister
	renderers map[string]datasetRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with the CSV, PDF and XLSX renderers.
func NewExportService(queue queueLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		queue: queue,
		renderers: map[string]datasetRenderer{
			ExportFormatCSV:  export.NewCSVExporter(),
			ExportFormatPDF:  export.NewPDFExporter(),
			ExportFormatXLSX: export.NewXLSXExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

// ExportDisposals lists the queue with the same authorization as the list
// endpoint and renders it in the requested format.
func (s *ExportService) ExportDisposals(ctx context.Context, query dto.DisposalExportQuery, caller models.Viewer) (*ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(query.Format))
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Validation("format must be csv, pdf or xlsx")
	}

	records, err := s.queue.ListFor(ctx, query.DisposalQueueQuery, caller)
	if err != nil {
		return nil, err
	}

	dataset := buildDisposalDataset(records, query.DisposalQueueQuery)
	body, err := renderer.Render(dataset)
	if err != nil {
		s.logger.Error("disposal export failed", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportFile{
		Filename:    s.buildFilename(query.DisposalQueueQuery, format),
		ContentType: exportContentTypes[format],
		Body:        body,
		Rows:        len(records),
	}, nil
}

func buildDisposalDataset(records []models.DisposalRecord, query dto.DisposalQueueQuery) export.Dataset {
	title := "Disposal Requests"
	if query.Type == models.QueueTypeRecords {
		title = "Disposal Records"
	}
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		requestedBy := deref(rec.RequestedByName)
		if requestedBy == "" {
			requestedBy = deref(rec.RequestedBy)
		}
		rows = append(rows, map[string]string{
			"id":           rec.ID,
			"asset_tag":    rec.AssetTag,
			"asset_name":   rec.AssetName,
			"department":   rec.Department,
			"source_type":  string(rec.SourceType),
			"status":       rec.Status,
			"reason":       deref(rec.Reason),
			"method":       deref(rec.Method),
			"requested_by": requestedBy,
			"request_date": rec.RequestDate.UTC().Format("2006-01-02 15:04"),
		})
	}
	return export.Dataset{Title: title, Columns: disposalColumns, Rows: rows}
}

func (s *ExportService) buildFilename(query dto.DisposalQueueQuery, format string) string {
	queueType := string(query.Type)
	if queueType == "" {
		queueType = string(models.QueueTypeRequests)
	}
	parts := []string{"disposals", queueType}
	if query.RecordStatus != "" {
		parts = append(parts, string(query.RecordStatus))
	}
	if query.Department != "" {
		parts = append(parts, sanitizeFilename(query.Department))
	}
	parts = append(parts, s.now().UTC().Format("20060102_150405"))
	return fmt.Sprintf("%s.%s", strings.Join(parts, "_"), format)
}

func sanitizeFilename(raw string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 60 {
		return result[:60]
	}
	return result
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
