package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/entity"
	"github.com/joseph-ayodele/docintake/internal/repository"
)

// Service is a tiny façade over the job repository that produces XLSX bytes
// summarizing a finished batch.
type Service struct {
	repo   repository.JobRepository
	logger *slog.Logger
}

func NewService(repo repository.JobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportJobXLSX returns an XLSX workbook (as bytes) listing every file
// outcome of the job: one row per input file with the extracted headline
// fields for its detected document type.
func (s *Service) ExportJobXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error) {
	start := time.Now()

	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Documents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// Drop excelize's default sheet.
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"File",
		"Status",
		"Document Type",
		"Vendor/Party",
		"Total",
		"Date",
		"Confidence",
		"Needs Review",
		"Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, out := range job.Results {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, out.FileName)
		write(2, string(out.Status))
		if out.Result != nil {
			doc := out.Result
			write(3, string(doc.DocumentType))
			vendor, total, date := headlineFields(doc)
			write(4, vendor)
			if total > 0 {
				write(5, total)
			}
			write(6, date)
			write(7, doc.Confidence)
			if doc.NeedsReview {
				write(8, "yes")
			} else {
				write(8, "no")
			}
		}
		write(9, truncate(out.Error, 140))
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 32) // file
	_ = f.SetColWidth(sheet, "B", "C", 14) // status, type
	_ = f.SetColWidth(sheet, "D", "D", 28) // vendor
	_ = f.SetColWidth(sheet, "E", "F", 14) // total, date
	_ = f.SetColWidth(sheet, "G", "H", 12) // confidence, review
	_ = f.SetColWidth(sheet, "I", "I", 48) // error

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"job_id", jobID.String(),
		"rows", len(job.Results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// headlineFields picks the vendor-ish name, the headline amount, and the
// primary date for the row, per document type.
func headlineFields(doc *entity.ProcessedDocument) (vendor string, total float64, date string) {
	switch doc.DocumentType {
	case constants.Receipt:
		if r := doc.Fields.Receipt; r != nil {
			return r.Vendor, r.Total, fmtDate(r.Date)
		}
	case constants.Invoice:
		if inv := doc.Fields.Invoice; inv != nil {
			return inv.Vendor, inv.Total, fmtDate(inv.IssueDate)
		}
	case constants.Contract:
		if c := doc.Fields.Contract; c != nil {
			return strings.Join(c.Parties, " / "), c.Value, fmtDate(c.EffectiveDate)
		}
	case constants.Statement:
		if st := doc.Fields.Statement; st != nil {
			return st.Institution, st.ClosingBalance, fmtDate(st.PeriodEnd)
		}
	}
	return "", 0, ""
}

func fmtDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
