package http

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	masterdata "greengauge/internal/masterdata/domain"
	"greengauge/internal/observability/metrics"
	"greengauge/internal/telemetry/application"
	telemetry "greengauge/internal/telemetry/domain"
)

var readingsHeader = []string{"Time", "Current (A)", "Voltage (V)", "Power (W)"}

// export handles GET /api/v1/devices/{device}/readings/export.{format}.
// The export always carries the whole table.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	format := mux.Vars(r)["format"]
	result := metrics.ResultError
	defer func() { metrics.ObserveExport(format, result, time.Since(started)) }()

	req, err := h.parseViewRequest(r, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Page = telemetry.NewPage().WithSize(telemetry.PageSizeAll)

	device, snapshot, err := h.hub.Snapshot(r.Context(), mux.Vars(r)["device"])
	if errors.Is(err, masterdata.ErrUnknownDevice) {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "load readings error", http.StatusInternalServerError)
		return
	}
	if snapshot.Err != nil {
		http.Error(w, snapshot.Err.Error(), http.StatusBadGateway)
		return
	}
	view, err := h.views.Build(r.Context(), device, snapshot, req)
	if err != nil {
		http.Error(w, "build view error", http.StatusInternalServerError)
		return
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case "csv":
		body, err = BuildReadingsCSV(view)
		contentType = "text/csv; charset=utf-8"
	case "xlsx":
		body, err = BuildReadingsXLSX(view)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		body, err = BuildReadingsPDF(view)
		contentType = "application/pdf"
	default:
		http.Error(w, "unsupported format", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logf("export: render device=%s format=%s err=%v", device.Key, format, err)
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}

	result = metrics.ResultSuccess
	filename := fmt.Sprintf("%s-readings.%s", device.Key, format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// BuildReadingsCSV renders the readings table as CSV.
func BuildReadingsCSV(view application.View) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(readingsHeader); err != nil {
		return nil, err
	}
	for _, row := range view.Table.Items {
		if err := writer.Write([]string{row.Time, row.Current, row.Voltage, row.Power}); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReadingsXLSX renders a summary sheet and the readings table.
func BuildReadingsXLSX(view application.View) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	readingsSheet := "readings"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(readingsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Device Readings")
	_ = f.SetCellValue(summarySheet, "A3", "Device")
	_ = f.SetCellValue(summarySheet, "B3", view.Device.DisplayName())
	_ = f.SetCellValue(summarySheet, "A4", "Source")
	_ = f.SetCellValue(summarySheet, "B4", view.Device.SourceID)
	_ = f.SetCellValue(summarySheet, "A5", "Watts")
	_ = f.SetCellValue(summarySheet, "B5", view.Device.Watts)
	_ = f.SetCellValue(summarySheet, "A6", "Duration (h)")
	_ = f.SetCellValue(summarySheet, "B6", view.Cost.DurationDisplay)
	_ = f.SetCellValue(summarySheet, "A7", "Cost")
	_ = f.SetCellValue(summarySheet, "B7", view.Cost.CostDisplay)
	_ = f.SetCellValue(summarySheet, "A8", "Currency")
	_ = f.SetCellValue(summarySheet, "B8", view.Cost.Currency)
	_ = f.SetCellValue(summarySheet, "A9", "Fetched")
	_ = f.SetCellValue(summarySheet, "B9", view.FetchedAt.Format(time.RFC3339))

	for i, title := range readingsHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(readingsSheet, cell, title)
	}
	for i, row := range view.Table.Items {
		line := i + 2
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("A%d", line), row.Time)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("B%d", line), row.Current)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("C%d", line), row.Voltage)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("D%d", line), row.Power)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReadingsPDF renders a minimal PDF report of the readings table.
func BuildReadingsPDF(view application.View) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Device Readings")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Device: %s", view.Device.DisplayName()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Rated power (W): %.2f", view.Device.Watts))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Duration (h): %s", view.Cost.DurationDisplay))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Estimated cost (%s): %s", view.Cost.Currency, view.Cost.CostDisplay))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Fetched: %s", view.FetchedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	widths := []float64{70, 35, 35, 35}
	pdf.SetFont("Arial", "B", 10)
	for i, title := range readingsHeader {
		pdf.CellFormat(widths[i], 6, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, row := range view.Table.Items {
		pdf.CellFormat(widths[0], 6, row.Time, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, row.Current, "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 6, row.Voltage, "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, row.Power, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
