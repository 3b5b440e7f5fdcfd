package export

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"github.com/yingtu35/linkcrawler/internal/webscraper"
)

const (
	linksSheet   = "Links"
	summarySheet = "Summary"
)

type XLSXExporter struct{}

func NewXLSXExporter() Exporter {
	return &XLSXExporter{}
}

// Export writes a workbook with the ordered links and a summary sheet.
func (e *XLSXExporter) Export(report *webscraper.Report, basename string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", linksSheet); err != nil {
		return err
	}
	if err := writeLinks(f, Rows(report.Links)); err != nil {
		logrus.Errorf("Error writing links sheet: %v", err)
		return err
	}
	if err := writeSummary(f, Summarize(report)); err != nil {
		logrus.Errorf("Error writing summary sheet: %v", err)
		return err
	}

	if err := f.SaveAs(basename + ".xlsx"); err != nil {
		logrus.Errorf("Error exporting data to XLSX: %v", err)
		return err
	}
	return nil
}

func writeLinks(f *excelize.File, rows []Row) error {
	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(linksSheet, "A1", &header); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(Headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(linksSheet, "A1", last, bold); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row.values()
		if err := f.SetSheetRow(linksSheet, cell, &values); err != nil {
			return err
		}
	}
	return f.SetColWidth(linksSheet, "C", "D", 60)
}

func writeSummary(f *excelize.File, s Summary) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	entries := [][]interface{}{
		{"Target", s.Target},
		{"State", s.State},
		{"Pages scanned", s.PagesScanned},
		{"Links found", s.LinksFound},
		{"Unique links", s.UniqueLinks},
		{"Checked", s.Checked},
		{"Cached", s.Cached},
		{"Working", s.Working},
		{"Broken", s.Broken},
		{"Unchecked", s.Unchecked},
		{"Duration", s.Duration.String()},
	}
	for i, entry := range entries {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(summarySheet, cell, &entry); err != nil {
			return err
		}
	}
	return nil
}
