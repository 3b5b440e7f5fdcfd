package export

import (
	"os"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"
	"github.com/yingtu35/linkcrawler/internal/webscraper"
)

type CSVExporter struct{}

func NewCSVExporter() Exporter {
	return &CSVExporter{}
}

func (e *CSVExporter) Export(report *webscraper.Report, basename string) error {
	file, err := os.Create(basename + ".csv")
	if err != nil {
		logrus.Errorf("Error creating file %s: %v", basename, err)
		return err
	}
	defer file.Close()

	rows := Rows(report.Links)
	if err := gocsv.MarshalFile(&rows, file); err != nil {
		logrus.Errorf("Error exporting data to CSV: %v", err)
		return err
	}
	return nil
}
