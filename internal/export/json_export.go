package export

import (
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/yingtu35/linkcrawler/internal/webscraper"
)

type Record struct {
	SessionID string  `json:"session_id"`
	Summary   Summary `json:"summary"`
	Links     []Row   `json:"links"`
}

type JsonExporter struct{}

func NewJsonExporter() Exporter {
	return &JsonExporter{}
}

func (e *JsonExporter) Export(report *webscraper.Report, basename string) error {
	file, err := os.Create(basename + ".json")
	if err != nil {
		logrus.Errorf("Error creating file %s: %v", basename, err)
		return err
	}
	defer file.Close()

	record := Record{
		SessionID: report.SessionID,
		Summary:   Summarize(report),
		Links:     Rows(report.Links),
	}

	resultJson, err := json.MarshalIndent(record, "", "    ")
	if err != nil {
		logrus.Errorf("Error marshalling data: %v", err)
		return err
	}

	if _, err := file.Write(resultJson); err != nil {
		logrus.Errorf("Error exporting data to JSON: %v", err)
		return err
	}
	return nil
}
