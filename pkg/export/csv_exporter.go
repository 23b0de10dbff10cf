package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// TopicRow is one flattened line of the topic hierarchy.
type TopicRow struct {
	Rechtsgebiet      string
	Unterrechtsgebiet string
	Kapitel           string
	Thema             string
	Aufgabe           string
	Completed         bool
}

// CSVExporter renders a flattened topic hierarchy into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// RenderTopicList produces CSV encoded bytes for the rows.
func (e *CSVExporter) RenderTopicList(rows []TopicRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	header := []string{"rechtsgebiet", "unterrechtsgebiet", "kapitel", "thema", "aufgabe", "completed"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Rechtsgebiet,
			row.Unterrechtsgebiet,
			row.Kapitel,
			row.Thema,
			row.Aufgabe,
			strconv.FormatBool(row.Completed),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
