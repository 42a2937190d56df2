// Package knowledge loads the warehouse schema and the example
// question/SQL pairs that ground question generation.
package knowledge

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Column describes a single warehouse column.
type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Mode        string `json:"mode"`
	Description string `json:"description"`
}

// Table describes a warehouse table and its columns.
type Table struct {
	TableName   string   `json:"table_name"`
	Description string   `json:"description"`
	NumRows     uint64   `json:"num_rows"`
	Columns     []Column `json:"columns"`
}

// Schema describes a warehouse dataset.
type Schema struct {
	ProjectID string  `json:"project_id"`
	DatasetID string  `json:"dataset_id"`
	Tables    []Table `json:"tables"`
}

// TrainingPair is an example question with the SQL that answers it.
type TrainingPair struct {
	Question string
	SQL      string
}

// LoadSchema reads a schema JSON file from disk.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	var schema Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}
	return &schema, nil
}

// LoadTrainingPairs reads question/SQL pairs from a CSV file with
// "question" and "sql" columns, located by header name. Rows with an
// empty question or SQL are skipped. A positive limit caps the number
// of pairs returned.
func LoadTrainingPairs(path string, limit int) ([]TrainingPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open training data file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read training data header: %w", err)
	}
	questionIdx, sqlIdx := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "question":
			questionIdx = i
		case "sql":
			sqlIdx = i
		}
	}
	if questionIdx < 0 || sqlIdx < 0 {
		return nil, errors.New("training data must have question and sql columns")
	}

	var pairs []TrainingPair
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read training data row: %w", err)
		}
		pair := TrainingPair{
			Question: strings.TrimSpace(record[questionIdx]),
			SQL:      strings.TrimSpace(record[sqlIdx]),
		}
		if pair.Question == "" || pair.SQL == "" {
			continue
		}
		pairs = append(pairs, pair)
		if limit > 0 && len(pairs) >= limit {
			break
		}
	}
	return pairs, nil
}
