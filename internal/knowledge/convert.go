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

// ConvertCSV builds a Schema from a flat CSV describing one column per
// row. Required columns are table_name, column_name and data_type; the
// optional nullable and description columns fill in column mode and
// docs. Tables keep the order they first appear in the file.
func ConvertCSV(path, projectID, datasetID string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read schema CSV header: %w", err)
	}
	idx := map[string]int{}
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	tableIdx, ok := idx["table_name"]
	if !ok {
		return nil, errors.New("schema CSV must have a table_name column")
	}
	columnIdx, ok := idx["column_name"]
	if !ok {
		return nil, errors.New("schema CSV must have a column_name column")
	}
	typeIdx, ok := idx["data_type"]
	if !ok {
		return nil, errors.New("schema CSV must have a data_type column")
	}
	modeIdx, hasMode := idx["nullable"]
	descIdx, hasDesc := idx["description"]

	schema := &Schema{
		ProjectID: projectID,
		DatasetID: datasetID,
	}
	tables := map[string]int{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read schema CSV row: %w", err)
		}
		column := Column{
			Name: record[columnIdx],
			Type: record[typeIdx],
			Mode: "NULLABLE",
		}
		if hasMode {
			column.Mode = record[modeIdx]
		}
		if hasDesc {
			column.Description = record[descIdx]
		}
		name := record[tableIdx]
		i, ok := tables[name]
		if !ok {
			i = len(schema.Tables)
			tables[name] = i
			schema.Tables = append(schema.Tables, Table{
				TableName:   name,
				Description: fmt.Sprintf("Table: %s", name),
			})
		}
		schema.Tables[i].Columns = append(schema.Tables[i].Columns, column)
	}
	return schema, nil
}

// WriteFile writes the schema as indented JSON.
func (s *Schema) WriteFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}
	return nil
}
