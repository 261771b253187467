package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var SupportedOutputFormats = []string{FormatTable, FormatJSON, FormatYAML}

func validateOutputFormat(format string) error {
	for _, supported := range SupportedOutputFormats {
		if supported == format {
			return nil
		}
	}
	return fmt.Errorf("output format '%s' is not supported: please choose between '%s'",
		format, strings.Join(SupportedOutputFormats, "', '"))
}

// OutputFormatter collects the rows of a summary and renders them as table or as a list of
// records. Record keys are the snake cased column names.
type OutputFormatter struct {
	format  string
	columns []string
	rows    [][]string
}

func NewOutputFormatter(format string) (*OutputFormatter, error) {
	if err := validateOutputFormat(format); err != nil {
		return nil, err
	}
	return &OutputFormatter{format: format}, nil
}

func (of *OutputFormatter) Header(columns ...string) error {
	for _, row := range of.rows {
		if len(row) != len(columns) {
			return fmt.Errorf("header defines %d columns but a row has %d", len(columns), len(row))
		}
	}
	of.columns = columns
	return nil
}

func (of *OutputFormatter) AddRow(values ...string) error {
	if of.columns != nil && len(values) != len(of.columns) {
		return fmt.Errorf("row has %d values but header defines %d columns", len(values), len(of.columns))
	}
	of.rows = append(of.rows, values)
	return nil
}

func (of *OutputFormatter) Output(writer io.Writer) error {
	switch of.format {
	case FormatJSON:
		return of.writeRecords(writer, func(records interface{}) ([]byte, error) {
			var buffer bytes.Buffer
			encoder := json.NewEncoder(&buffer)
			encoder.SetIndent("", "  ")
			err := encoder.Encode(records)
			return buffer.Bytes(), err
		})
	case FormatYAML:
		return of.writeRecords(writer, yaml.Marshal)
	default:
		of.writeTable(writer)
		return nil
	}
}

func (of *OutputFormatter) writeTable(writer io.Writer) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(of.columns)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.AppendBulk(of.rows)
	table.Render()
}

func (of *OutputFormatter) writeRecords(writer io.Writer, marshal func(interface{}) ([]byte, error)) error {
	if len(of.columns) == 0 {
		return fmt.Errorf("cannot render records without header")
	}
	records := make([]map[string]string, 0, len(of.rows))
	for _, row := range of.rows {
		record := make(map[string]string, len(of.columns))
		for idx, column := range of.columns {
			record[strcase.ToSnake(column)] = row[idx]
		}
		records = append(records, record)
	}
	out, err := marshal(records)
	if err != nil {
		return fmt.Errorf("failed to render summary as %s: %w", of.format, err)
	}
	_, err = writer.Write(out)
	return err
}
