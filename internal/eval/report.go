package eval

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

type reportRow struct {
	Question string `parquet:"question"`
	Table    string `parquet:"table_name"`
	Source   string `parquet:"source_path"`
	Passed   bool   `parquet:"passed"`
	Success  bool   `parquet:"success"`
	SQL      string `parquet:"sql"`
	Error    string `parquet:"error"`
	RowCount int64  `parquet:"row_count"`
	Attempts int64  `parquet:"attempts"`
}

// WriteParquet exports per-case outcomes for downstream analysis.
func WriteParquet(report Report, path string) error {
	rows := make([]reportRow, 0, len(report.Results))
	for _, result := range report.Results {
		rows = append(rows, reportRow{
			Question: result.Case.Question,
			Table:    result.Case.Table,
			Source:   result.Case.CSV,
			Passed:   result.Passed,
			Success:  result.Success,
			SQL:      result.SQL,
			Error:    result.Error,
			RowCount: int64(result.RowCount),
			Attempts: int64(result.Attempts),
		})
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file %q: %w", path, err)
	}
	writer := parquet.NewGenericWriter[reportRow](file)
	if _, err := writer.Write(rows); err != nil {
		_ = file.Close()
		return fmt.Errorf("write report rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		_ = file.Close()
		return fmt.Errorf("close report writer: %w", err)
	}
	return file.Close()
}
