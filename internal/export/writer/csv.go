// Package writer renders export rows as CSV.
package writer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// CSV writes a header followed by one record per row.
type CSV struct {
	w      *csv.Writer
	fields []string
	header bool
	rows   int64
}

// NewCSV creates a writer whose columns are fields, in order.
func NewCSV(w io.Writer, fields []string) *CSV {
	return &CSV{w: csv.NewWriter(w), fields: fields}
}

// Write appends rows. The header is written before the first batch.
func (c *CSV) Write(rows []map[string]any) error {
	if !c.header {
		if err := c.w.Write(c.fields); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		c.header = true
	}
	record := make([]string, len(c.fields))
	for _, row := range rows {
		for i, f := range c.fields {
			record[i] = Cell(row[f])
		}
		if err := c.w.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
		c.rows++
	}
	return nil
}

// Flush writes buffered data and reports any write error.
func (c *CSV) Flush() error {
	if !c.header {
		if err := c.Write(nil); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

// Rows returns the number of data records written.
func (c *CSV) Rows() int64 {
	return c.rows
}

// Cell renders a single value.
func Cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
