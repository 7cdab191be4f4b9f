package writer

import (
	"bytes"
	"testing"
	"time"
)

func TestCSV_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSV(&buf, []string{"id", "title", "tags"})

	err := w.Write([]map[string]any{
		{"id": float64(1), "title": "hello, world", "tags": []any{"a", "b"}},
		{"id": float64(2), "title": []byte("plain")},
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Write([]map[string]any{{"id": "3", "title": nil}}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	want := "id,title,tags\n" +
		"1,\"hello, world\",\"[\"\"a\"\",\"\"b\"\"]\"\n" +
		"2,plain,\n" +
		"3,,\n"
	if buf.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", buf.String(), want)
	}
	if w.Rows() != 3 {
		t.Errorf("Rows = %d, want 3", w.Rows())
	}
}

func TestCSV_EmptyExportHasHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSV(&buf, []string{"id"})
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if buf.String() != "id\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestCell(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{true, "true"},
		{float64(1.5), "1.5"},
		{float64(10), "10"},
		{int64(-3), "-3"},
		{ts, "2024-01-02T03:04:05Z"},
		{map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		if got := Cell(tt.in); got != tt.want {
			t.Errorf("Cell(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
