package admin

import (
	"errors"
	"strings"
	"testing"
)

func TestReadCSVRowsSemicolonWithBOM(t *testing.T) {
	input := "\ufeffData Recarga;Sim;Valor Recarga\n46028;8935100;10,00\n;;\n46029;8935101;5\n"
	rows, err := readCSVRows(strings.NewReader(input), 0)
	if err != nil {
		t.Fatalf("read csv failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("blank line should be skipped, got %d rows", len(rows))
	}
	if rows[0]["Data Recarga"] != "46028" || rows[0]["Valor Recarga"] != "10,00" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1]["Sim"] != "8935101" {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
}

func TestReadCSVRowsLimit(t *testing.T) {
	input := "Sim\n1\n2\n3\n"
	if _, err := readCSVRows(strings.NewReader(input), 2); !errors.Is(err, errImportTooManyRows) {
		t.Fatalf("expected row limit error, got %v", err)
	}
	rows, err := readCSVRows(strings.NewReader(""), 2)
	if err != nil || len(rows) != 0 {
		t.Fatalf("empty input should yield no rows, got %v %v", rows, err)
	}
}
