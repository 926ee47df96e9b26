package data

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"bess-dispatch/internal/model"
)

func TestReadPriceRows(t *testing.T) {
	in := strings.NewReader(
		"date,slot,JEPX_prediction,JEPX_actual\n" +
			"2024-07-01,1,10.5,11.0\n" +
			"2024-07-01,2,,12.0\n")

	rows, err := ReadPriceRows(in)
	if err != nil {
		t.Fatalf("ReadPriceRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["JEPX_prediction"] != "10.5" || rows[0]["slot"] != "1" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1]["JEPX_prediction"] != "" {
		t.Errorf("row 1 empty cell = %q, want empty", rows[1]["JEPX_prediction"])
	}
}

func TestReadPriceRowsEmpty(t *testing.T) {
	if _, err := ReadPriceRows(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestWriteScheduleRows(t *testing.T) {
	decisions := []model.SlotDecision{
		{
			Date:         time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			Slot:         1,
			Action:       model.ActionDischarge,
			DischargeKWh: 450,
			LossKWh:      50,
			SoCKWh:       0,
			JEPXActual:   12,
			JEPXPnL:      5940,
			TotalPnL:     5940,
		},
	}

	var buf bytes.Buffer
	if err := WriteScheduleRows(&buf, decisions); err != nil {
		t.Fatalf("WriteScheduleRows: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want header + 1 row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "date,slot,action,") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2024-07-01,1,discharge,") {
		t.Errorf("row = %q", lines[1])
	}
	if !strings.Contains(lines[1], "5940.0000") {
		t.Errorf("row missing PnL: %q", lines[1])
	}
}
