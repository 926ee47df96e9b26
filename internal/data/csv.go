// Package data reads the raw price series CSV and writes the settled
// schedule back out as CSV.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"bess-dispatch/internal/model"
)

// ReadPriceCSV loads a price series file into raw rows keyed by the header
// names, ready for input.Validate. No parsing happens here; the validator
// owns all leniency decisions.
func ReadPriceCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price csv: %w", err)
	}
	defer f.Close()
	return ReadPriceRows(f)
}

// ReadPriceRows reads header-keyed rows from r.
func ReadPriceRows(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, model.NewDataError("price csv has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read price csv header: %w", err)
	}

	var rows []map[string]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read price csv row %d: %w", len(rows)+2, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteScheduleCSV writes the settled schedule, one row per slot decision.
func WriteScheduleCSV(path string, decisions []model.SlotDecision) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create schedule csv: %w", err)
	}
	if err := WriteScheduleRows(f, decisions); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteScheduleRows writes the schedule CSV to w.
func WriteScheduleRows(w io.Writer, decisions []model.SlotDecision) error {
	cw := csv.NewWriter(w)

	header := []string{
		"date",
		"slot",
		"action",
		"charge_kwh",
		"discharge_kwh",
		"eprx3_kwh",
		"loss_kwh",
		"soc_kwh",
		"eprx3_activated",
		"jepx_actual",
		"eprx1_actual",
		"eprx3_actual",
		"imbalance",
		"jepx_pnl",
		"eprx1_pnl",
		"eprx3_pnl",
		"total_pnl",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, d := range decisions {
		row := []string{
			d.Date.Format("2006-01-02"),
			strconv.Itoa(d.Slot),
			string(d.Action),
			fmtFloat(d.ChargeKWh),
			fmtFloat(d.DischargeKWh),
			fmtFloat(d.EPRX3KWh),
			fmtFloat(d.LossKWh),
			fmtFloat(d.SoCKWh),
			strconv.FormatBool(d.EPRX3Activated),
			fmtFloat(d.JEPXActual),
			fmtFloat(d.EPRX1Actual),
			fmtFloat(d.EPRX3Actual),
			fmtFloat(d.Imbalance),
			fmtFloat(d.JEPXPnL),
			fmtFloat(d.EPRX1PnL),
			fmtFloat(d.EPRX3PnL),
			fmtFloat(d.TotalPnL),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 4, 64)
}
