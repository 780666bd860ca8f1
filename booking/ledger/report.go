package ledger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tanpawarit/chative-party-booking/bot/catalog"
)

// ReportSheet is the worksheet holding one row per sale.
const ReportSheet = "Sales"

var reportColumns = []struct {
	title string
	width float64
}{
	{"Local ID", 8},
	{"Booking ID", 25},
	{"Event date", 12},
	{"Time", 10},
	{"Customer", 30},
	{"Tax ID", 15},
	{"Address", 50},
	{"Items", 40},
	{"Gross revenue", 15},
	{"Operational cost", 15},
	{"Distance km", 15},
	{"Fuel cost", 15},
	{"Freight", 15},
	{"Net profit", 15},
	{"Status", 15},
}

const (
	moneyFormat    = `"R$" #,##0.00`
	dateFormat     = "dd/mm/yyyy"
	distanceFormat = `0.0 "km"`
)

// BuildWorkbook renders the sales report. Net profit is written as a formula
// over the revenue and cost columns so edits in the sheet stay consistent.
// Canceled rows stay in the report with their blanked financials.
func BuildWorkbook(records []Record) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ReportSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSheet(f, records); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeSheet(f *excelize.File, records []Record) error {
	st, err := newReportStyles(f)
	if err != nil {
		return err
	}

	header := make([]any, len(reportColumns))
	for i, c := range reportColumns {
		header[i] = c.title
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(ReportSheet, col, col, c.width); err != nil {
			return err
		}
	}
	if err := f.SetSheetRow(ReportSheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(ReportSheet, "A1", "O1", st.header); err != nil {
		return err
	}

	for i, rec := range records {
		row := i + 2
		items := rec.ItemsSnapshot
		if cart, err := catalog.DecodeSnapshot(rec.ItemsSnapshot); err == nil {
			items = catalog.DescribeItems(cart)
		}
		var date any
		if !rec.EventDate.IsZero() {
			date = rec.EventDate
		}
		values := []any{
			rec.ID,
			rec.BookingID,
			date,
			rec.EventTime,
			rec.CustomerName,
			formatTaxID(rec.CustomerTaxID),
			rec.Address,
			items,
			rec.GrossRevenue,
			rec.OperationalCost,
			rec.DistanceKm,
			rec.FuelCost,
			rec.FreightCost,
			nil,
			string(rec.Status),
		}
		if err := f.SetSheetRow(ReportSheet, cell("A", row), &values); err != nil {
			return err
		}
		if err := f.SetCellFormula(ReportSheet, cell("N", row), fmt.Sprintf("I%d-J%d-L%d", row, row, row)); err != nil {
			return err
		}
		for _, span := range []struct {
			from, to string
			style    int
		}{
			{"A", "B", st.text},
			{"C", "C", st.date},
			{"D", "F", st.centered},
			{"G", "H", st.text},
			{"I", "J", st.money},
			{"K", "K", st.distance},
			{"L", "N", st.money},
			{"O", "O", st.centered},
		} {
			if err := f.SetCellStyle(ReportSheet, cell(span.from, row), cell(span.to, row), span.style); err != nil {
				return err
			}
		}
	}

	if err := f.SetPanes(ReportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	return f.AutoFilter(ReportSheet, "A1:O1", nil)
}

type reportStyles struct {
	header, text, centered, date, money, distance int
}

func newReportStyles(f *excelize.File) (reportStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}
	left := &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true}
	money, date, distance := moneyFormat, dateFormat, distanceFormat

	var st reportStyles
	for _, s := range []struct {
		dst   *int
		style *excelize.Style
	}{
		{&st.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
			Alignment: center,
			Border:    border,
		}},
		{&st.text, &excelize.Style{Alignment: left, Border: border}},
		{&st.centered, &excelize.Style{Alignment: center, Border: border}},
		{&st.date, &excelize.Style{Alignment: center, Border: border, CustomNumFmt: &date}},
		{&st.money, &excelize.Style{Alignment: center, Border: border, CustomNumFmt: &money}},
		{&st.distance, &excelize.Style{Alignment: center, Border: border, CustomNumFmt: &distance}},
	} {
		id, err := f.NewStyle(s.style)
		if err != nil {
			return reportStyles{}, fmt.Errorf("report style: %w", err)
		}
		*s.dst = id
	}
	return st, nil
}

// WriteWorkbook streams the rendered report to w.
func WriteWorkbook(w io.Writer, records []Record) error {
	f, err := BuildWorkbook(records)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// ExportFile writes every ledger row to a timestamped workbook in dir and
// returns its path.
func ExportFile(ctx context.Context, l Ledger, dir string, now time.Time) (string, error) {
	records, err := l.All(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	f, err := BuildWorkbook(records)
	if err != nil {
		return "", fmt.Errorf("build report: %w", err)
	}
	defer f.Close()

	path := filepath.Join(dir, fmt.Sprintf("sales-%s.xlsx", now.UTC().Format("20060102-150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func formatTaxID(d string) string {
	if len(d) != 11 {
		return d
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
}
