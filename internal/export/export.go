// Package export materializes persisted visit records into tabular and
// structured files. Only genuine finds are exported; empty and failed visits
// stay in the store for status reporting.
package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

// columns defines the ordered output columns shared by CSV and XLSX.
var columns = []string{
	"Page URL",
	"Code",
	"Percent Off",
	"Amount Off",
	"Amount Off (cents)",
	"Currency",
	"Source URL",
	"Content Type",
	"Visited At",
}

// Finds filters records down to visits that produced a code.
func Finds(records []model.VisitRecord) []model.VisitRecord {
	var finds []model.VisitRecord
	for _, r := range records {
		if r.Status == model.VisitStatusFound && r.Result != nil && r.Result.Code != "" {
			finds = append(finds, r)
		}
	}
	return finds
}

// WriteCSV writes finds as a CSV file at outputPath.
func WriteCSV(records []model.VisitRecord, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(columns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, r := range Finds(records) {
		if err := w.Write(buildRow(r)); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	return nil
}

// WriteJSON writes finds as a JSON array at outputPath.
func WriteJSON(records []model.VisitRecord, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create json")
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	finds := Finds(records)
	if finds == nil {
		finds = []model.VisitRecord{}
	}
	return eris.Wrap(enc.Encode(finds), "export: encode json")
}

// WriteXLSX writes finds as a single-sheet workbook at outputPath.
func WriteXLSX(records []model.VisitRecord, outputPath string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Promo Codes")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range columns {
		header.AddCell().Value = col
	}
	for _, r := range Finds(records) {
		row := sheet.AddRow()
		for _, val := range buildRow(r) {
			row.AddCell().Value = val
		}
	}
	return eris.Wrap(file.Save(outputPath), "export: save xlsx")
}

// buildRow maps one find to its ordered output columns.
func buildRow(r model.VisitRecord) []string {
	res := r.Result
	var percent, amount *float64
	var cents *int64
	currency := ""
	if res.Discount != nil {
		percent = res.Discount.PercentOff
		amount = res.Discount.AmountOff
		cents = res.Discount.AmountOffCents
		currency = res.Discount.Currency
	}
	return []string{
		r.URL,
		res.Code,
		formatFloat(percent),
		formatFloat(amount),
		formatInt(cents),
		currency,
		res.SourceURL,
		res.ContentType,
		r.VisitedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
