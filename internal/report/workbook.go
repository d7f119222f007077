package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet names written by WriteWorkbook.
const (
	SheetCategories = "Categories"
	SheetChannels   = "Channels"
	SheetLanguages  = "Languages"
)

var sheetHeader = []string{"Name", "Videos", "Seconds", "Watch time"}

// WriteWorkbook saves the summary as an xlsx workbook with one sheet per
// dimension. Channels are limited to the top n by count when n > 0.
func WriteWorkbook(path string, s Summary, n int) error {
	f := xlsx.NewFile()

	sheets := []struct {
		name    string
		buckets []Bucket
	}{
		{SheetCategories, s.ByCategory},
		{SheetChannels, TopByCount(s.ByChannel, n)},
		{SheetLanguages, s.ByLanguage},
	}
	for _, sh := range sheets {
		if err := addSheet(f, sh.name, sh.buckets); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save workbook %s", path)
	}
	return nil
}

func addSheet(f *xlsx.File, name string, buckets []Bucket) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "report: add sheet %s", name)
	}

	header := sheet.AddRow()
	for _, h := range sheetHeader {
		header.AddCell().SetString(h)
	}
	for _, b := range buckets {
		row := sheet.AddRow()
		row.AddCell().SetString(b.Name)
		row.AddCell().SetInt(b.Count)
		row.AddCell().SetInt(b.Seconds)
		row.AddCell().SetString(FormatDuration(b.Seconds))
	}
	return nil
}
