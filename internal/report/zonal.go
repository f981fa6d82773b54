package report

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/survey-sampler/internal/zonal"
)

// SheetZonalStats is the sheet written by BuildZonalWorkbook.
const SheetZonalStats = "ZonalStats"

// ZonalHeader is the column layout of the ZonalStats sheet.
var ZonalHeader = []string{"UniqueID", "Name", "Admin", "Pop_sum", "Pop_sum_rounded", "Vertices", "Cells", "Flag"}

// BuildZonalWorkbook lays out zone sums as a single-sheet workbook that the
// sample command can read back as a site table.
func BuildZonalWorkbook(stats []zonal.ZoneStat) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sh, err := addSheet(f, SheetZonalStats)
	if err != nil {
		return nil, err
	}
	header := make([]any, len(ZonalHeader))
	for i, h := range ZonalHeader {
		header[i] = h
	}
	addRow(sh, header...)
	for _, st := range stats {
		addRow(sh, st.UniqueID, st.Name, st.Admin, st.PopSum, st.PopSumRounded, st.Vertices, st.Cells, string(st.Flag))
	}
	return f, nil
}

// WriteZonalWorkbook streams the zonal workbook to w.
func WriteZonalWorkbook(w io.Writer, stats []zonal.ZoneStat) error {
	f, err := BuildZonalWorkbook(stats)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "report: write zonal workbook")
}

// SaveZonalWorkbook writes the zonal workbook to path.
func SaveZonalWorkbook(path string, stats []zonal.ZoneStat) error {
	f, err := BuildZonalWorkbook(stats)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "report: save zonal workbook %s", path)
}
