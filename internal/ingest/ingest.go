// Package ingest turns raw site tables into sampling sites. Column names are
// resolved once against the header row; after that every row is read through
// the fixed Site schema.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/survey-sampler/internal/fetcher"
	"github.com/sells-group/survey-sampler/internal/model"
)

const stage = "ingest"

var (
	// ErrMissingColumn is returned when a mapped column is absent from the header.
	ErrMissingColumn = errors.New("missing required column")
	// ErrEmptyInput is returned when a table has a header but no data rows.
	ErrEmptyInput = errors.New("site table has no rows")
)

// Columns maps the Site fields onto input column headers. UniqueID is
// optional; sites get UID_<row> identifiers when it is empty or absent.
type Columns struct {
	SiteName   string `mapstructure:"site_name" yaml:"site_name" json:"site_name"`
	SiteID     string `mapstructure:"site_id" yaml:"site_id" json:"site_id"`
	Households string `mapstructure:"households" yaml:"households" json:"households"`
	Admin      string `mapstructure:"admin" yaml:"admin" json:"admin"`
	Stratum    string `mapstructure:"stratum" yaml:"stratum" json:"stratum"`
	UniqueID   string `mapstructure:"unique_id" yaml:"unique_id,omitempty" json:"unique_id,omitempty"`
}

// DefaultColumns returns the headers used by the displacement site master lists.
func DefaultColumns() Columns {
	return Columns{
		SiteName:   "village",
		SiteID:     "ssid",
		Households: "idp_hh",
		Admin:      "Admin3",
		Stratum:    "strata",
	}
}

// Load reads a site table from disk and parses it.
func Load(ctx context.Context, path string, opts fetcher.TableOptions, cols Columns) ([]model.Site, []model.Warning, error) {
	rows, err := fetcher.ReadTable(ctx, path, opts)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "ingest: read %s", path)
	}
	return Parse(rows, cols)
}

type columnIndex struct {
	name, id, households, admin, stratum int
	uniqueID                             int // -1 when absent
}

func resolve(header []string, cols Columns) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		k := headerKey(h)
		if _, dup := pos[k]; !dup {
			pos[k] = i
		}
	}

	var missing []string
	find := func(field, col string) int {
		i, ok := pos[headerKey(col)]
		if col == "" || !ok {
			missing = append(missing, fmt.Sprintf("%s (%q)", field, col))
			return -1
		}
		return i
	}

	idx := columnIndex{
		name:       find("site name", cols.SiteName),
		id:         find("site id", cols.SiteID),
		households: find("households", cols.Households),
		admin:      find("admin", cols.Admin),
		stratum:    find("stratum", cols.Stratum),
		uniqueID:   -1,
	}
	if len(missing) > 0 {
		return idx, eris.Wrapf(ErrMissingColumn, "ingest: %s", strings.Join(missing, ", "))
	}
	if cols.UniqueID != "" {
		if i, ok := pos[headerKey(cols.UniqueID)]; ok {
			idx.uniqueID = i
		}
	}
	return idx, nil
}

// Parse converts a header row plus data rows into sites. Household values
// that are not numbers become 0, fractional values are rounded, and negative
// or implausibly large values become 0; each such repair yields a warning.
func Parse(rows [][]string, cols Columns) ([]model.Site, []model.Warning, error) {
	if len(rows) == 0 {
		return nil, nil, eris.Wrap(ErrEmptyInput, "ingest: no header row")
	}
	idx, err := resolve(rows[0], cols)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) < 2 {
		return nil, nil, eris.Wrap(ErrEmptyInput, "ingest: parse")
	}

	sites := make([]model.Site, 0, len(rows)-1)
	var warnings []model.Warning
	for n, row := range rows[1:] {
		line := n + 1
		s := model.Site{
			SiteID:  cell(row, idx.id),
			Name:    NormalizeLabel(cell(row, idx.name)),
			Admin:   NormalizeLabel(cell(row, idx.admin)),
			Stratum: NormalizeLabel(cell(row, idx.stratum)),
		}
		if idx.uniqueID >= 0 {
			s.UniqueID = cell(row, idx.uniqueID)
		}
		if s.UniqueID == "" {
			s.UniqueID = fmt.Sprintf("UID_%d", line)
		}

		hh, w := ParseHouseholds(cell(row, idx.households))
		s.Households = hh
		for _, code := range w {
			warnings = append(warnings, model.Warning{
				Stage:   stage,
				Code:    code,
				Admin:   s.Admin,
				Stratum: s.Stratum,
				Message: householdMessage(code, line, s.SiteID, cell(row, idx.households), hh),
			})
		}
		sites = append(sites, s)
	}
	return sites, warnings, nil
}

// ParseHouseholds coerces a raw household cell to a non-negative integer and
// reports every repair it made.
func ParseHouseholds(raw string) (int, []model.WarningCode) {
	v := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, []model.WarningCode{model.WarnNonNumericHouseholds}
	}

	var codes []model.WarningCode
	if f != math.Trunc(f) {
		f = math.Round(f)
		codes = append(codes, model.WarnFractionalHouseholds)
	}
	if f < 0 {
		return 0, append(codes, model.WarnNegativeHouseholds)
	}
	if f > model.MaxHouseholds {
		return 0, append(codes, model.WarnHouseholdsTooLarge)
	}
	return int(f), codes
}

func householdMessage(code model.WarningCode, line int, siteID, raw string, got int) string {
	switch code {
	case model.WarnNonNumericHouseholds:
		return fmt.Sprintf("row %d (site %s): households %q is not a number; treated as 0", line, siteID, raw)
	case model.WarnFractionalHouseholds:
		return fmt.Sprintf("row %d (site %s): households %q rounded to %d", line, siteID, raw, got)
	case model.WarnHouseholdsTooLarge:
		return fmt.Sprintf("row %d (site %s): households %q exceeds %d; treated as 0", line, siteID, raw, model.MaxHouseholds)
	default:
		return fmt.Sprintf("row %d (site %s): households %q is negative; treated as 0", line, siteID, raw)
	}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
