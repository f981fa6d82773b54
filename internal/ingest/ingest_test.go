package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/survey-sampler/internal/fetcher"
	"github.com/sells-group/survey-sampler/internal/model"
)

func header() []string {
	return []string{"ssid", "village", "idp_hh", "Admin3", "strata"}
}

func TestParse_Basic(t *testing.T) {
	t.Parallel()
	rows := [][]string{
		header(),
		{"S1", "Kaya", "120", "North", "Rural"},
		{"S2", " Bani ", "45", "South", "Urban"},
	}

	sites, warnings, err := Parse(rows, DefaultColumns())
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, sites, 2)

	assert.Equal(t, model.Site{
		UniqueID: "UID_1", SiteID: "S1", Name: "Kaya", Admin: "North", Stratum: "Rural", Households: 120,
	}, sites[0])
	assert.Equal(t, "Bani", sites[1].Name)
	assert.Equal(t, "UID_2", sites[1].UniqueID)
}

func TestParse_HeaderMatchingIgnoresCaseAndSpacing(t *testing.T) {
	t.Parallel()
	rows := [][]string{
		{" SSID", "Village", "IDP_HH ", "admin3", "STRATA"},
		{"S1", "Kaya", "1", "North", "Rural"},
	}
	sites, _, err := Parse(rows, DefaultColumns())
	require.NoError(t, err)
	assert.Equal(t, 1, sites[0].Households)
}

func TestParse_UniqueIDColumn(t *testing.T) {
	t.Parallel()
	cols := DefaultColumns()
	cols.UniqueID = "pcode"
	rows := [][]string{
		append(header(), "pcode"),
		{"S1", "Kaya", "1", "North", "Rural", "ML0101"},
		{"S2", "Bani", "2", "North", "Rural", ""},
	}
	sites, _, err := Parse(rows, cols)
	require.NoError(t, err)
	assert.Equal(t, "ML0101", sites[0].UniqueID)
	assert.Equal(t, "UID_2", sites[1].UniqueID)
}

func TestParse_MissingColumns(t *testing.T) {
	t.Parallel()
	rows := [][]string{
		{"ssid", "village", "Admin3"},
		{"S1", "Kaya", "North"},
	}
	_, _, err := Parse(rows, DefaultColumns())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "households")
	assert.Contains(t, err.Error(), "stratum")
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()
	_, _, err := Parse(nil, DefaultColumns())
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, _, err = Parse([][]string{header()}, DefaultColumns())
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestParse_HouseholdRepairs(t *testing.T) {
	t.Parallel()
	rows := [][]string{
		header(),
		{"S1", "a", "n/a", "North", "Rural"},
		{"S2", "b", "12.6", "North", "Rural"},
		{"S3", "c", "-4", "North", "Rural"},
		{"S4", "d", "1,250", "North", "Rural"},
		{"S5", "e"},
	}
	sites, warnings, err := Parse(rows, DefaultColumns())
	require.NoError(t, err)

	assert.Equal(t, 0, sites[0].Households)
	assert.Equal(t, 13, sites[1].Households)
	assert.Equal(t, 0, sites[2].Households)
	assert.Equal(t, 1250, sites[3].Households)
	assert.Equal(t, 0, sites[4].Households)
	assert.Empty(t, sites[4].Admin)

	var codes []model.WarningCode
	for _, w := range warnings {
		codes = append(codes, w.Code)
		assert.Equal(t, "ingest", w.Stage)
	}
	assert.Equal(t, []model.WarningCode{
		model.WarnNonNumericHouseholds,
		model.WarnFractionalHouseholds,
		model.WarnNegativeHouseholds,
		model.WarnNonNumericHouseholds,
	}, codes)
	assert.Contains(t, warnings[1].Message, "rounded to 13")
}

func TestParseHouseholds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw   string
		want  int
		codes []model.WarningCode
	}{
		{"42", 42, nil},
		{" 42 ", 42, nil},
		{"42.0", 42, nil},
		{"2.5", 3, []model.WarningCode{model.WarnFractionalHouseholds}},
		{"-2.4", 0, []model.WarningCode{model.WarnFractionalHouseholds, model.WarnNegativeHouseholds}},
		{"", 0, []model.WarningCode{model.WarnNonNumericHouseholds}},
		{"NaN", 0, []model.WarningCode{model.WarnNonNumericHouseholds}},
		{"Inf", 0, []model.WarningCode{model.WarnNonNumericHouseholds}},
		{"2147483647", 2147483647, nil},
		{"2147483648", 0, []model.WarningCode{model.WarnHouseholdsTooLarge}},
		{"1e19", 0, []model.WarningCode{model.WarnHouseholdsTooLarge}},
	}
	for _, tt := range tests {
		got, codes := ParseHouseholds(tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
		assert.Equal(t, tt.codes, codes, tt.raw)
	}
}

func TestNormalizeLabel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Z\u00f4ne Nord", NormalizeLabel("  Zo\u0302ne   Nord "))
	assert.Equal(t, "Z\u00f4ne Nord", NormalizeLabel("Z\u00f4ne Nord"))
	assert.Equal(t, "", NormalizeLabel("   "))
}

func TestParse_GroupsDecomposedLabels(t *testing.T) {
	t.Parallel()
	rows := [][]string{
		header(),
		{"S1", "a", "1", "Se\u0301gou", "Rural"},
		{"S2", "b", "1", "S\u00e9gou", "Rural"},
	}
	sites, _, err := Parse(rows, DefaultColumns())
	require.NoError(t, err)
	assert.Equal(t, sites[0].Admin, sites[1].Admin)
}

func TestLoad_CSV(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sites.csv")
	content := "ssid,village,idp_hh,Admin3,strata\nS1,Kaya,10,North,Rural\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sites, _, err := Load(context.Background(), path, fetcher.TableOptions{}, DefaultColumns())
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, 10, sites[0].Households)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, _, err := Load(context.Background(), filepath.Join(t.TempDir(), "none.csv"), fetcher.TableOptions{}, DefaultColumns())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: read")
}
