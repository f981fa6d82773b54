package model

import "math"

// MaxHouseholds is the largest household count accepted for one site. Larger
// values are data entry errors and are treated as 0 with a warning.
const MaxHouseholds = math.MaxInt32

// UsableHouseholds returns hh when it lies in [0, MaxHouseholds] and 0
// otherwise.
func UsableHouseholds(hh int) int {
	if hh < 0 || hh > MaxHouseholds {
		return 0
	}
	return hh
}

// Site is one sampling unit (village, camp, enumeration area) read from the
// master list.
type Site struct {
	UniqueID   string `json:"unique_id" csv:"unique_id" yaml:"unique_id"`
	SiteID     string `json:"site_id" csv:"site_id" yaml:"site_id"`
	Name       string `json:"name" csv:"site_name" yaml:"name"`
	Admin      string `json:"admin" csv:"admin" yaml:"admin"`
	Stratum    string `json:"stratum" csv:"stratum" yaml:"stratum"`
	Households int    `json:"households" csv:"households" yaml:"households"`
}

// StratumName returns the stratum identity used in reports. The admin area is
// part of the key because the same category recurs across admin areas.
func StratumName(stratum, admin string) string {
	return stratum + "_" + admin
}

// StratumKey identifies a stratum by admin area and category.
type StratumKey struct {
	Admin   string `json:"admin"`
	Stratum string `json:"stratum"`
}

// Key returns the stratum key of the site.
func (s Site) Key() StratumKey {
	return StratumKey{Admin: s.Admin, Stratum: s.Stratum}
}

// Name returns the combined stratum name.
func (k StratumKey) Name() string {
	return StratumName(k.Stratum, k.Admin)
}

// Less orders keys by admin area, then stratum.
func (k StratumKey) Less(o StratumKey) bool {
	if k.Admin != o.Admin {
		return k.Admin < o.Admin
	}
	return k.Stratum < o.Stratum
}

// Stratum is a group of sites sharing an admin area and category, with the
// sample sizes computed for it.
type Stratum struct {
	Admin             string `json:"admin" yaml:"admin"`
	Stratum           string `json:"stratum" yaml:"stratum"`
	Name              string `json:"name" yaml:"name"`
	Sites             int    `json:"sites" yaml:"sites"`
	Population        int    `json:"population" yaml:"population"`
	Sample            int    `json:"sample" yaml:"sample"`
	SampleWithReserve int    `json:"sample_with_reserve" yaml:"sample_with_reserve"`
	Clusters          int    `json:"clusters" yaml:"clusters"`
}

// Key returns the stratum key.
func (s Stratum) Key() StratumKey {
	return StratumKey{Admin: s.Admin, Stratum: s.Stratum}
}
