package report

import (
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/survey-sampler/internal/model"
)

// allocationRecord is the flat CSV shape of an allocation.
type allocationRecord struct {
	Admin          string `csv:"admin"`
	SiteID         string `csv:"site_id"`
	UniqueID       string `csv:"unique_id"`
	Name           string `csv:"site_name"`
	Stratum        string `csv:"stratum"`
	StratumName    string `csv:"stratum_name"`
	Households     int    `csv:"households"`
	PSUType        string `csv:"psu_type"`
	Selections     int    `csv:"selections"`
	OriginalTarget int    `csv:"original_target"`
	Target         int    `csv:"interview_target"`
	EffectiveLimit int    `csv:"effective_limit"`
	Constrained    bool   `csv:"constrained"`
	Excess         int    `csv:"excess"`
	Redistributed  bool   `csv:"redistributed"`
}

func toRecord(a model.Allocation) allocationRecord {
	return allocationRecord{
		Admin:          a.Admin,
		SiteID:         a.SiteID,
		UniqueID:       a.UniqueID,
		Name:           a.Name,
		Stratum:        a.Stratum,
		StratumName:    a.StratumName,
		Households:     a.Households,
		PSUType:        string(a.PSUType),
		Selections:     a.Selections,
		OriginalTarget: a.OriginalTarget,
		Target:         a.Target,
		EffectiveLimit: a.EffectiveLimit,
		Constrained:    a.IsConstrained,
		Excess:         a.Excess,
		Redistributed:  a.ReceivedRedistribution,
	}
}

// WriteAllocationsCSV writes allocations as CSV with a header row. The header
// is written even when there are no allocations.
func WriteAllocationsCSV(w io.Writer, allocs []model.Allocation) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if len(allocs) == 0 {
		if err := enc.EncodeHeader(allocationRecord{}); err != nil {
			return eris.Wrap(err, "report: encode csv header")
		}
	}
	for _, a := range allocs {
		if err := enc.Encode(toRecord(a)); err != nil {
			return eris.Wrapf(err, "report: encode allocation %s", a.UniqueID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

// WriteWarningsCSV writes warnings as CSV using the model's csv tags.
func WriteWarningsCSV(w io.Writer, warnings []model.Warning) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if len(warnings) == 0 {
		if err := enc.EncodeHeader(model.Warning{}); err != nil {
			return eris.Wrap(err, "report: encode csv header")
		}
	}
	for _, wr := range warnings {
		if err := enc.Encode(wr); err != nil {
			return eris.Wrap(err, "report: encode warning")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

// ReadAllocationsCSV parses a file written by WriteAllocationsCSV.
func ReadAllocationsCSV(r io.Reader) ([]model.Allocation, error) {
	var records []allocationRecord
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "report: read csv")
	}
	if err := csvutil.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrap(err, "report: decode csv")
	}
	out := make([]model.Allocation, len(records))
	for i, rec := range records {
		out[i] = model.Allocation{
			Site: model.Site{
				UniqueID:   rec.UniqueID,
				SiteID:     rec.SiteID,
				Name:       rec.Name,
				Admin:      rec.Admin,
				Stratum:    rec.Stratum,
				Households: rec.Households,
			},
			StratumName:            rec.StratumName,
			PSUType:                model.PSUType(rec.PSUType),
			Selections:             rec.Selections,
			OriginalTarget:         rec.OriginalTarget,
			Target:                 rec.Target,
			EffectiveLimit:         rec.EffectiveLimit,
			IsConstrained:          rec.Constrained,
			Excess:                 rec.Excess,
			ReceivedRedistribution: rec.Redistributed,
		}
	}
	return out, nil
}
