package dataset

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kshedden/datareader"
)

// LoadStatFile reads a Stata (.dta) or SAS (.sas7bdat) file into a Dataset
// using the datareader package. The file format itself is the library's
// problem; this adapter only maps its series and label metadata onto
// descriptors.
func LoadStatFile(r io.ReadSeeker, filename string) (*Dataset, error) {
	var (
		rdr datareader.StatfileReader
		err error

		// Stata associates each column with a named label table; labelFor
		// resolves column index -> value labels.
		labelTables map[string]map[int32]string
		labelNames  []string
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".dta":
		stata, e := datareader.NewStataReader(r)
		if e != nil {
			return nil, fmt.Errorf("open stata file: %w", e)
		}
		labelTables = stata.ValueLabels
		labelNames = stata.ValueLabelNames
		rdr = stata
	case ".sas7bdat":
		rdr, err = datareader.NewSAS7BDATReader(r)
		if err != nil {
			return nil, fmt.Errorf("open sas file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported statistical file %q (want .dta or .sas7bdat)", filename)
	}

	series, err := rdr.Read(-1)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	names := rdr.ColumnNames()
	if len(series) != len(names) {
		return nil, fmt.Errorf("%s: %d series for %d columns", filename, len(series), len(names))
	}

	cols := make([]*Column, len(series))
	for i, ser := range series {
		var labels map[int32]string
		if i < len(labelNames) && labelNames[i] != "" {
			labels = labelTables[labelNames[i]]
		}
		cols[i] = seriesToColumn(names[i], ser, labels)
	}
	return New(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)), cols)
}

// seriesToColumn converts one datareader series. Numeric data stays numeric;
// anything else is kept as strings.
func seriesToColumn(name string, ser *datareader.Series, labels map[int32]string) *Column {
	col := &Column{Desc: Descriptor{Name: name}}

	if nums, missing, err := ser.AsFloat64Slice(); err == nil {
		col.Desc.Kind = KindNumeric
		col.Nums = nums
		col.Missing = missing
	} else {
		strs, missing, serr := ser.AsStringSlice()
		if serr != nil {
			// Unreadable series: keep the column but mark every row missing.
			n := ser.Length()
			strs = make([]string, n)
			missing = make([]bool, n)
			for i := range missing {
				missing[i] = true
			}
		}
		col.Desc.Kind = KindString
		col.Strs = strs
		col.Missing = missing
		for i, s := range strs {
			if strings.TrimSpace(s) == "" {
				col.Missing[i] = true
			}
		}
	}

	if len(labels) > 0 {
		col.Desc.ValueLabels = make(map[float64]string, len(labels))
		for v, lab := range labels {
			col.Desc.ValueLabels[float64(v)] = lab
		}
	}
	return col
}
