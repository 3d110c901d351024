// Package dict holds the bidirectional string/id dictionaries for the
// categorical metadata columns (pango lineage, country, region, free-form
// values) and the pango alias resolution used while ingesting raw lineages.
//
// Dictionaries are append-only while the database is built and frozen
// afterwards; ids are dense and stable across save/load.
package dict

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// NotFound is returned by lookups for strings the dictionary does not know.
const NotFound = uint32(math.MaxUint32)

type table struct {
	byID   []string
	byName map[string]uint32
}

func newTable() *table {
	return &table{byName: make(map[string]uint32)}
}

func (t *table) add(name string) uint32 {
	if id, ok := t.byName[name]; ok {
		return id
	}
	id := uint32(len(t.byID))
	t.byID = append(t.byID, name)
	t.byName[name] = id
	return id
}

func (t *table) id(name string) uint32 {
	if id, ok := t.byName[name]; ok {
		return id
	}
	return NotFound
}

func (t *table) name(id uint32) string {
	if id >= uint32(len(t.byID)) {
		return ""
	}
	return t.byID[id]
}

// Dictionary maps the categorical metadata values to dense 32-bit ids.
type Dictionary struct {
	lineages  *table
	countries *table
	regions   *table
	general   *table

	// Columns names the free-form extra metadata columns, in storage order.
	Columns []string
}

// New returns an empty dictionary with the given extra column names.
func New(columns ...string) *Dictionary {
	return &Dictionary{
		lineages:  newTable(),
		countries: newTable(),
		regions:   newTable(),
		general:   newTable(),
		Columns:   columns,
	}
}

// AddLineage interns an alias-resolved lineage name and returns its id.
func (d *Dictionary) AddLineage(name string) uint32 { return d.lineages.add(name) }

// AddCountry interns a country name and returns its id.
func (d *Dictionary) AddCountry(name string) uint32 { return d.countries.add(name) }

// AddRegion interns a region name and returns its id.
func (d *Dictionary) AddRegion(name string) uint32 { return d.regions.add(name) }

// AddGeneral interns a free-form string value and returns its id.
func (d *Dictionary) AddGeneral(name string) uint32 { return d.general.add(name) }

// LineageID returns the id for an alias-resolved lineage name, or NotFound.
func (d *Dictionary) LineageID(name string) uint32 { return d.lineages.id(name) }

// CountryID returns the id for a country name, or NotFound.
func (d *Dictionary) CountryID(name string) uint32 { return d.countries.id(name) }

// RegionID returns the id for a region name, or NotFound.
func (d *Dictionary) RegionID(name string) uint32 { return d.regions.id(name) }

// GeneralID returns the id for a free-form value, or NotFound.
func (d *Dictionary) GeneralID(name string) uint32 { return d.general.id(name) }

// Lineage returns the name for a lineage id, or "".
func (d *Dictionary) Lineage(id uint32) string { return d.lineages.name(id) }

// Country returns the name for a country id, or "".
func (d *Dictionary) Country(id uint32) string { return d.countries.name(id) }

// Region returns the name for a region id, or "".
func (d *Dictionary) Region(id uint32) string { return d.regions.name(id) }

// General returns the free-form value for an id, or "".
func (d *Dictionary) General(id uint32) string { return d.general.name(id) }

// LineageCount returns the number of distinct lineages.
func (d *Dictionary) LineageCount() uint32 { return uint32(len(d.lineages.byID)) }

// CountryCount returns the number of distinct countries.
func (d *Dictionary) CountryCount() uint32 { return uint32(len(d.countries.byID)) }

// RegionCount returns the number of distinct regions.
func (d *Dictionary) RegionCount() uint32 { return uint32(len(d.regions.byID)) }

// ColumnIndex returns the index of an extra column by name, or -1.
func (d *Dictionary) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Save writes the dictionary in its tab-separated text form.
func (d *Dictionary) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	sections := []struct {
		name string
		t    *table
	}{
		{"lineages", d.lineages},
		{"countries", d.countries},
		{"regions", d.regions},
		{"general", d.general},
	}
	for _, sec := range sections {
		fmt.Fprintf(bw, "%s\t%d\n", sec.name, len(sec.t.byID))
		for _, name := range sec.t.byID {
			fmt.Fprintf(bw, "%s\n", name)
		}
	}
	fmt.Fprintf(bw, "columns\t%d\n", len(d.Columns))
	for _, c := range d.Columns {
		fmt.Fprintf(bw, "%s\n", c)
	}
	return bw.Flush()
}

// Load reads a dictionary previously written by Save.
func Load(r io.Reader) (*Dictionary, error) {
	d := New()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	readSection := func() (string, int, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", 0, err
			}
			return "", 0, io.EOF
		}
		name, countStr, ok := strings.Cut(sc.Text(), "\t")
		if !ok {
			return "", 0, fmt.Errorf("dict: malformed section header %q", sc.Text())
		}
		n, err := strconv.Atoi(countStr)
		if err != nil {
			return "", 0, fmt.Errorf("dict: bad section count %q: %w", countStr, err)
		}
		return name, n, nil
	}

	for {
		name, n, err := readSection()
		if err == io.EOF {
			return d, nil
		}
		if err != nil {
			return nil, err
		}

		var t *table
		switch name {
		case "lineages":
			t = d.lineages
		case "countries":
			t = d.countries
		case "regions":
			t = d.regions
		case "general":
			t = d.general
		case "columns":
			for i := 0; i < n; i++ {
				if !sc.Scan() {
					return nil, fmt.Errorf("dict: truncated columns section")
				}
				d.Columns = append(d.Columns, sc.Text())
			}
			continue
		default:
			return nil, fmt.Errorf("dict: unknown section %q", name)
		}
		for i := 0; i < n; i++ {
			if !sc.Scan() {
				return nil, fmt.Errorf("dict: truncated section %q", name)
			}
			t.add(sc.Text())
		}
	}
}
