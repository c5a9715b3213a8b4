package engine

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"salesdash/internal/models"
)

// --- 1. FAST PARSERS ---

// fastInt parses "123" -> 123. ok is false on an empty field or a non-digit.
func fastInt(b []byte) (int64, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0, false
	}
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}

// fastMonth parses "3", "03" or "Mar" -> 3
func fastMonth(b []byte) (models.Month, bool) {
	if n, ok := fastInt(b); ok {
		m := models.Month(n)
		return m, m.Valid()
	}
	m, err := models.ParseMonth(string(b))
	return m, err == nil
}

// --- 2. BASE TABLE LOADER ---

// baseTableColumns is the expected CSV header, in order.
var baseTableColumns = []string{"year", "month", "sales", "orders", "revenue", "profit", "customers"}

// LoadBaseTable reads a CSV base table (header row first) keyed by year.
func LoadBaseTable(path string) (map[int][]BaseRow, error) {
	start := time.Now()

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read base table: %w", err)
	}
	table, err := ParseBaseTable(content)
	if err != nil {
		return nil, fmt.Errorf("parse base table %s: %w", path, err)
	}

	rows := 0
	for _, r := range table {
		rows += len(r)
	}
	slog.Debug("Base table loaded", "path", path, "years", len(table), "rows", rows, "duration", time.Since(start))
	return table, nil
}

// ParseBaseTable parses CSV content. The header row is skipped.
func ParseBaseTable(content []byte) (map[int][]BaseRow, error) {
	if idx := bytes.IndexByte(content, '\n'); idx != -1 {
		content = content[idx+1:]
	} else {
		content = nil
	}

	sep := []byte{','}
	table := make(map[int][]BaseRow)
	lineNo := 1

	for len(content) > 0 {
		lineNo++
		line := content
		if i := bytes.IndexByte(content, '\n'); i != -1 {
			line, content = content[:i], content[i+1:]
		} else {
			content = nil
		}
		line = bytes.TrimRight(line, "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var fields [7][]byte
		rest := line
		for col := range fields {
			var found bool
			fields[col], rest, found = bytes.Cut(rest, sep)
			last := col == len(fields)-1
			if found == last {
				return nil, fmt.Errorf("line %d: expected %d columns (%v)", lineNo, len(fields), baseTableColumns)
			}
		}

		year, ok := fastInt(fields[0])
		if !ok {
			return nil, fmt.Errorf("line %d: invalid year %q", lineNo, fields[0])
		}
		month, ok := fastMonth(fields[1])
		if !ok {
			return nil, fmt.Errorf("line %d: invalid month %q", lineNo, fields[1])
		}

		var measures [5]int64
		for i := range measures {
			v, ok := fastInt(fields[i+2])
			if !ok {
				return nil, fmt.Errorf("line %d: invalid %s %q", lineNo, baseTableColumns[i+2], fields[i+2])
			}
			measures[i] = v
		}

		table[int(year)] = append(table[int(year)], BaseRow{
			Month:     month,
			Sales:     measures[0],
			Orders:    measures[1],
			Revenue:   measures[2],
			Profit:    measures[3],
			Customers: measures[4],
		})
	}

	if len(table) == 0 {
		return nil, fmt.Errorf("no data rows")
	}
	return table, nil
}

// --- 3. CATALOG FILE ---

type catalogFile struct {
	Regions    []string `yaml:"regions"`
	Categories []string `yaml:"categories"`
}

// LoadCatalog builds a catalog from the defaults, overriding the enumerations
// from a YAML file and the base table from a CSV file when paths are given.
func LoadCatalog(enumPath, baseTablePath string) (*Catalog, error) {
	c := DefaultCatalog()

	if enumPath != "" {
		data, err := os.ReadFile(enumPath)
		if err != nil {
			return nil, fmt.Errorf("read catalog file: %w", err)
		}
		var f catalogFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse catalog file %s: %w", enumPath, err)
		}
		if len(f.Regions) > 0 {
			c.Regions = make([]models.Region, len(f.Regions))
			for i, r := range f.Regions {
				c.Regions[i] = models.Region(r)
			}
		}
		if len(f.Categories) > 0 {
			c.Categories = make([]models.Category, len(f.Categories))
			for i, cat := range f.Categories {
				c.Categories[i] = models.Category(cat)
			}
		}
	}

	if baseTablePath != "" {
		table, err := LoadBaseTable(baseTablePath)
		if err != nil {
			return nil, err
		}
		c.Base = table
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
