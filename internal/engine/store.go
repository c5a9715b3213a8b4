package engine

import "salesdash/internal/models"

// ColumnStore holds a record set in Struct-of-Arrays format for the breakdown aggregator
type ColumnStore struct {
	// Data Columns (Flat Arrays)
	Sales     []int64
	Revenues  []int64
	Profits   []int64
	Orders    []int64
	Customers []int64
	Months    []int8

	// Dictionary Encoded IDs (0..N)
	RegionIDs   []int32
	CategoryIDs []int32

	// Dictionaries (ID -> String)
	RegionDict   []string
	CategoryDict []string
}

// NewColumnStore encodes records column by column. Regions and categories are
// dictionary encoded in first-seen order.
func NewColumnStore(records []models.SalesRecord) *ColumnStore {
	n := len(records)
	cs := &ColumnStore{
		Sales:       make([]int64, n),
		Revenues:    make([]int64, n),
		Profits:     make([]int64, n),
		Orders:      make([]int64, n),
		Customers:   make([]int64, n),
		Months:      make([]int8, n),
		RegionIDs:   make([]int32, n),
		CategoryIDs: make([]int32, n),
	}

	rMap := make(map[string]int32)
	cMap := make(map[string]int32)
	for i, r := range records {
		cs.Sales[i] = r.Sales
		cs.Revenues[i] = r.Revenue
		cs.Profits[i] = r.Profit
		cs.Orders[i] = r.Orders
		cs.Customers[i] = r.Customers
		cs.Months[i] = int8(r.Month)
		cs.RegionIDs[i] = intern(string(r.Region), rMap, &cs.RegionDict)
		cs.CategoryIDs[i] = intern(string(r.ProductCategory), cMap, &cs.CategoryDict)
	}
	return cs
}

func intern(s string, ids map[string]int32, dict *[]string) int32 {
	if id, ok := ids[s]; ok {
		return id
	}
	id := int32(len(*dict))
	*dict = append(*dict, s)
	ids[s] = id
	return id
}

func (cs *ColumnStore) Len() int { return len(cs.Sales) }
