package engine

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"salesdash/internal/models"
)

// RandomSource is satisfied by *rand.Rand from math/rand/v2.
type RandomSource interface {
	Float64() float64
}

// Jitter yields the multiplier applied to one expanded record.
type Jitter interface {
	Multiplier() float64
}

// UniformJitter draws multipliers uniformly from [Min, Max).
type UniformJitter struct {
	Min, Max float64
	Source   RandomSource
}

func (u UniformJitter) Multiplier() float64 {
	return u.Min + u.Source.Float64()*(u.Max-u.Min)
}

// LockedSource serializes access to a RandomSource that is not safe for
// concurrent use, such as *rand.Rand.
type LockedSource struct {
	mu  sync.Mutex
	src RandomSource
}

func NewLockedSource(src RandomSource) *LockedSource { return &LockedSource{src: src} }

func (l *LockedSource) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Float64()
}

// FixedJitter always returns the same multiplier.
type FixedJitter float64

func (f FixedJitter) Multiplier() float64 { return float64(f) }

type Generator struct {
	catalog *Catalog
	jitter  Jitter
}

func NewGenerator(catalog *Catalog, jitter Jitter) *Generator {
	return &Generator{catalog: catalog, jitter: jitter}
}

func (g *Generator) Catalog() *Catalog { return g.catalog }

// Generate expands the base table of year into one record per base month,
// region and category. Values differ on every call unless the jitter is fixed.
func (g *Generator) Generate(year int) ([]models.SalesRecord, error) {
	base, err := g.catalog.BaseRows(year)
	if err != nil {
		return nil, err
	}

	out := make([]models.SalesRecord, 0, len(base)*len(g.catalog.Regions)*len(g.catalog.Categories))
	for _, row := range base {
		for _, region := range g.catalog.Regions {
			for _, category := range g.catalog.Categories {
				m := g.jitter.Multiplier()
				if math.IsNaN(m) || math.IsInf(m, 0) || m < 0 {
					return nil, &GenerationError{Year: year, Cause: fmt.Errorf("invalid multiplier %v", m)}
				}
				out = append(out, models.SalesRecord{
					Year:            year,
					Month:           row.Month,
					Region:          region,
					ProductCategory: category,
					Sales:           scale(row.Sales, m),
					Orders:          scale(row.Orders, m),
					Revenue:         scale(row.Revenue, m),
					Profit:          scale(row.Profit, m),
					Customers:       scale(row.Customers, m),
				})
			}
		}
	}
	return out, nil
}

func scale(v int64, m float64) int64 {
	return int64(math.Round(float64(v) * m))
}

// GeneratePair generates year and year-1 concurrently. previous is nil when
// the catalog does not cover year-1.
func (g *Generator) GeneratePair(ctx context.Context, year int) (current, previous []models.SalesRecord, err error) {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		current, err = g.Generate(year)
		return err
	})
	if g.catalog.Supports(year - 1) {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var err error
			previous, err = g.Generate(year - 1)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return current, previous, nil
}
