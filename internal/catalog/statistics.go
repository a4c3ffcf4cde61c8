package catalog

import (
	"fmt"

	"github.com/hyperplane-db/hyperplane/internal/store"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

const statisticsStoreName = "~catalog.statistics"

// ValueStatistics tracks per-column value distribution summary: a
// running count, null count, and a [min, max] estimate. fresh becomes
// false once a delete invalidates the min/max estimate (a delete may
// remove the current extremum and recomputing it exactly would require
// a full scan, which optimize() performs on demand).
type ValueStatistics struct {
	Count     int64       `json:"count"`
	NullCount int64       `json:"nullCount"`
	Min       *types.Value `json:"min,omitempty"`
	Max       *types.Value `json:"max,omitempty"`
	Fresh     bool        `json:"fresh"`
}

// Insert folds a newly inserted value into the statistics.
func (s *ValueStatistics) Insert(v types.Value) {
	s.Count++
	if v.Null {
		s.NullCount++
		return
	}
	s.observe(v)
}

// Update folds a replacement (old removed, new inserted) into the
// statistics. Count does not change.
func (s *ValueStatistics) Update(old, next types.Value) {
	if old.Null {
		s.NullCount--
	}
	if next.Null {
		s.NullCount++
		return
	}
	s.observe(next)
}

// Delete folds a removal into the statistics, marking min/max stale
// since the removed value may have been the current extremum.
func (s *ValueStatistics) Delete(old types.Value) {
	s.Count--
	if old.Null {
		s.NullCount--
		return
	}
	s.Fresh = false
}

// observe folds a non-null scalar value into min/max. Vectors and
// complex numbers have no total order (Value.Compare rejects them) and
// are left out of min/max tracking; NaN values are skipped outright.
func (s *ValueStatistics) observe(v types.Value) {
	if v.IsNaN() || v.Typ.Kind.IsVector() || v.Typ.Kind.IsComplex() {
		return
	}
	if s.Min == nil {
		m := v
		s.Min = &m
	} else if cmp, err := v.Compare(*s.Min); err == nil && cmp < 0 {
		m := v
		s.Min = &m
	}
	if s.Max == nil {
		m := v
		s.Max = &m
	} else if cmp, err := v.Compare(*s.Max); err == nil && cmp > 0 {
		m := v
		s.Max = &m
	}
	s.Fresh = true
}

func (t *CatalogTx) statisticsStore() (*store.Store, error) {
	return t.tx.OpenStore(statisticsStoreName, store.Unique)
}

func statisticsKey(entity types.Name, column string) []byte {
	return []byte(fmt.Sprintf("%s.%s", entity.String(), column))
}

func (t *CatalogTx) initStatistics(entity types.Name, column string) error {
	s, err := t.statisticsStore()
	if err != nil {
		return err
	}
	data, err := encodeJSON(&ValueStatistics{Fresh: true})
	if err != nil {
		return err
	}
	_, err = s.Put(statisticsKey(entity, column), data)
	return err
}

// GetStatistics returns entity.column's current statistics.
func (t *CatalogTx) GetStatistics(entity types.Name, column string) (*ValueStatistics, error) {
	s, err := t.statisticsStore()
	if err != nil {
		return nil, err
	}
	v, err := s.Get(statisticsKey(entity, column))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return &ValueStatistics{Fresh: true}, nil
	}
	var stats ValueStatistics
	if err := decodeJSON(v, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// PutStatistics persists entity.column's statistics.
func (t *CatalogTx) PutStatistics(entity types.Name, column string, stats *ValueStatistics) error {
	s, err := t.statisticsStore()
	if err != nil {
		return err
	}
	data, err := encodeJSON(stats)
	if err != nil {
		return err
	}
	_, err = s.Put(statisticsKey(entity, column), data)
	return err
}

// ResetStatistics clears entity.column's statistics back to empty, the
// first step of optimize().
func (t *CatalogTx) ResetStatistics(entity types.Name, column string) error {
	return t.PutStatistics(entity, column, &ValueStatistics{Fresh: true})
}

func (t *CatalogTx) dropStatistics(entity types.Name, column string) error {
	s, err := t.statisticsStore()
	if err != nil {
		return err
	}
	return s.Delete(statisticsKey(entity, column))
}
