// Package vaf implements the vector approximation file index:
// equidistant per-dimension marks and per-tuple cell signatures that
// bound L1/L2/L2-squared distance to prune candidates for an exact
// top-k nearest-neighbor scan.
package vaf

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/hyperplane-db/hyperplane/internal/catalog"
	"github.com/hyperplane-db/hyperplane/internal/cost"
	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/distance"
	"github.com/hyperplane-db/hyperplane/internal/events"
	"github.com/hyperplane-db/hyperplane/internal/index"
	"github.com/hyperplane-db/hyperplane/internal/store"
	"github.com/hyperplane-db/hyperplane/internal/txn"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// DefaultMarksPerDimension is the marks-per-dimension policy default.
const DefaultMarksPerDimension = 50

const marksKey = "marks"

// Index is the VAF secondary index over one real-vector column.
type Index struct {
	meta          *catalog.IndexMeta
	catTx         *catalog.CatalogTx
	entity        types.Name
	column        catalog.ColumnDef
	marksPerDim   int
	marksStore    *store.Store
	sigStore      *store.Store
	marks         [][]float64 // cached after Rebuild/load; nil until loaded
}

// Args bundles the constructor parameters.
type Args struct {
	CatTx       *catalog.CatalogTx
	Entity      types.Name
	Meta        *catalog.IndexMeta
	Column      catalog.ColumnDef
	MarksPerDim int // 0 selects DefaultMarksPerDimension
}

func marksStoreName(meta *catalog.IndexMeta, entity types.Name) string {
	return "idx:vaf:marks:" + entity.String() + "." + meta.Index
}

func sigStoreName(meta *catalog.IndexMeta, entity types.Name) string {
	return "idx:vaf:sig:" + entity.String() + "." + meta.Index
}

// Open opens (creating if absent) the VAF index's marks and signature stores.
func Open(args Args) (*Index, error) {
	mpd := args.MarksPerDim
	if mpd <= 0 {
		mpd = DefaultMarksPerDimension
	}
	ms, err := args.CatTx.Store().OpenStore(marksStoreName(args.Meta, args.Entity), store.Unique)
	if err != nil {
		return nil, err
	}
	ss, err := args.CatTx.Store().OpenStore(sigStoreName(args.Meta, args.Entity), store.Unique)
	if err != nil {
		return nil, err
	}
	ix := &Index{
		meta:        args.Meta,
		catTx:       args.CatTx,
		entity:      args.Entity,
		column:      args.Column,
		marksPerDim: mpd,
		marksStore:  ms,
		sigStore:    ss,
	}
	ix.loadMarks()
	return ix, nil
}

// NewFactory adapts Open to the index.Factory signature.
func NewFactory() index.Factory {
	return func(raw interface{}) (index.Index, error) {
		args, ok := raw.(Args)
		if !ok {
			return nil, dberr.New(dberr.KindSyntax, "", "vaf.Open: invalid args")
		}
		return Open(args)
	}
}

func (ix *Index) Type() string                    { return "vaf" }
func (ix *Index) Columns() []string               { return ix.meta.Columns }
func (ix *Index) State() catalog.IndexState       { return ix.meta.State }
func (ix *Index) Count() int                      { return ix.sigStore.Count() }
func (ix *Index) SupportsIncrementalUpdate() bool { return false }
func (ix *Index) SupportsPartitioning() bool      { return true }

// CanProcess holds for a proximity predicate on the indexed column
// using L1, L2 or L2Squared distance.
func (ix *Index) CanProcess(pred index.Predicate) bool {
	pp, ok := index.AsProximity(pred)
	if !ok {
		return false
	}
	if pp.Column != ix.meta.Columns[0] {
		return false
	}
	switch pp.Distance {
	case distance.L1, distance.L2, distance.L2Squared:
		return true
	default:
		return false
	}
}

// Cost estimates a bounded-pruning scan: IO proportional to signature
// count (cheap, fixed-width entries) plus a smaller CPU cost for the
// occasional exact-vector fetch.
func (ix *Index) Cost(pred index.Predicate) cost.Cost {
	if !ix.CanProcess(pred) {
		return cost.Cost{IO: 1e9}
	}
	n := float64(ix.Count())
	return cost.Cost{IO: n * 0.1, CPU: n * 0.05, Memory: float64(ix.column.Dim) * 8, Accuracy: 0}
}

// --- marks / signature encoding (stable byte contract) ---

func encodeMarks(marks [][]float64) []byte {
	buf := make([]byte, 0, 64)
	buf = appendUvarint(buf, uint64(len(marks)))
	for _, dim := range marks {
		buf = appendUvarint(buf, uint64(len(dim)))
		for _, v := range dim {
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
			buf = append(buf, b[:]...)
		}
	}
	return buf
}

func decodeMarks(b []byte) [][]float64 {
	pos := 0
	d, n := binary.Uvarint(b[pos:])
	pos += n
	marks := make([][]float64, d)
	for i := range marks {
		length, n := binary.Uvarint(b[pos:])
		pos += n
		dim := make([]float64, length)
		for j := range dim {
			dim[j] = math.Float64frombits(binary.BigEndian.Uint64(b[pos:]))
			pos += 8
		}
		marks[i] = dim
	}
	return marks
}

func encodeSignature(cells []int) []byte {
	buf := appendUvarint(nil, uint64(len(cells)))
	for _, c := range cells {
		buf = appendUvarint(buf, uint64(c))
	}
	return buf
}

func decodeSignature(b []byte) []int {
	pos := 0
	n, sz := binary.Uvarint(b[pos:])
	pos += sz
	cells := make([]int, n)
	for i := range cells {
		v, sz := binary.Uvarint(b[pos:])
		pos += sz
		cells[i] = int(v)
	}
	return cells
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func (ix *Index) loadMarks() {
	raw, err := ix.marksStore.Get([]byte(marksKey))
	if err != nil || raw == nil {
		ix.marks = nil
		return
	}
	ix.marks = decodeMarks(raw)
}

// --- rebuild ---

// Rebuild recomputes marks from the column's value range and rewrites
// every tuple's cell signature.
func (ix *Index) Rebuild() error {
	col, err := txn.OpenColumn(ix.catTx, ix.entity, ix.column)
	if err != nil {
		return err
	}
	dim := ix.column.Typ().LogicalSize()

	mins, maxs, err := ix.columnRange(col, dim)
	if err != nil {
		return err
	}
	marks := make([][]float64, dim)
	for d := 0; d < dim; d++ {
		bounds := make([]float64, ix.marksPerDim+1)
		span := maxs[d] - mins[d]
		for i := 0; i <= ix.marksPerDim; i++ {
			bounds[i] = mins[d] + float64(i)*span/float64(ix.marksPerDim)
		}
		marks[d] = bounds
	}
	if _, err := ix.marksStore.Put([]byte(marksKey), encodeMarks(marks)); err != nil {
		return err
	}
	ix.marks = marks

	if err := ix.Clear(); err != nil {
		return err
	}
	cur := col.Cursor(nil, nil)
	defer cur.Close()
	for {
		tid, v, ok := cur.Next()
		if !ok {
			break
		}
		if v.Null {
			continue
		}
		cells := cellsFor(v.AsFloat64Slice(), marks, ix.marksPerDim)
		if _, err := ix.sigStore.Put(types.EncodeSequence(tid), encodeSignature(cells)); err != nil {
			return err
		}
	}
	ix.meta.State = catalog.StateClean
	return ix.catTx.SetIndexState(ix.meta.Name(), catalog.StateClean)
}

// columnRange computes per-dimension [min, max] by a brute-force scan.
// Per-column ValueStatistics only track scalar extremes, so vector
// columns always take the scan path.
func (ix *Index) columnRange(col *txn.ColumnTx, dim int) (mins, maxs []float64, err error) {
	mins = make([]float64, dim)
	maxs = make([]float64, dim)
	for d := range mins {
		mins[d] = math.Inf(1)
		maxs[d] = math.Inf(-1)
	}
	cur := col.Cursor(nil, nil)
	defer cur.Close()
	seen := false
	for {
		_, v, ok := cur.Next()
		if !ok {
			break
		}
		if v.Null {
			continue
		}
		seen = true
		vec := v.AsFloat64Slice()
		for d := 0; d < dim; d++ {
			if vec[d] < mins[d] {
				mins[d] = vec[d]
			}
			if vec[d] > maxs[d] {
				maxs[d] = vec[d]
			}
		}
	}
	if !seen {
		for d := range mins {
			mins[d], maxs[d] = 0, 0
		}
	}
	return mins, maxs, nil
}

// cellsFor computes the cell-index vector for vec: for each dimension,
// the cell i with marks[d][i] <= component value <= marks[d][i+1] (one
// below the index of the first boundary >= the value), clamped to
// [0, marksPerDim-1].
func cellsFor(vec []float64, marks [][]float64, marksPerDim int) []int {
	cells := make([]int, len(vec))
	for d, x := range vec {
		bounds := marks[d]
		idx := sort.Search(len(bounds), func(i int) bool { return bounds[i] >= x })
		if idx == 0 {
			idx = 1
		}
		cell := idx - 1
		if cell < 0 {
			cell = 0
		}
		if cell > marksPerDim-1 {
			cell = marksPerDim - 1
		}
		cells[d] = cell
	}
	return cells
}

// partialBoundsL1 returns per-dimension (lower, upper) L1 bound terms.
func partialBoundsL1(q float64, lo, hi float64) (lower, upper float64) {
	lower = math.Max(q-hi, math.Max(lo-q, 0))
	upper = math.Max(q-lo, hi-q)
	return
}

// Filter runs the bounded VAF scan over the full signature range.
func (ix *Index) Filter(pred index.Predicate) (index.Cursor, error) {
	return ix.FilterPartition(pred, 0, 1)
}

// FilterPartition runs the bounded VAF scan restricted to the
// partition's slice of signatures; callers merge partitions themselves.
func (ix *Index) FilterPartition(pred index.Predicate, partitionIndex, partitions int) (index.Cursor, error) {
	pp, ok := index.AsProximity(pred)
	if !ok || !ix.CanProcess(pred) {
		return nil, dberr.New(dberr.KindUnsupportedPredicate, ix.meta.Name().String(), "vaf index cannot process predicate")
	}
	if ix.marks == nil {
		return nil, dberr.New(dberr.KindIndexNotSupported, ix.meta.Name().String(), "vaf index has not been built")
	}
	query := pp.Query.AsFloat64Slice()
	dim := len(query)

	col, err := txn.OpenColumn(ix.catTx, ix.entity, ix.column)
	if err != nil {
		return nil, err
	}
	scalarFn := distance.Scalar(pp.Distance)
	if scalarFn == nil {
		return nil, dberr.New(dberr.KindUnsupportedPredicate, ix.meta.Name().String(), "unsupported distance kind")
	}

	low, high, err := ix.partitionRange(partitionIndex, partitions)
	if err != nil {
		return nil, err
	}

	topk := index.NewTopKHeap(pp.K)
	sigCur := ix.sigStore.Cursor()
	defer sigCur.Close()
	for {
		k, v, ok := sigCur.Next()
		if !ok {
			break
		}
		tid := types.DecodeSequence(k)
		if tid < low || tid > high {
			continue
		}
		cells := decodeSignature(v)
		lower, upper := ix.boundDistance(pp.Distance, query, cells, dim)
		_ = upper

		worst, full := topk.Worst()
		if !full || lower < worst {
			value, found, err := col.Get(tid)
			if err != nil {
				return nil, err
			}
			if !found || value.Null {
				continue
			}
			exact := scalarFn(query, value.AsFloat64Slice())
			topk.Offer(tid, exact)
		}
	}
	return index.NewSliceCursor(topk.Results()), nil
}

// boundDistance aggregates per-dimension lower/upper partial terms for
// the requested distance kind.
func (ix *Index) boundDistance(kind distance.Kind, query []float64, cells []int, dim int) (lower, upper float64) {
	switch kind {
	case distance.L1:
		for d := 0; d < dim; d++ {
			bounds := ix.marks[d]
			cell := cells[d]
			l, u := partialBoundsL1(query[d], bounds[cell], bounds[cell+1])
			lower += l
			upper += u
		}
		return
	case distance.L2, distance.L2Squared:
		var sqLower, sqUpper float64
		for d := 0; d < dim; d++ {
			bounds := ix.marks[d]
			cell := cells[d]
			l, u := partialBoundsL1(query[d], bounds[cell], bounds[cell+1])
			sqLower += l * l
			sqUpper += u * u
		}
		if kind == distance.L2 {
			return math.Sqrt(sqLower), math.Sqrt(sqUpper)
		}
		return sqLower, sqUpper
	default:
		return 0, math.Inf(1)
	}
}

// partitionRange computes the same [low, high] TupleId range formula as
// internal/txn's EntityTx.Cursor, so an index-merged partitioned plan
// slices signatures the same way its sibling entity scan slices tuples.
func (ix *Index) partitionRange(partitionIndex, partitions int) (low, high int64, err error) {
	max, err := ix.catTx.CurrentTupleID(ix.entity)
	if err != nil {
		return 0, 0, err
	}
	if partitions <= 1 {
		return 1, max, nil
	}
	step := max / int64(partitions)
	low = int64(partitionIndex)*step + 1
	high = (int64(partitionIndex) + 1) * step
	if partitionIndex == partitions-1 {
		high = max
	}
	return low, high, nil
}

// Update marks the index DIRTY: VAF does not support incremental
// updates.
func (ix *Index) Update(ev events.Event) error {
	if ev.Entity.String() != ix.entity.String() {
		return nil
	}
	if ix.meta.State == catalog.StateClean {
		ix.meta.State = catalog.StateDirty
		return ix.catTx.SetIndexState(ix.meta.Name(), catalog.StateDirty)
	}
	return nil
}

// Clear removes every persisted signature (marks are left in place;
// Rebuild overwrites them unconditionally).
func (ix *Index) Clear() error {
	c := ix.sigStore.Cursor()
	defer c.Close()
	var keys [][]byte
	for {
		k, _, ok := c.Next()
		if !ok {
			break
		}
		kc := make([]byte, len(k))
		copy(kc, k)
		keys = append(keys, kc)
	}
	for _, k := range keys {
		if err := ix.sigStore.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Marks exposes the loaded per-dimension boundary arrays, for tests
// checking the round-trip invariant marks[i][cell] <= v[i] <= marks[i][cell+1].
func (ix *Index) Marks() [][]float64 { return ix.marks }
