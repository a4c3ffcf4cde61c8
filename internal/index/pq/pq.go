// Package pq implements the product-quantization index: per-sub-space
// k-means++ codebooks trained on a deterministic sample, a two-phase
// (approximate lookup-table, then exact rerank) top-k query.
package pq

import (
	"container/heap"
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"

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

// Config holds the PQ training and query policy variables.
type Config struct {
	NumCentroids    int   // <= 32767
	NumSubspaces    int   // 0 selects AUTO
	SampleSize      int   // >= NumCentroids
	Seed            int64
	MaxIterations   int
	InflationFactor float64 // default 1.15, phase-1 candidate-count multiplier
}

// DefaultConfig returns the engine's out-of-the-box PQ policy.
func DefaultConfig() Config {
	return Config{NumCentroids: 256, NumSubspaces: 0, SampleSize: 10000, Seed: 1, MaxIterations: 25, InflationFactor: 1.15}
}

const maxSubspaces = 127 // M is persisted as a signed byte

// chooseSubspaces picks the number of sub-spaces M for dimensionality
// d when none is requested: the largest divisor of d from a small
// candidate ladder, bounded by maxSubspaces and subject to M | d.
func chooseSubspaces(d, requested int) int {
	if requested > 0 {
		return requested
	}
	for _, m := range []int{16, 8, 4, 2, 1} {
		if m <= d && m <= maxSubspaces && d%m == 0 {
			return m
		}
	}
	return 1
}

// Codebook is the trained per-sub-space quantizer.
type Codebook struct {
	Dim        int
	M          int
	SubDim     int
	Centroids  [][][]float64 // [m][centroid][subDim]
	Covariance [][]float64   // [m][subDim] diagonal variance, Mahalanobis-style weight
}

// Index is the PQ secondary index over one real-vector column.
type Index struct {
	meta          *catalog.IndexMeta
	catTx         *catalog.CatalogTx
	entity        types.Name
	column        catalog.ColumnDef
	cfg           Config
	codebook      *Codebook
	codebookStore *store.Store
	sigStore      *store.Store
}

// Args bundles the constructor parameters.
type Args struct {
	CatTx  *catalog.CatalogTx
	Entity types.Name
	Meta   *catalog.IndexMeta
	Column catalog.ColumnDef
	Config Config
}

func codebookStoreName(meta *catalog.IndexMeta, entity types.Name) string {
	return "idx:pq:codebook:" + entity.String() + "." + meta.Index
}

func sigStoreName(meta *catalog.IndexMeta, entity types.Name) string {
	return "idx:pq:sig:" + entity.String() + "." + meta.Index
}

const codebookKey = "codebook"

// Open opens (creating if absent) the PQ index's codebook and signature stores.
func Open(args Args) (*Index, error) {
	cfg := args.Config
	if cfg.NumCentroids == 0 {
		cfg = DefaultConfig()
	}
	if cfg.InflationFactor == 0 {
		cfg.InflationFactor = 1.15
	}
	cs, err := args.CatTx.Store().OpenStore(codebookStoreName(args.Meta, args.Entity), store.Unique)
	if err != nil {
		return nil, err
	}
	ss, err := args.CatTx.Store().OpenStore(sigStoreName(args.Meta, args.Entity), store.Unique)
	if err != nil {
		return nil, err
	}
	ix := &Index{meta: args.Meta, catTx: args.CatTx, entity: args.Entity, column: args.Column, cfg: cfg, codebookStore: cs, sigStore: ss}
	ix.loadCodebook()
	return ix, nil
}

// NewFactory adapts Open to the index.Factory signature.
func NewFactory() index.Factory {
	return func(raw interface{}) (index.Index, error) {
		args, ok := raw.(Args)
		if !ok {
			return nil, dberr.New(dberr.KindSyntax, "", "pq.Open: invalid args")
		}
		return Open(args)
	}
}

func (ix *Index) Type() string                    { return "pq" }
func (ix *Index) Columns() []string               { return ix.meta.Columns }
func (ix *Index) State() catalog.IndexState       { return ix.meta.State }
func (ix *Index) Count() int                      { return ix.sigStore.Count() }
func (ix *Index) SupportsIncrementalUpdate() bool { return false }
func (ix *Index) SupportsPartitioning() bool      { return true }

func (ix *Index) CanProcess(pred index.Predicate) bool {
	pp, ok := index.AsProximity(pred)
	if !ok || pp.Column != ix.meta.Columns[0] {
		return false
	}
	return distance.SupportsKind(pp.Distance)
}

// Cost approximates PQ as cheaper-but-lossier than VAF: fixed per-entry
// table lookups with a non-zero accuracy penalty, versus exact scans.
func (ix *Index) Cost(pred index.Predicate) cost.Cost {
	if !ix.CanProcess(pred) {
		return cost.Cost{IO: 1e9}
	}
	n := float64(ix.Count())
	return cost.Cost{IO: n * 0.02, CPU: n * 0.02, Memory: float64(ix.codebookMemory()), Accuracy: 0.2}
}

func (ix *Index) codebookMemory() int {
	if ix.codebook == nil {
		return 0
	}
	return ix.codebook.M * len(ix.codebook.Centroids[0]) * ix.codebook.SubDim * 8
}

// --- training ---

// Rebuild (re)trains the codebook on a deterministic sample and
// rewrites every tuple's quantized signature.
func (ix *Index) Rebuild() error {
	col, err := txn.OpenColumn(ix.catTx, ix.entity, ix.column)
	if err != nil {
		return err
	}
	dim := ix.column.Typ().LogicalSize()
	count := col.Count()

	sample, err := ix.sampleRows(col, count)
	if err != nil {
		return err
	}
	m := chooseSubspaces(dim, ix.cfg.NumSubspaces)
	subDim := dim / m
	codebook := &Codebook{Dim: dim, M: m, SubDim: subDim, Centroids: make([][][]float64, m), Covariance: make([][]float64, m)}
	rng := rand.New(rand.NewSource(ix.cfg.Seed))
	for sub := 0; sub < m; sub++ {
		points := make([][]float64, len(sample))
		for i, v := range sample {
			points[i] = v[sub*subDim : (sub+1)*subDim]
		}
		centroids := kmeansPlusPlus(points, ix.cfg.NumCentroids, ix.cfg.MaxIterations, rng)
		codebook.Centroids[sub] = centroids
		codebook.Covariance[sub] = diagonalVariance(points, centroids, subDim)
	}
	ix.codebook = codebook
	if err := ix.codebookStore.Delete([]byte(codebookKey)); err != nil {
		return err
	}
	if _, err := ix.codebookStore.Put([]byte(codebookKey), encodeCodebook(codebook)); err != nil {
		return err
	}

	if err := ix.Clear(); err != nil {
		return err
	}
	buckets := make(map[string][]int64)
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
		sig := ix.quantize(v.AsFloat64Slice())
		key := string(encodeSignature(sig))
		buckets[key] = append(buckets[key], tid)
	}
	for key, tids := range buckets {
		if _, err := ix.sigStore.Put([]byte(key), encodeTupleList(tids)); err != nil {
			return err
		}
	}
	ix.meta.State = catalog.StateClean
	return ix.catTx.SetIndexState(ix.meta.Name(), catalog.StateClean)
}

// sampleRows draws a deterministic sample of sampleSize/count rows via
// reservoir sampling seeded by cfg.Seed.
func (ix *Index) sampleRows(col *txn.ColumnTx, count int) ([][]float64, error) {
	target := ix.cfg.SampleSize
	if target <= 0 || target > count {
		target = count
	}
	rng := rand.New(rand.NewSource(ix.cfg.Seed))
	reservoir := make([][]float64, 0, target)
	cur := col.Cursor(nil, nil)
	defer cur.Close()
	seen := 0
	for {
		_, v, ok := cur.Next()
		if !ok {
			break
		}
		if v.Null {
			continue
		}
		seen++
		vec := append([]float64(nil), v.AsFloat64Slice()...)
		if len(reservoir) < target {
			reservoir = append(reservoir, vec)
		} else {
			j := rng.Intn(seen)
			if j < target {
				reservoir[j] = vec
			}
		}
	}
	return reservoir, nil
}

// kmeansPlusPlus trains numCentroids centroids over points in double
// precision for maxIterations Lloyd iterations, seeded by the k-means++
// initialization rule.
func kmeansPlusPlus(points [][]float64, numCentroids, maxIterations int, rng *rand.Rand) [][]float64 {
	if len(points) == 0 {
		return make([][]float64, numCentroids)
	}
	if numCentroids > len(points) {
		numCentroids = len(points)
	}
	subDim := len(points[0])
	centroids := make([][]float64, 0, numCentroids)
	centroids = append(centroids, append([]float64(nil), points[rng.Intn(len(points))]...))

	dist2 := make([]float64, len(points))
	for len(centroids) < numCentroids {
		var total float64
		for i, p := range points {
			best := math.Inf(1)
			for _, c := range centroids {
				d := sqDist(p, c)
				if d < best {
					best = d
				}
			}
			dist2[i] = best
			total += best
		}
		if total == 0 {
			centroids = append(centroids, append([]float64(nil), points[rng.Intn(len(points))]...))
			continue
		}
		target := rng.Float64() * total
		var acc float64
		chosen := len(points) - 1
		for i, d := range dist2 {
			acc += d
			if acc >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), points[chosen]...))
	}

	assign := make([]int, len(points))
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			best, bestIdx := math.Inf(1), 0
			for c, centroid := range centroids {
				d := sqDist(p, centroid)
				if d < best {
					best, bestIdx = d, c
				}
			}
			if assign[i] != bestIdx {
				changed = true
				assign[i] = bestIdx
			}
		}
		sums := make([][]float64, len(centroids))
		counts := make([]int, len(centroids))
		for c := range sums {
			sums[c] = make([]float64, subDim)
		}
		for i, p := range points {
			c := assign[i]
			counts[c]++
			for d := 0; d < subDim; d++ {
				sums[c][d] += p[d]
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < subDim; d++ {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
		if !changed {
			break
		}
	}
	return centroids
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// diagonalVariance computes each sub-dimension's variance across points
// relative to their assigned centroid, a diagonal approximation of the
// full sub-space covariance matrix used for Mahalanobis-style
// weighting during quantization. A diagonal keeps quantization free of
// any linear-algebra dependency.
func diagonalVariance(points, centroids [][]float64, subDim int) []float64 {
	variance := make([]float64, subDim)
	if len(points) == 0 {
		for d := range variance {
			variance[d] = 1
		}
		return variance
	}
	counts := make([]float64, subDim)
	for _, p := range points {
		best, bestC := math.Inf(1), centroids[0]
		for _, c := range centroids {
			d := sqDist(p, c)
			if d < best {
				best, bestC = d, c
			}
		}
		for d := 0; d < subDim; d++ {
			diff := p[d] - bestC[d]
			variance[d] += diff * diff
			counts[d]++
		}
	}
	for d := range variance {
		if counts[d] > 0 {
			variance[d] /= counts[d]
		}
		if variance[d] < 1e-9 {
			variance[d] = 1e-9
		}
	}
	return variance
}

// weightedSqDist is the Mahalanobis-style (diagonal) weighted squared
// distance used both during quantization and to populate the
// approximate-phase lookup table.
func weightedSqDist(a, b, variance []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += (d * d) / variance[i]
	}
	return sum
}

// quantize maps vec's sub-vectors to their nearest centroid, returning
// the concatenated signature.
func (ix *Index) quantize(vec []float64) []int {
	cb := ix.codebook
	sig := make([]int, cb.M)
	for m := 0; m < cb.M; m++ {
		sub := vec[m*cb.SubDim : (m+1)*cb.SubDim]
		best, bestIdx := math.Inf(1), 0
		for c, centroid := range cb.Centroids[m] {
			d := weightedSqDist(sub, centroid, cb.Covariance[m])
			if d < best {
				best, bestIdx = d, c
			}
		}
		sig[m] = bestIdx
	}
	return sig
}

// --- encoding ---

func encodeCodebook(cb *Codebook) []byte {
	buf := appendUvarint(nil, uint64(cb.Dim))
	buf = appendUvarint(buf, uint64(cb.M))
	for m := 0; m < cb.M; m++ {
		buf = appendUvarint(buf, uint64(len(cb.Centroids[m])))
		for _, centroid := range cb.Centroids[m] {
			for _, x := range centroid {
				buf = appendFloat64(buf, x)
			}
		}
		for _, v := range cb.Covariance[m] {
			buf = appendFloat64(buf, v)
		}
	}
	return buf
}

func decodeCodebook(b []byte, dim int) *Codebook {
	pos := 0
	d, n := binary.Uvarint(b[pos:])
	pos += n
	m, n := binary.Uvarint(b[pos:])
	pos += n
	subDim := int(d) / int(m)
	cb := &Codebook{Dim: int(d), M: int(m), SubDim: subDim, Centroids: make([][][]float64, m), Covariance: make([][]float64, m)}
	for sub := 0; sub < int(m); sub++ {
		numCentroids, n := binary.Uvarint(b[pos:])
		pos += n
		centroids := make([][]float64, numCentroids)
		for c := range centroids {
			row := make([]float64, subDim)
			for d := 0; d < subDim; d++ {
				row[d] = math.Float64frombits(binary.BigEndian.Uint64(b[pos:]))
				pos += 8
			}
			centroids[c] = row
		}
		cb.Centroids[sub] = centroids
		variance := make([]float64, subDim)
		for d := 0; d < subDim; d++ {
			variance[d] = math.Float64frombits(binary.BigEndian.Uint64(b[pos:]))
			pos += 8
		}
		cb.Covariance[sub] = variance
	}
	return cb
}

func appendFloat64(buf []byte, v float64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	return append(buf, b[:]...)
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func encodeSignature(sig []int) []byte {
	buf := appendUvarint(nil, uint64(len(sig)))
	for _, s := range sig {
		buf = appendUvarint(buf, uint64(s))
	}
	return buf
}

func encodeTupleList(ids []int64) []byte {
	buf := appendUvarint(nil, uint64(len(ids)))
	for _, id := range ids {
		buf = appendUvarint(buf, uint64(id))
	}
	return buf
}

func decodeTupleList(b []byte) []int64 {
	pos := 0
	n, sz := binary.Uvarint(b[pos:])
	pos += sz
	ids := make([]int64, n)
	for i := range ids {
		v, sz := binary.Uvarint(b[pos:])
		pos += sz
		ids[i] = int64(v)
	}
	return ids
}

func (ix *Index) loadCodebook() {
	raw, err := ix.codebookStore.Get([]byte(codebookKey))
	if err != nil || raw == nil {
		ix.codebook = nil
		return
	}
	ix.codebook = decodeCodebook(raw, ix.column.Typ().LogicalSize())
}

// --- query ---

// bucketCandidate is one signature bucket surviving phase 1.
type bucketCandidate struct {
	Key      string
	Distance float64
}

type bucketHeap []bucketCandidate

func (h bucketHeap) Len() int            { return len(h) }
func (h bucketHeap) Less(i, j int) bool   { return h[i].Distance > h[j].Distance } // max-heap
func (h bucketHeap) Swap(i, j int)        { h[i], h[j] = h[j], h[i] }
func (h *bucketHeap) Push(x interface{})  { *h = append(*h, x.(bucketCandidate)) }
func (h *bucketHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Filter runs the two-phase PQ query over the full signature range.
func (ix *Index) Filter(pred index.Predicate) (index.Cursor, error) {
	return ix.FilterPartition(pred, 0, 1)
}

// FilterPartition restricts phase 1 to signature buckets whose FNV hash
// falls in this partition, since PQ buckets have no natural ordering by
// TupleId.
func (ix *Index) FilterPartition(pred index.Predicate, partitionIndex, partitions int) (index.Cursor, error) {
	pp, ok := index.AsProximity(pred)
	if !ok || !ix.CanProcess(pred) {
		return nil, dberr.New(dberr.KindUnsupportedPredicate, ix.meta.Name().String(), "pq index cannot process predicate")
	}
	if ix.codebook == nil {
		return nil, dberr.New(dberr.KindIndexNotSupported, ix.meta.Name().String(), "pq index has not been trained")
	}
	query := pp.Query.AsFloat64Slice()
	cb := ix.codebook

	tables := make([][]float64, cb.M)
	for m := 0; m < cb.M; m++ {
		sub := query[m*cb.SubDim : (m+1)*cb.SubDim]
		table := make([]float64, len(cb.Centroids[m]))
		for c, centroid := range cb.Centroids[m] {
			table[c] = weightedSqDist(sub, centroid, cb.Covariance[m])
		}
		tables[m] = table
	}

	capacity := int(math.Ceil(ix.cfg.InflationFactor * float64(pp.K)))
	if capacity < pp.K {
		capacity = pp.K
	}
	bh := &bucketHeap{}
	heap.Init(bh)

	cur := ix.sigStore.Cursor()
	defer cur.Close()
	for {
		k, _, ok := cur.Next()
		if !ok {
			break
		}
		if partitions > 1 && partitionOf(k, partitions) != partitionIndex {
			continue
		}
		sig := decodeSignature(k)
		var approx float64
		for m, c := range sig {
			approx += tables[m][c]
		}
		if bh.Len() < capacity {
			heap.Push(bh, bucketCandidate{Key: string(k), Distance: approx})
		} else if approx < (*bh)[0].Distance {
			(*bh)[0] = bucketCandidate{Key: string(k), Distance: approx}
			heap.Fix(bh, 0)
		}
	}

	scalarFn := distance.Scalar(pp.Distance)
	col, err := txn.OpenColumn(ix.catTx, ix.entity, ix.column)
	if err != nil {
		return nil, err
	}
	topk := index.NewTopKHeap(pp.K)
	for _, bc := range *bh {
		raw, err := ix.sigStore.Get([]byte(bc.Key))
		if err != nil {
			return nil, err
		}
		for _, tid := range decodeTupleList(raw) {
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

func partitionOf(key []byte, partitions int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(partitions))
}

func decodeSignature(b []byte) []int {
	pos := 0
	n, sz := binary.Uvarint(b[pos:])
	pos += sz
	sig := make([]int, n)
	for i := range sig {
		v, sz := binary.Uvarint(b[pos:])
		pos += sz
		sig[i] = int(v)
	}
	return sig
}

// Update marks the index DIRTY: PQ codebooks are trained on a static
// sample and do not support incremental maintenance.
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

// Clear removes every persisted signature bucket (the codebook itself
// is left in place; Rebuild retrains and overwrites it unconditionally).
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

// Codebook exposes the trained codebook, for tests checking recall.
func (ix *Index) Codebook() *Codebook { return ix.codebook }
