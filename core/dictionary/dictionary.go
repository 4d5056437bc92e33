// Package dictionary turns a fitted clustering of word vectors into a
// lookup table: one record per cluster with its centroid, concentration,
// weight, member set and representative word.
package dictionary

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/adalundhe/vmfcluster/core/cluster"
	"github.com/adalundhe/vmfcluster/core/embedding"
	"github.com/adalundhe/vmfcluster/core/vectormath"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrUnknownWord    = errors.New("word not in dictionary")
	ErrUnknownCluster = errors.New("cluster not in dictionary")
	ErrCorrupt        = errors.New("corrupt dictionary")
)

// Record describes one cluster.
type Record struct {
	ID            int
	Centroid      []float32
	PrimaryWord   string
	Concentration float64
	Weight        float64
	Members       *roaring.Bitmap

	lookups atomic.Uint64
}

// Size returns the number of member words.
func (r *Record) Size() int {
	return int(r.Members.GetCardinality())
}

// Lookups returns how many queries resolved to this record.
func (r *Record) Lookups() uint64 {
	return r.lookups.Load()
}

// Dictionary maps words to clusters. Lookups are safe for concurrent use.
type Dictionary struct {
	RunID         uuid.UUID
	CreatedAt     time.Time
	Dimension     int
	State         string
	Iterations    int
	LogLikelihood float64
	Words         []string
	Records       []*Record

	labels []int
	index  map[string]int
}

// Build creates a dictionary from a fit over vocab's vectors.
func Build(res *cluster.Result, vocab *embedding.Vocabulary) (*Dictionary, error) {
	if res == nil || vocab == nil {
		return nil, errors.New("dictionary: nil result or vocabulary")
	}
	if !res.State.Terminal() {
		return nil, fmt.Errorf("dictionary: fit is %s, not finished", res.State)
	}
	if len(res.Labels) != vocab.Len() {
		return nil, fmt.Errorf("dictionary: %d labels for %d words", len(res.Labels), vocab.Len())
	}

	means := res.Means()
	records := make([]*Record, len(res.Components))
	for j, c := range res.Components {
		records[j] = &Record{
			ID:            j,
			Centroid:      means.Row(j),
			Concentration: c.Concentration,
			Weight:        c.Weight,
			Members:       roaring.New(),
		}
	}

	best := make([]float32, len(records))
	for i := range best {
		best[i] = float32(math.Inf(-1))
	}
	for i, l := range res.Labels {
		if l < 0 || l >= len(records) {
			return nil, fmt.Errorf("dictionary: word %d has label %d outside [0, %d)", i, l, len(records))
		}
		rec := records[l]
		rec.Members.Add(uint32(i))
		if s := vectormath.Similarity(vocab.Vectors.Row(i), rec.Centroid); s > best[l] {
			best[l] = s
			rec.PrimaryWord = vocab.Words[i]
		}
	}

	d := &Dictionary{
		RunID:         uuid.New(),
		CreatedAt:     time.Now().UTC(),
		Dimension:     vocab.Dimension(),
		State:         res.State.String(),
		Iterations:    res.Iterations,
		LogLikelihood: res.LogLikelihood(),
		Words:         append([]string(nil), vocab.Words...),
		Records:       records,
	}
	d.reindex()
	return d, nil
}

// reindex rebuilds the word index and per-word labels from the member sets.
func (d *Dictionary) reindex() {
	d.index = make(map[string]int, len(d.Words))
	for i, w := range d.Words {
		d.index[w] = i
	}
	d.labels = make([]int, len(d.Words))
	for i := range d.labels {
		d.labels[i] = -1
	}
	for _, rec := range d.Records {
		it := rec.Members.Iterator()
		for it.HasNext() {
			if i := int(it.Next()); i < len(d.labels) {
				d.labels[i] = rec.ID
			}
		}
	}
}

// ClusterOf returns the record holding word.
func (d *Dictionary) ClusterOf(word string) (*Record, error) {
	i, ok := d.index[word]
	if !ok || d.labels[i] < 0 {
		return nil, fmt.Errorf("%q: %w", word, ErrUnknownWord)
	}
	rec := d.Records[d.labels[i]]
	rec.lookups.Add(1)
	return rec, nil
}

// Nearest returns the record whose centroid is most similar to vec, and
// that similarity. vec need not be normalized.
func (d *Dictionary) Nearest(vec []float32) (*Record, float32) {
	if len(d.Records) == 0 || len(vec) != d.Dimension {
		return nil, 0
	}
	q := append([]float32(nil), vec...)
	if !finite(q) || !vectormath.Normalize(q) {
		return nil, 0
	}

	var best *Record
	bestSim := float32(math.Inf(-1))
	for _, rec := range d.Records {
		if s := vectormath.Similarity(q, rec.Centroid); s > bestSim {
			best, bestSim = rec, s
		}
	}
	if best == nil {
		return nil, 0
	}
	best.lookups.Add(1)
	return best, bestSim
}

func finite(v []float32) bool {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}

// Record returns the record with the given id.
func (d *Dictionary) Record(id int) (*Record, error) {
	if id < 0 || id >= len(d.Records) {
		return nil, fmt.Errorf("cluster %d: %w", id, ErrUnknownCluster)
	}
	return d.Records[id], nil
}

// MembersOf returns up to limit member words of cluster id in vocabulary
// order. limit <= 0 returns all.
func (d *Dictionary) MembersOf(id, limit int) ([]string, error) {
	rec, err := d.Record(id)
	if err != nil {
		return nil, err
	}
	n := rec.Size()
	if limit > 0 && limit < n {
		n = limit
	}
	words := make([]string, 0, n)
	it := rec.Members.Iterator()
	for it.HasNext() && len(words) < n {
		words = append(words, d.Words[it.Next()])
	}
	return words, nil
}

// Summary holds aggregate statistics over all records.
type Summary struct {
	Clusters          int     `json:"clusters" yaml:"clusters"`
	Words             int     `json:"words" yaml:"words"`
	MinSize           int     `json:"min_size" yaml:"min_size"`
	MaxSize           int     `json:"max_size" yaml:"max_size"`
	MeanConcentration float64 `json:"mean_concentration" yaml:"mean_concentration"`
	StdConcentration  float64 `json:"std_concentration" yaml:"std_concentration"`
	MaxConcentration  float64 `json:"max_concentration" yaml:"max_concentration"`
	WeightSum         float64 `json:"weight_sum" yaml:"weight_sum"`
}

// Summary computes aggregate statistics.
func (d *Dictionary) Summary() Summary {
	s := Summary{Clusters: len(d.Records), Words: len(d.Words)}
	if len(d.Records) == 0 {
		return s
	}

	kappas := make([]float64, len(d.Records))
	weights := make([]float64, len(d.Records))
	s.MinSize = math.MaxInt
	for j, rec := range d.Records {
		kappas[j] = rec.Concentration
		weights[j] = rec.Weight
		size := rec.Size()
		s.MinSize = min(s.MinSize, size)
		s.MaxSize = max(s.MaxSize, size)
	}

	if len(kappas) > 1 {
		s.MeanConcentration, s.StdConcentration = stat.MeanStdDev(kappas, nil)
	} else {
		s.MeanConcentration = kappas[0]
	}
	s.MaxConcentration = floats.Max(kappas)
	s.WeightSum = floats.Sum(weights)
	return s
}
