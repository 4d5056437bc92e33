package dictionary

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type document struct {
	RunID         string           `yaml:"run_id"`
	CreatedAt     time.Time        `yaml:"created_at"`
	Dimension     int              `yaml:"dimension"`
	State         string           `yaml:"state"`
	Iterations    int              `yaml:"iterations"`
	LogLikelihood float64          `yaml:"log_likelihood"`
	Words         []string         `yaml:"words"`
	Clusters      []recordDocument `yaml:"clusters"`
}

type recordDocument struct {
	ID            int       `yaml:"id"`
	PrimaryWord   string    `yaml:"primary_word"`
	Concentration float64   `yaml:"concentration"`
	Weight        float64   `yaml:"weight"`
	Size          int       `yaml:"size"`
	Members       string    `yaml:"members"`
	Centroid      []float32 `yaml:"centroid,flow"`
}

// Encode writes d as YAML. Member sets are stored as base64 roaring
// bitmaps over word indices.
func (d *Dictionary) Encode(w io.Writer) error {
	doc := document{
		RunID:         d.RunID.String(),
		CreatedAt:     d.CreatedAt,
		Dimension:     d.Dimension,
		State:         d.State,
		Iterations:    d.Iterations,
		LogLikelihood: d.LogLikelihood,
		Words:         d.Words,
		Clusters:      make([]recordDocument, len(d.Records)),
	}
	for j, rec := range d.Records {
		rec.Members.RunOptimize()
		buf, err := rec.Members.ToBytes()
		if err != nil {
			return fmt.Errorf("encode members of cluster %d: %w", rec.ID, err)
		}
		doc.Clusters[j] = recordDocument{
			ID:            rec.ID,
			PrimaryWord:   rec.PrimaryWord,
			Concentration: rec.Concentration,
			Weight:        rec.Weight,
			Size:          rec.Size(),
			Members:       base64.StdEncoding.EncodeToString(buf),
			Centroid:      rec.Centroid,
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode dictionary: %w", err)
	}
	return enc.Close()
}

// Decode reads a dictionary written by Encode.
func Decode(r io.Reader) (*Dictionary, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode dictionary: %w", err)
	}

	runID, err := uuid.Parse(doc.RunID)
	if err != nil {
		return nil, fmt.Errorf("decode dictionary: run id: %w", err)
	}

	d := &Dictionary{
		RunID:         runID,
		CreatedAt:     doc.CreatedAt,
		Dimension:     doc.Dimension,
		State:         doc.State,
		Iterations:    doc.Iterations,
		LogLikelihood: doc.LogLikelihood,
		Words:         doc.Words,
		Records:       make([]*Record, len(doc.Clusters)),
	}
	claimed := roaring.New()
	for j, rd := range doc.Clusters {
		if rd.ID != j {
			return nil, fmt.Errorf("%w: cluster %d stored at position %d", ErrCorrupt, rd.ID, j)
		}
		if len(rd.Centroid) != d.Dimension {
			return nil, fmt.Errorf("%w: cluster %d centroid has %d values, expected %d",
				ErrCorrupt, rd.ID, len(rd.Centroid), d.Dimension)
		}
		if !finite(rd.Centroid) {
			return nil, fmt.Errorf("%w: cluster %d centroid is not finite", ErrCorrupt, rd.ID)
		}
		raw, err := base64.StdEncoding.DecodeString(rd.Members)
		if err != nil {
			return nil, fmt.Errorf("decode members of cluster %d: %w", rd.ID, err)
		}
		members := roaring.New()
		if err := members.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("decode members of cluster %d: %w", rd.ID, err)
		}
		if members.GetCardinality() != uint64(rd.Size) {
			return nil, fmt.Errorf("%w: cluster %d has %d members, header says %d",
				ErrCorrupt, rd.ID, members.GetCardinality(), rd.Size)
		}
		if !members.IsEmpty() && members.Maximum() >= uint32(len(doc.Words)) {
			return nil, fmt.Errorf("%w: cluster %d references word %d of %d",
				ErrCorrupt, rd.ID, members.Maximum(), len(doc.Words))
		}
		if claimed.Intersects(members) {
			shared := roaring.And(claimed, members)
			return nil, fmt.Errorf("%w: word %q belongs to more than one cluster",
				ErrCorrupt, doc.Words[shared.Minimum()])
		}
		claimed.Or(members)
		d.Records[j] = &Record{
			ID:            rd.ID,
			Centroid:      rd.Centroid,
			PrimaryWord:   rd.PrimaryWord,
			Concentration: rd.Concentration,
			Weight:        rd.Weight,
			Members:       members,
		}
	}
	d.reindex()
	return d, nil
}

// Save writes d to path, replacing any existing file once the write has
// completed.
func (d *Dictionary) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".dictionary-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := d.Encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename dictionary: %w", err)
	}
	return nil
}

// Load reads a dictionary from path.
func Load(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
