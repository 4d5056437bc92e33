// Package embedding loads word vectors in the plain-text word2vec/fastText
// format:
//
//	[count dimension]
//	word v1 v2 ... vD
//
// The optional first line is a header. Files ending in .gz or .zst are
// decompressed transparently.
package embedding

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adalundhe/vmfcluster/core/vectormath"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrMalformedLine is returned for a line whose value count or values
	// cannot be parsed.
	ErrMalformedLine = errors.New("malformed word vector line")
	// ErrNoVectors is returned when a source yields no usable vectors.
	ErrNoVectors = errors.New("no word vectors")
)

// maxLineBytes bounds one line; 1 MiB holds several thousand dimensions.
const maxLineBytes = 1 << 20

// Options controls how vectors are read.
type Options struct {
	// MaxWords stops reading after this many words are kept. 0 = no limit.
	MaxWords int
	// Normalize scales every vector to unit length. Zero vectors are
	// skipped when set.
	Normalize bool
	// Logger receives skip notices. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultOptions reads every word and normalizes it.
func DefaultOptions() Options {
	return Options{Normalize: true}
}

// Vocabulary is a set of words and their vectors, row i of Vectors
// belonging to Words[i].
type Vocabulary struct {
	Words   []string
	Vectors *vectormath.Matrix
	index   map[string]int
}

// NewVocabulary pairs words with the rows of vectors.
func NewVocabulary(words []string, vectors *vectormath.Matrix) (*Vocabulary, error) {
	if vectors == nil || len(words) != vectors.Rows() {
		return nil, fmt.Errorf("vocabulary: %d words for %d vectors", len(words), rowsOf(vectors))
	}
	index := make(map[string]int, len(words))
	for i, w := range words {
		if _, dup := index[w]; dup {
			return nil, fmt.Errorf("vocabulary: duplicate word %q", w)
		}
		index[w] = i
	}
	return &Vocabulary{Words: words, Vectors: vectors, index: index}, nil
}

func rowsOf(m *vectormath.Matrix) int {
	if m == nil {
		return 0
	}
	return m.Rows()
}

// Len returns the number of words.
func (v *Vocabulary) Len() int { return len(v.Words) }

// Dimension returns the vector dimension.
func (v *Vocabulary) Dimension() int { return v.Vectors.Cols() }

// Index returns the row of word.
func (v *Vocabulary) Index(word string) (int, bool) {
	i, ok := v.index[word]
	return i, ok
}

// Vector returns the vector of word. The slice aliases the vocabulary.
func (v *Vocabulary) Vector(word string) ([]float32, bool) {
	i, ok := v.index[word]
	if !ok {
		return nil, false
	}
	return v.Vectors.Row(i), true
}

// Load reads a vector file from disk.
func Load(path string, opts Options) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word vectors: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	case ".zst":
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open zstd stream %s: %w", path, err)
		}
		defer dec.Close()
		r = dec
	}

	vocab, err := Read(r, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vocab, nil
}

// Read parses vectors from r.
func Read(r io.Reader, opts Options) (*Vocabulary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		words   []string
		data    []float32
		seen    = make(map[string]struct{})
		dim     = -1
		lineNo  int
		skipped int
	)

	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}

		if lineNo == 1 {
			if d, ok := parseHeader(fields); ok {
				dim = d
				continue
			}
		}

		if dim < 0 {
			dim = len(fields) - 1
			if dim < 1 {
				return nil, fmt.Errorf("line %d: %w: no values", lineNo, ErrMalformedLine)
			}
		}
		if len(fields)-1 != dim {
			return nil, fmt.Errorf("line %d: %w: expected %d values, got %d",
				lineNo, ErrMalformedLine, dim, len(fields)-1)
		}

		word := fields[0]
		if _, dup := seen[word]; dup {
			skipped++
			continue
		}

		vec := make([]float32, dim)
		for i, f := range fields[1:] {
			x, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w: %v", lineNo, ErrMalformedLine, err)
			}
			vec[i] = float32(x)
		}
		if opts.Normalize && !vectormath.Normalize(vec) {
			logger.Debug("skipping zero word vector", "word", word, "line", lineNo)
			skipped++
			continue
		}

		seen[word] = struct{}{}
		words = append(words, word)
		data = append(data, vec...)
		if opts.MaxWords > 0 && len(words) >= opts.MaxWords {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read word vectors: %w", err)
	}
	if len(words) == 0 {
		return nil, ErrNoVectors
	}

	vectors, err := vectormath.MatrixFromData(len(words), dim, data)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		logger.Info("word vectors skipped", "skipped", skipped, "kept", len(words))
	}
	return NewVocabulary(words, vectors)
}

// parseHeader recognizes a "count dimension" first line.
func parseHeader(fields []string) (int, bool) {
	if len(fields) != 2 {
		return 0, false
	}
	if _, err := strconv.Atoi(fields[0]); err != nil {
		return 0, false
	}
	d, err := strconv.Atoi(fields[1])
	if err != nil || d < 1 {
		return 0, false
	}
	return d, true
}
