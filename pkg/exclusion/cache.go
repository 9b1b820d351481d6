package exclusion

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
)

// Cache keeps recently built matrices so repeated searches over identical
// inputs reuse them. Inputs are identified by content: a matrix built for
// one set of candidate ions and background peptides serves any equal set,
// and is rebuilt whenever an ion, a background peptide or a setting differs.
type Cache struct {
	entries *lru.Cache[string, *Matrix]
}

// NewCache creates a cache holding at most size matrices.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[string, *Matrix](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create matrix cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Matrix returns the cached matrix for the inputs, building it on a miss.
// The boolean reports a cache hit. A hit may return a matrix built from
// different but equal ion and peptide values.
func (c *Cache) Matrix(ctx context.Context, candidates []*core.ProductIon, background []*core.Peptide, s Settings) (*Matrix, bool, error) {
	key := CacheKey(candidates, background, s)
	if m, ok := c.entries.Get(key); ok {
		return m, true, nil
	}
	m, err := Build(ctx, candidates, background, s)
	if err != nil {
		return nil, false, err
	}
	c.entries.Add(key, m)
	return m, false, nil
}

// Len returns the number of cached matrices.
func (c *Cache) Len() int { return c.entries.Len() }

// CacheKey fingerprints matrix inputs by content: each candidate's type,
// position and mass, each background peptide's key, precursor mass and
// product ions of the background types, and the settings.
func CacheKey(candidates []*core.ProductIon, background []*core.Peptide, s Settings) string {
	h := sha256.New()
	for _, ion := range candidates {
		writeIon(h, 'i', ion)
	}
	for _, p := range background {
		fmt.Fprintf(h, "p%s;", p.Key())
		writeFloat(h, p.PrecursorIon().Mass())
		for _, ion := range p.PrecursorIon().ProductIonsOf(s.BackgroundTypes) {
			writeIon(h, 'b', ion)
		}
	}
	fmt.Fprint(h, s.Fingerprint())
	return hex.EncodeToString(h.Sum(nil))
}

func writeIon(h hash.Hash, tag byte, ion *core.ProductIon) {
	fmt.Fprintf(h, "%c%s%d;", tag, ion.Type(), ion.Position())
	writeFloat(h, ion.Mass())
}

func writeFloat(h hash.Hash, f float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
	h.Write(b[:])
}
