package store

import (
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"
)

// MinHash LSH candidate generation, per spec.md §4.2: 3-gram shingles,
// n_perm=200 permutations banded into groups so same-bucket membership
// approximates Jaccard >= lshThreshold. This index only narrows a
// candidate set; it never reports a distance, matching the spec's
// "candidates-only" contract.
const (
	lshShingleSize = 3
	lshNumPerm     = 200
	lshBands       = 40
	lshRows        = lshNumPerm / lshBands // 5
	lshThreshold   = 0.5
)

// shingles splits text into lowercase 3-character shingles.
func shingles(text string) map[string]struct{} {
	s := strings.ToLower(text)
	set := make(map[string]struct{})
	runes := []rune(s)
	if len(runes) < lshShingleSize {
		if len(runes) > 0 {
			set[s] = struct{}{}
		}
		return set
	}
	for i := 0; i+lshShingleSize <= len(runes); i++ {
		set[string(runes[i:i+lshShingleSize])] = struct{}{}
	}
	return set
}

// minhashSignature computes lshNumPerm minimum hash values over a shingle
// set, one per permutation, each permutation simulated by salting xxhash
// with the permutation index.
func minhashSignature(shingleSet map[string]struct{}) [lshNumPerm]uint64 {
	var sig [lshNumPerm]uint64
	for i := range sig {
		sig[i] = ^uint64(0)
	}
	for shingle := range shingleSet {
		for perm := 0; perm < lshNumPerm; perm++ {
			h := hashWithSalt(shingle, uint64(perm))
			if h < sig[perm] {
				sig[perm] = h
			}
		}
	}
	return sig
}

func hashWithSalt(s string, salt uint64) uint64 {
	d := xxhash.New()
	var saltBuf [8]byte
	for i := 0; i < 8; i++ {
		saltBuf[i] = byte(salt >> (8 * i))
	}
	d.Write(saltBuf[:])
	d.Write([]byte(s))
	return d.Sum64()
}

// bandHash collapses one band's rows of a signature into a single bucket
// key, so two signatures sharing a band land in the same posting list.
func bandHash(sig [lshNumPerm]uint64, band int) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for r := 0; r < lshRows; r++ {
		v := sig[band*lshRows+r]
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	return h.Sum64()
}

// LSHIndex maps items (observations or entity content) to MinHash
// signatures and banded posting lists for O(bands) candidate lookup instead
// of an O(n) full scan.
type LSHIndex struct {
	mu        sync.RWMutex
	signature map[string][lshNumPerm]uint64
	// postings[band][bucket] -> ids whose band-th band hashes to bucket.
	postings []map[uint64]*roaring.Bitmap
	ids      []string // dense id table so roaring bitmaps can store ints
	idIndex  map[string]uint32
}

// NewLSHIndex builds an empty index.
func NewLSHIndex() *LSHIndex {
	postings := make([]map[uint64]*roaring.Bitmap, lshBands)
	for i := range postings {
		postings[i] = make(map[uint64]*roaring.Bitmap)
	}
	return &LSHIndex{
		signature: make(map[string][lshNumPerm]uint64),
		postings:  postings,
		idIndex:   make(map[string]uint32),
	}
}

func (l *LSHIndex) internID(id string) uint32 {
	if idx, ok := l.idIndex[id]; ok {
		return idx
	}
	idx := uint32(len(l.ids))
	l.ids = append(l.ids, id)
	l.idIndex[id] = idx
	return idx
}

// Add indexes text under id, replacing any prior signature for id.
func (l *LSHIndex) Add(id, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sig := minhashSignature(shingles(text))
	l.signature[id] = sig
	dense := l.internID(id)
	for band := 0; band < lshBands; band++ {
		key := bandHash(sig, band)
		bm, ok := l.postings[band][key]
		if !ok {
			bm = roaring.New()
			l.postings[band][key] = bm
		}
		bm.Add(dense)
	}
}

// Remove drops id from every band's postings. The signature map entry is
// cleared but the dense id slot is left allocated, matching roaring's
// append-only bitmap growth model.
func (l *LSHIndex) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sig, ok := l.signature[id]
	if !ok {
		return
	}
	dense, ok := l.idIndex[id]
	if !ok {
		return
	}
	for band := 0; band < lshBands; band++ {
		key := bandHash(sig, band)
		if bm, ok := l.postings[band][key]; ok {
			bm.Remove(dense)
		}
	}
	delete(l.signature, id)
}

// Candidates returns every id sharing at least one band-bucket with text,
// the LSH-approximated set of items with Jaccard similarity roughly
// >= lshThreshold. Callers needing an exact similarity must compute Jaccard
// themselves from the original shingle sets.
func (l *LSHIndex) Candidates(text string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sig := minhashSignature(shingles(text))
	union := roaring.New()
	for band := 0; band < lshBands; band++ {
		key := bandHash(sig, band)
		if bm, ok := l.postings[band][key]; ok {
			union.Or(bm)
		}
	}

	out := make([]string, 0, union.GetCardinality())
	it := union.Iterator()
	for it.HasNext() {
		dense := it.Next()
		if int(dense) < len(l.ids) {
			out = append(out, l.ids[dense])
		}
	}
	return out
}

// EstimateJaccard returns the fraction of the lshNumPerm minhash slots that
// agree between two already-indexed ids, an unbiased estimator of their
// shingle-set Jaccard similarity.
func (l *LSHIndex) EstimateJaccard(idA, idB string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sigA, ok := l.signature[idA]
	if !ok {
		return 0
	}
	sigB, ok := l.signature[idB]
	if !ok {
		return 0
	}
	agree := 0
	for i := range sigA {
		if sigA[i] == sigB[i] {
			agree++
		}
	}
	return float64(agree) / float64(lshNumPerm)
}
