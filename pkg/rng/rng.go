// Package rng hands out the per-run pseudo-random generator.
//
// A run is reproducible only if every random draw comes from one generator
// whose seed is recorded. When no seed is supplied one is drawn from
// crypto/rand and reported back so the run can be replayed later.
package rng

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"
)

// Source is a seeded generator plus the seed actually used.
// It is not safe for concurrent use; each run owns its own Source.
type Source struct {
	*rand.Rand
	seed int64
}

// New returns a generator seeded with *seed, or with a fresh random seed when
// seed is nil.
func New(seed *int64) *Source {
	s := freshSeed()
	if seed != nil {
		s = *seed
	}
	return &Source{
		Rand: rand.New(rand.NewSource(s)),
		seed: s,
	}
}

// Seed returns the seed the generator was built from.
func (s *Source) Seed() int64 { return s.seed }

func freshSeed() int64 {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return seed
}
