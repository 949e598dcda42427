// Copyright 2025 BINARY Members
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fingerprint implements a small Bloom filter used to
// pre-filter the transaction coordinator's prepared-registry scan: a
// filter never has false negatives, so a "definitely not present"
// answer can short-circuit a scan without changing any externally
// observable decision; a "maybe present" answer just falls back to the
// exact scan.
package fingerprint

import (
	"hash"
	"math"

	"github.com/spaolacci/murmur3"
)

const (
	_defaultP  = 0.01
	_minBucket = 8
)

// Filter is a fixed Bloom filter over string keys, rebuilt from
// scratch whenever its source set changes (the prepared registry is
// small and churns constantly, so incremental removal support buys
// nothing here).
type Filter struct {
	bitset  []bool
	hashFns []hash.Hash32
	m       int
}

// New creates a Filter sized for n expected elements at false-positive
// rate p. n == 0 still yields a usable (always-empty) filter.
func New(n int, p float64) *Filter {
	if n < 1 {
		n = 1
	}
	// size of bitset: m = -(n * ln(p)) / (ln(2)^2)
	m := int(math.Ceil(-float64(n) * math.Log(p) / math.Pow(math.Log(2), 2)))
	if m < _minBucket {
		m = _minBucket
	}
	// number of hash functions: k = (m/n) * ln(2)
	k := int(math.Round((float64(m) / float64(n)) * math.Log(2)))
	if k < 1 {
		k = 1
	}

	hashFns := make([]hash.Hash32, k)
	for i := range k {
		hashFns[i] = murmur3.New32WithSeed(uint32(i))
	}

	return &Filter{
		bitset:  make([]bool, m),
		hashFns: hashFns,
		m:       m,
	}
}

// Build constructs a Filter already populated with keys.
func Build(keys []string) *Filter {
	f := New(len(keys), _defaultP)
	for _, k := range keys {
		f.Add(k)
	}
	return f
}

// Add adds a key to the filter.
func (f *Filter) Add(key string) {
	for _, fn := range f.hashFns {
		_, _ = fn.Write([]byte(key))
		index := int(fn.Sum32()) % f.m
		f.bitset[index] = true
		fn.Reset()
	}
}

// MaybeContains reports whether key might have been added. False means
// definitely not added; true means maybe (false positives are
// possible, false negatives are not).
func (f *Filter) MaybeContains(key string) bool {
	for _, fn := range f.hashFns {
		_, _ = fn.Write([]byte(key))
		index := int(fn.Sum32()) % f.m
		fn.Reset()
		if !f.bitset[index] {
			return false
		}
	}
	return true
}
