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

package occstore

// Config tunes the Coordinator and the per-key history it drives.
type Config struct {
	// Linearizable selects strict-serializable validation (true) or
	// the looser timestamp-based mode (false). See the Prepare
	// decision matrix for how this changes conflict checks.
	Linearizable bool

	// History skip-list shape, forwarded to pkg/history.New for every
	// key's version history.
	HistoryMaxLevel int
	HistoryP        float64

	// FingerprintFalsePositiveRate is the target false-positive rate
	// of the prepared-registry pre-filter (pkg/fingerprint). Lower
	// values cost more memory per Prepare call and catch more
	// non-conflicts before the exact scan.
	FingerprintFalsePositiveRate float64
}

var DefaultConfig = Config{
	Linearizable:                 true,
	HistoryMaxLevel:              9,
	HistoryP:                     0.5,
	FingerprintFalsePositiveRate: 0.01,
}

// validate fills in zero-valued fields with DefaultConfig's rather than
// failing construction outright.
func (c *Config) validate() {
	if c.HistoryMaxLevel <= 0 {
		c.HistoryMaxLevel = DefaultConfig.HistoryMaxLevel
	}
	if c.HistoryP <= 0 {
		c.HistoryP = DefaultConfig.HistoryP
	}
	if c.FingerprintFalsePositiveRate <= 0 {
		c.FingerprintFalsePositiveRate = DefaultConfig.FingerprintFalsePositiveRate
	}
}
