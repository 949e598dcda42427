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

import "strconv"

// Increment describes how to mutate a prior value at commit time:
// Op ADD treats both the prior value and Value as decimal text and
// stores their sum as decimal text; Op APPEND concatenates Value onto
// the prior value.
type Increment struct {
	Value []byte
	Op    OpKind
}

// NewIncrement builds an Increment; op must be ADD or APPEND.
func NewIncrement(value []byte, op OpKind) Increment {
	return Increment{Value: value, Op: op}
}

// apply computes the new value produced by applying inc on top of
// prior. Non-numeric text under ADD parses as 0, matching atoi
// semantics. NewIncrement does not check op, so an unrecognized op
// kind (including WRITE) is only caught here, as a fatal programming
// error.
func (inc Increment) apply(prior []byte) []byte {
	switch inc.Op {
	case INCREMENT: // ADD
		total := atoi(prior) + atoi(inc.Value)
		return []byte(strconv.Itoa(total))
	case APPEND:
		out := make([]byte, 0, len(prior)+len(inc.Value))
		out = append(out, prior...)
		out = append(out, inc.Value...)
		return out
	default:
		assertf(false, "occstore: attempted to apply unknown increment op kind %v", inc.Op)
		return nil
	}
}

// atoi mirrors atoi's "parse as much as you can, 0 on failure" leniency:
// a non-numeric prior value (e.g. the empty string on a fresh key)
// contributes 0 to an ADD, rather than failing the transaction.
func atoi(b []byte) int {
	i := 0
	for i < len(b) && (b[i] == ' ' || (b[i] >= '\t' && b[i] <= '\r')) {
		i++
	}
	start := i
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		i++
	}
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	n, err := strconv.Atoi(string(b[start:i]))
	if err != nil {
		return 0
	}
	return n
}
