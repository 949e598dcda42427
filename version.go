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

// VersionedValue is one entry in a key's history: the commit timestamp
// it was installed at, the resulting value, and which kind of
// operation produced it. Versions are immutable once inserted.
type VersionedValue struct {
	Timestamp Timestamp
	Value     []byte
	Op        OpKind
}
