// Copyright © 2021 Rak Laptudirm <raklaptudirm@gmail.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bencode implements a byte-exact decoder and encoder for the
// BitTorrent metainfo serialization format. Decoded values are an explicit
// tagged union rather than a reflected Go struct, so callers destructure by
// Kind instead of relying on struct tags.
package bencode

import "fmt"

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindInteger Kind = iota
	KindString
	KindList
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a decoded bencode value: an integer, a raw byte string, a list of
// Values, or an ordered mapping from byte-string keys to Values. Exactly one
// of the fields below is meaningful, selected by Kind.
type Value struct {
	Kind Kind

	Int  int64
	Str  []byte
	List []Value

	// Dict holds entries in encounter order as decoded; Encode always
	// re-sorts keys into ascending byte order regardless of this order, so
	// callers may append to Dict without worrying about ordering.
	Dict []DictEntry
}

// DictEntry is a single key/value pair of a dict Value.
type DictEntry struct {
	Key   []byte
	Value Value
}

// Int64 constructs an integer Value.
func Int64(v int64) Value { return Value{Kind: KindInteger, Int: v} }

// String constructs a byte-string Value from a Go string.
func String(v string) Value { return Value{Kind: KindString, Str: []byte(v)} }

// Bytes constructs a byte-string Value from a byte slice. The slice is used
// directly, not copied.
func Bytes(v []byte) Value { return Value{Kind: KindString, Str: v} }

// List constructs a list Value.
func List(items ...Value) Value { return Value{Kind: KindList, List: items} }

// Dict constructs a dict Value from the given entries. Entries need not be
// pre-sorted; Encode sorts them.
func Dict(entries ...DictEntry) Value { return Value{Kind: KindDict, Dict: entries} }

// Entry builds a DictEntry from a string key.
func Entry(key string, v Value) DictEntry {
	return DictEntry{Key: []byte(key), Value: v}
}

// IsZero reports whether v is the zero Value (useful as a "not found"
// sentinel from Get).
func (v Value) IsZero() bool {
	return v.Kind == KindInteger && v.Int == 0 && v.Str == nil && v.List == nil && v.Dict == nil
}

// Get looks up a key in a dict Value, returning the zero Value and false if
// v is not a dict or the key is absent.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindDict {
		return Value{}, false
	}
	for _, e := range v.Dict {
		if string(e.Key) == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// WithEntry returns a copy of v (which must be a dict, or zero) with key set
// to value, replacing any existing entry for key.
func (v Value) WithEntry(key string, value Value) Value {
	out := Value{Kind: KindDict}
	replaced := false
	for _, e := range v.Dict {
		if string(e.Key) == key {
			out.Dict = append(out.Dict, DictEntry{Key: e.Key, Value: value})
			replaced = true
			continue
		}
		out.Dict = append(out.Dict, e)
	}
	if !replaced {
		out.Dict = append(out.Dict, Entry(key, value))
	}
	return out
}
