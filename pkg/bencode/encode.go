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

package bencode

import (
	"bytes"
	"fmt"
	"io"
	"sort"
)

// Encode renders v as bencode. Dict keys are emitted in ascending byte
// order regardless of the order entries were appended in.
func Encode(v Value) []byte {
	var buf bytes.Buffer
	encode(&buf, v)
	return buf.Bytes()
}

// EncodeTo writes the bencode form of v to w.
func EncodeTo(w io.Writer, v Value) error {
	_, err := w.Write(Encode(v))
	return err
}

func encode(buf *bytes.Buffer, v Value) {
	switch v.Kind {
	case KindInteger:
		fmt.Fprintf(buf, "i%de", v.Int)
	case KindString:
		fmt.Fprintf(buf, "%d:", len(v.Str))
		buf.Write(v.Str)
	case KindList:
		buf.WriteByte('l')
		for _, item := range v.List {
			encode(buf, item)
		}
		buf.WriteByte('e')
	case KindDict:
		buf.WriteByte('d')
		entries := append([]DictEntry(nil), v.Dict...)
		sort.Slice(entries, func(i, j int) bool {
			return bytes.Compare(entries[i].Key, entries[j].Key) < 0
		})
		for _, e := range entries {
			fmt.Fprintf(buf, "%d:", len(e.Key))
			buf.Write(e.Key)
			encode(buf, e.Value)
		}
		buf.WriteByte('e')
	default:
		panic(fmt.Sprintf("bencode: unknown Kind %d", v.Kind))
	}
}
