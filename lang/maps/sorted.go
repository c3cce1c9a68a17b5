// Copyright 2016 CoreOS, Inc.
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

// Package maps provides helpers for extracting and ordering the keys
// of string-keyed maps, for types too varied to share a common
// collection type pre-generics.
package maps

import (
	"reflect"
	"sort"

	"github.com/coreos/kyua/lang/natsort"
)

// Keys returns the keys of m, which must be a map with string keys, in
// the unspecified order Go itself iterates them in.
func Keys(m interface{}) []string {
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		panic("maps: keys must be strings")
	}

	rvKeys := rv.MapKeys()
	keys := make([]string, len(rvKeys))
	for i, k := range rvKeys {
		keys[i] = k.String()
	}
	return keys
}

// SortedKeys returns the keys of m in ascending lexicographic order.
func SortedKeys(m interface{}) []string {
	keys := Keys(m)
	sort.Strings(keys)
	return keys
}

// NaturalKeys returns the keys of m in ascending natural-sort order.
func NaturalKeys(m interface{}) []string {
	keys := Keys(m)
	natsort.Strings(keys)
	return keys
}
