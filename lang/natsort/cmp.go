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

package natsort

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// compareRight compares two digit runs, neither of which begins with a
// '0', by magnitude: the run that keeps producing digits the longest is
// the larger number. Pointers walk past the end of their input as soon
// as a non-digit (including the string terminator) is seen.
func compareRight(a, b string) int {
	bias := 0
	for i := 0; ; i++ {
		da := i < len(a) && isDigit(a[i])
		db := i < len(b) && isDigit(b[i])
		switch {
		case !da && !db:
			return bias
		case !da:
			return -1
		case !db:
			return 1
		case a[i] < b[i]:
			if bias == 0 {
				bias = -1
			}
		case a[i] > b[i]:
			if bias == 0 {
				bias = 1
			}
		}
	}
}

// compareLeft compares two digit runs lexicographically, digit by
// digit, stopping at the first difference. Used whenever either run
// has a leading zero, so "010" sorts relative to "02" the way a
// fractional value would rather than by bare magnitude.
func compareLeft(a, b string) int {
	for i := 0; ; i++ {
		da := i < len(a) && isDigit(a[i])
		db := i < len(b) && isDigit(b[i])
		switch {
		case !da && !db:
			return 0
		case !da:
			return -1
		case !db:
			return 1
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
}

// Compare performs a natural-order comparison of a and b, returning a
// negative, zero, or positive int as with strings.Compare. Runs of
// digits are compared by value rather than byte for byte; a run
// beginning with '0' is instead compared lexicographically, which
// matches the historical strnatcmp behavior for version- and
// fraction-like strings ("1.010" sorts before "1.02"). Spaces never
// cause a mismatch on their own; they are skipped on whichever side
// has one.
func Compare(a, b string) int {
	var ai, bi int
	for {
		var ca, cb byte
		if ai < len(a) {
			ca = a[ai]
		}
		if bi < len(b) {
			cb = b[bi]
		}
		for ca == ' ' {
			ai++
			if ai >= len(a) {
				ca = 0
				break
			}
			ca = a[ai]
		}
		for cb == ' ' {
			bi++
			if bi >= len(b) {
				cb = 0
				break
			}
			cb = b[bi]
		}

		if isDigit(ca) && isDigit(cb) {
			var result int
			if ca == '0' || cb == '0' {
				result = compareLeft(a[ai:], b[bi:])
			} else {
				result = compareRight(a[ai:], b[bi:])
			}
			if result != 0 {
				return result
			}
		}

		if ca == 0 && cb == 0 {
			return 0
		}
		if ca < cb {
			return -1
		}
		if ca > cb {
			return 1
		}
		ai++
		bi++
	}
}
