// Copyright 2024 CoreOS, Inc.
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

package gtest

import "testing"

// TestParseListingBasic exercises a one-suite, two-case listing.
func TestParseListingBasic(t *testing.T) {
	wire := "SuiteA.\n  CaseOne\n  CaseTwo\n"
	listing, err := parseListing("prog", []byte(wire))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listing) != 2 {
		t.Fatalf("got %d cases, want 2", len(listing))
	}
	if listing[0].Id.Name != "SuiteA.CaseOne" {
		t.Errorf("Name = %q, want %q", listing[0].Id.Name, "SuiteA.CaseOne")
	}
	if listing[1].Id.Name != "SuiteA.CaseTwo" {
		t.Errorf("Name = %q, want %q", listing[1].Id.Name, "SuiteA.CaseTwo")
	}
}

func TestParseListingMultipleSuites(t *testing.T) {
	wire := "SuiteA.\n  One\nSuiteB.\n  Two\n  Three\n"
	listing, err := parseListing("prog", []byte(wire))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"SuiteA.One", "SuiteB.Two", "SuiteB.Three"}
	if len(listing) != len(want) {
		t.Fatalf("got %d cases, want %d", len(listing), len(want))
	}
	for i, name := range want {
		if listing[i].Id.Name != name {
			t.Errorf("case %d = %q, want %q", i, listing[i].Id.Name, name)
		}
	}
}

func TestParseListingStripsParameterizedComment(t *testing.T) {
	wire := "SuiteA/P.\n  CaseOne/0  # GetParam() = 1\n"
	listing, err := parseListing("prog", []byte(wire))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if listing[0].Id.Name != "SuiteA/P.CaseOne/0" {
		t.Errorf("Name = %q, want %q", listing[0].Id.Name, "SuiteA/P.CaseOne/0")
	}
}

func TestParseListingRejectsCaseWithoutSuite(t *testing.T) {
	if _, err := parseListing("prog", []byte("  Orphan\n")); err == nil {
		t.Fatalf("expected an error for a case line with no preceding suite")
	}
}

func TestParseListingRejectsEmptyOutput(t *testing.T) {
	if _, err := parseListing("prog", []byte("")); err == nil {
		t.Fatalf("expected an error for empty output")
	}
}

func TestParseListingIgnoresTrailingDisabledBanner(t *testing.T) {
	wire := "SuiteA.\n  CaseOne\nSuiteA.\n  DISABLED_CaseTwo\n\nYOU HAVE 1 DISABLED TEST\n\n"
	listing, err := parseListing("prog", []byte(wire))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listing) != 2 {
		t.Fatalf("got %d cases, want 2", len(listing))
	}
}
