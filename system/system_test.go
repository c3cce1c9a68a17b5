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

package system

import "testing"

func TestCurrentArchitectureMatchesRpmArch(t *testing.T) {
	if CurrentArchitecture() != RpmArch() {
		t.Errorf("CurrentArchitecture() = %q, want it to match RpmArch()", CurrentArchitecture())
	}
}

func TestRpmArchNonEmpty(t *testing.T) {
	if RpmArch() == "" {
		t.Errorf("expected a non-empty RPM architecture name")
	}
}

func TestGetProcessorsPositive(t *testing.T) {
	n, err := GetProcessors()
	if err != nil {
		t.Fatalf("GetProcessors failed: %v", err)
	}
	if n == 0 {
		t.Errorf("GetProcessors() = 0, want at least 1")
	}
}

func TestAvailableMemoryPositive(t *testing.T) {
	n, err := AvailableMemory()
	if err != nil {
		t.Fatalf("AvailableMemory failed: %v", err)
	}
	if n == 0 {
		t.Errorf("AvailableMemory() = 0, want a positive byte count")
	}
}
