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

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// AvailableMemory returns the amount of memory, in bytes, available to
// the current process: the tighter of the cgroup memory limit and the
// machine's total physical memory as reported by /proc/meminfo.
func AvailableMemory() (uint64, error) {
	total, err := totalSystemMemory()
	if err != nil {
		return 0, err
	}

	limit, err := cgroupMemoryLimit()
	if err != nil {
		return 0, err
	}
	if limit > 0 && limit < total {
		return limit, nil
	}
	return total, nil
}

func totalSystemMemory() (uint64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, fmt.Errorf("reading /proc/meminfo: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("invalid MemTotal line %q", line)
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid MemTotal value: %w", err)
		}
		return kb * 1024, nil
	}
	return 0, fmt.Errorf("MemTotal not found in /proc/meminfo")
}

// cgroupMemoryLimit returns 0 when no limit is configured (cgroup v1
// and v2 both report this as "max" or a very large sentinel value).
func cgroupMemoryLimit() (uint64, error) {
	buf, err := os.ReadFile("/sys/fs/cgroup/memory.max")
	if err == nil {
		text := strings.TrimSpace(string(buf))
		if text == "max" {
			return 0, nil
		}
		v, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid memory.max value: %w", err)
		}
		return v, nil
	} else if !os.IsNotExist(err) {
		return 0, fmt.Errorf("reading memory.max: %w", err)
	}

	buf, err = os.ReadFile("/sys/fs/cgroup/memory/memory.limit_in_bytes")
	if os.IsNotExist(err) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("reading memory.limit_in_bytes: %w", err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(buf)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory.limit_in_bytes value: %w", err)
	}
	// cgroup v1 uses a near-uint64-max sentinel for "unlimited".
	if v > 1<<62 {
		return 0, nil
	}
	return v, nil
}
