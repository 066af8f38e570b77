// Copyright 2025 Tom Barlow
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

//go:build linux

package lifecycle

import "testing"

func TestParseStatPPID(t *testing.T) {
	tests := []struct {
		name string
		stat string
		want int
		ok   bool
	}{
		{"plain", "1234 (python) S 1000 1234 1234 0 -1", 1000, true},
		{"name with spaces and parens", "77 (Web Content (x)) R 42 77 77 0", 42, true},
		{"truncated", "77 (python)", 0, false},
		{"garbage", "nonsense", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseStatPPID([]byte(tt.stat))
			if got != tt.want || ok != tt.ok {
				t.Errorf("parseStatPPID() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}
