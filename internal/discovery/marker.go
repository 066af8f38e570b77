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

package discovery

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// maxLineSize bounds a single line of worker output.
const maxLineSize = 1024 * 1024

// ParseMarker extracts the port announced on line. The text after the
// first occurrence of marker is split on whitespace and its first field
// must parse as a port.
func ParseMarker(line, marker string) (uint16, bool) {
	if marker == "" {
		return 0, false
	}
	_, rest, found := strings.Cut(line, marker)
	if !found {
		return 0, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, false
	}
	port, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil || port == 0 {
		return 0, false
	}
	return uint16(port), true
}

// Scan reads r until EOF. Lines carrying a valid marker go to onPort;
// every other line goes to onLine. Either callback may be nil. The
// returned error is the read error, if any.
func Scan(r io.Reader, marker string, onPort func(uint16), onLine func(string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if port, ok := ParseMarker(line, marker); ok {
			if onPort != nil {
				onPort(port)
			}
			continue
		}
		if onLine != nil {
			onLine(line)
		}
	}
	return sc.Err()
}
