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

// Package logsink is the host's bounded error log.
//
// Entries are appended to <dir>/<name>.log. When the active file reaches
// its size ceiling it is rotated into a numbered backup chain
// (<name>.log.1 is the most recent) capped at a fixed count, and the
// aggregate size of the whole set is trimmed oldest-first on a sampled
// schedule. Failures are reported on a fallback stream and never
// returned: logging must not take the host down.
//
// A process-wide Sink is set up once with Init and used through the
// package-level Log function for the rest of the process lifetime.
package logsink
