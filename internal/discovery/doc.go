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

/*
Package discovery finds the port a worker is listening on.

The worker announces its port by printing a bootstrap marker followed by
the port number on stdout:

	FLASK_PORT:5003 serving on 127.0.0.1

Scan reads a stream line by line and reports every marker it finds.
When no marker has been seen, Sweep probes a port range for a worker
answering its health endpoint. The last known port can be persisted
with WriteHint and read back with ReadHint.
*/
package discovery
