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
Package host wires the worker supervisor to its presentation layer.

The presentation layer drives the host through commands (start-worker,
stop-worker, get-worker-port, check-worker-status, get-storage-path).
Every command answers with an Envelope:

	{"success": true, "data": 5003, "error": null}

Commands are served over a loopback control API whose address is written
to <storage>/control.addr. The same API streams events such as
worker-port-ready over server-sent events and accepts the window-close
and app-exit shutdown triggers.
*/
package host
