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
Package client talks to a running tether host over its control API.

The host writes its loopback address to <storage>/control.addr on start
and removes it on shutdown. FromEnvironment reads TETHER_HOST_ADDR
first, then that file:

	c, err := client.FromEnvironment(storageDir)
	if err != nil {
	    return err
	}
	port, err := c.WorkerPort(ctx)

Every command method decodes the host's {success, data, error} envelope
and returns the data or the error. A host that is not running yields a
*HostNotRunningError; IsHostNotRunning also recognizes raw connection
failures.

Events streams worker-port-ready and other host events:

	err := c.Events(ctx, func(msg host.Message) bool {
	    fmt.Println(msg.Event, string(msg.Data))
	    return true
	})
*/
package client
