// SPDX-License-Identifier: MIT
package main

import "github.com/skaphos/forksync/cmd/forksync"

// execute is overridable in tests.
var execute = forksync.Execute

func main() {
	execute()
}
