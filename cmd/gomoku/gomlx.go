//go:build !nogomlx

package main

// Include the GoMLX backend used by the "dqn" agents.

import (
	_ "github.com/gomlx/gomlx/backends/default"
)
