//go:build tools

// For the tools.go pattern, see:
// https://go.dev/wiki/Modules#how-can-i-track-tool-dependencies-for-a-module

package finality

import (
	// For stringer, used by the go:generate directives in afchain.
	_ "golang.org/x/tools/cmd/stringer"
)
