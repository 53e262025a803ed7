//go:build tools

// Tool dependencies pinned in go.mod: golangci-lint and
// mockgen, which the go:generate lines in internal/mocks run.
package main

import (
	_ "github.com/golangci/golangci-lint/v2/cmd/golangci-lint"
	_ "go.uber.org/mock/mockgen"
)
