//go:build tools
// +build tools

// Package tools tracks code generators used by go generate so that go.mod
// pins their versions.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
