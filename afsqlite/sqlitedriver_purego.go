//go:build purego || !cgo

package afsqlite

import (
	_ "modernc.org/sqlite"
)

const (
	sqliteDriverType = "sqlite"
	sqliteBuildType  = "purego"
)
