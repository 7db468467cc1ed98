//go:build cgo && !purego

package afsqlite

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteDriverType = "sqlite3"
	sqliteBuildType  = "cgo"
)
