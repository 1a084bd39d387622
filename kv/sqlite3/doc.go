// Package sqlite3 stores content payloads in SQLite through gorm. The SQLite
// build runs on wazero, so no cgo toolchain is needed.
package sqlite3
