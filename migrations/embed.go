// Package migrations предоставляет встроенные SQL-миграции для auth method
// "database" (порядок важен: 001, 002, ...).
package migrations

import "embed"

// Files содержит все .sql файлы из этой директории.
//
//go:embed *.sql
var Files embed.FS
