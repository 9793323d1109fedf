//go:build cgo

package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// CgoDriver is mattn/go-sqlite3, selected with db_driver = "sqlite3".
const CgoDriver = "sqlite3"

func init() {
	uniqueCheckers = append(uniqueCheckers, isMattnUnique)
}

func isMattnUnique(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
