package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// uniqueCheckers classify driver errors as identifier collisions. Drivers
// compiled in conditionally append to it from init.
var uniqueCheckers = []func(error) bool{isModerncUnique}

func isModerncUnique(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	for _, check := range uniqueCheckers {
		if check(err) {
			return true
		}
	}
	return false
}
