package db

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNoRowsUpdated means a guarded update matched nothing: another writer moved the rows first.
var ErrNoRowsUpdated = errors.New("no rows matched the update guard")

// IsNotFound reports whether err is gorm's missing-record sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// RequireRows turns an update that touched no rows into ErrNoRowsUpdated.
func RequireRows(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoRowsUpdated
	}
	return nil
}
