package utils

import (
	"errors"

	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

func IsRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrorRecordNotFound)
}
