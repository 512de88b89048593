package mysql

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// notFound keeps both the domain sentinel and gorm.ErrRecordNotFound matchable.
func notFound(domainErr, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", domainErr, err)
	}
	return err
}

func isDuplicateKey(err error) bool { return errors.Is(err, gorm.ErrDuplicatedKey) }
