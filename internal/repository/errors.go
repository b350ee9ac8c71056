package repository

import (
	"database/sql"
	"errors"
	"fmt"
)

// notFoundOr переводит sql.ErrNoRows в доменную ошибку, остальное оборачивает.
func notFoundOr(err error, notFound error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return fmt.Errorf("%s %w", op, err)
}
