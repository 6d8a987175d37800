package postgres

import (
	"errors"

	"github.com/lib/pq"
)

const (
	uniqueViolation  pq.ErrorCode = "23505"
	lockNotAvailable pq.ErrorCode = "55P03"
)

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

func isUniqueViolation(err error) bool {
	return hasCode(err, uniqueViolation)
}

func isLockTimeout(err error) bool {
	return hasCode(err, lockNotAvailable)
}
