package service

import "github.com/poornimax/crushline/pkg/apperr"

var (
	ErrSelfReference    = apperr.Validation("cannot target yourself")
	ErrEmptyContent     = apperr.Validation("message content is empty")
	ErrContentTooLong   = apperr.Validation("message content is too long")
	ErrUserNotFound     = apperr.NotFound("user not found")
	ErrInconsistentPair = apperr.Transient("relationship state did not settle, try again", nil)
	ErrArchiveFailed    = apperr.Transient("could not archive conversation", nil)
)

// storeError classifies a persistence failure for the caller.
func storeError(msg string, err error) error {
	return apperr.Internal(msg, err)
}
