package service

import "errors"

// Sentinel errors surfaced to handlers. Remote/store failures pass through
// unwrapped with their own message and are never retried.
var (
	// ErrNotFound covers both an absent row and a role mismatch: mutating
	// operations constrain their predicate to the expected role columns, so a
	// caller lacking the role simply matches zero rows.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyRequested is returned by SendRequest when any edge already
	// exists between the pair, regardless of status or direction.
	ErrAlreadyRequested = errors.New("friend request already exists")

	// ErrSelfRequest rejects a friend request addressed to the sender.
	ErrSelfRequest = errors.New("cannot send a friend request to yourself")

	// ErrEmptyContent rejects blank post or comment content.
	ErrEmptyContent = errors.New("content must not be empty")

	// ErrDeleteVerification reports that a post-condition read after a delete
	// still found the row. Guards against silent partial failure in the store.
	ErrDeleteVerification = errors.New("row still exists after delete")
)
