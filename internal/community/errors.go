package community

import "errors"

var (
	// ErrCommunityNotFound is returned when a community ID does not exist.
	ErrCommunityNotFound = errors.New("community not found")

	// ErrAlreadyAdmin is returned when granting admin to an existing admin.
	ErrAlreadyAdmin = errors.New("user is already an admin of this community")

	// ErrUserNotFound is returned when granting admin to an unknown user.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidName is returned when a community or amenity name fails validation.
	ErrInvalidName = errors.New("invalid name")
)
