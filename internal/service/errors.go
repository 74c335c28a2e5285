package service

import "errors"

var (
	// ErrForbidden marks an operation on a message or conversation the
	// user does not participate in.
	ErrForbidden = errors.New("access denied")

	// ErrSelfMessage rejects sending a direct message to oneself.
	ErrSelfMessage = errors.New("cannot send a message to yourself")

	// ErrInvalidCredentials is returned by Authenticate on a bad
	// username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateParticipant rejects adding a user twice to a conversation.
	ErrDuplicateParticipant = errors.New("user is already a participant")

	// ErrLastParticipant rejects removing the final member of a
	// conversation.
	ErrLastParticipant = errors.New("cannot remove the last participant from a conversation")
)
