package models

import "errors"

// Command errors. Every rejected command wraps exactly one of these so the
// transport can classify it with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrRoomFull           = errors.New("room full")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrInvalidTurn        = errors.New("invalid turn")
	ErrInvalidState       = errors.New("invalid state")
	ErrValidationFailed   = errors.New("validation failed")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrAlreadyExists, "already_exists"},
	{ErrRoomFull, "room_full"},
	{ErrPreconditionFailed, "precondition_failed"},
	{ErrNotAuthorized, "not_authorized"},
	{ErrInvalidTurn, "invalid_turn"},
	{ErrInvalidState, "invalid_state"},
	{ErrValidationFailed, "validation_failed"},
}

// ErrorCode maps err to the stable code sent to clients. Unclassified errors
// are reported as "internal".
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}
