package apperror

import (
	"errors"
	"net/http"
)

// Room and game errors. Every room operation fails with one of these,
// usually wrapped with extra context.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrRoomInactive       = errors.New("room is not active")
	ErrSelfJoin           = errors.New("cannot join your own room")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrAlreadyCalled      = errors.New("number already called")
	ErrNumberNotCalled    = errors.New("number has not been called")
	ErrPlayerNotFound     = errors.New("player not found in room")
	ErrInsufficientTokens = errors.New("insufficient tokens")
	ErrStoreUnavailable   = errors.New("store unavailable")

	ErrInvalidNumber = errors.New("number must be between 1 and 75")
	ErrInvalidInput  = errors.New("invalid input")
	ErrClaimRejected = errors.New("bingo claim rejected")
	ErrGameNotActive = errors.New("game is not active")
)

var statuses = []struct {
	err    error
	status int
}{
	{ErrRoomNotFound, http.StatusNotFound},
	{ErrPlayerNotFound, http.StatusNotFound},
	{ErrRoomFull, http.StatusConflict},
	{ErrRoomInactive, http.StatusConflict},
	{ErrAlreadyCalled, http.StatusConflict},
	{ErrGameNotActive, http.StatusConflict},
	{ErrSelfJoin, http.StatusBadRequest},
	{ErrNumberNotCalled, http.StatusBadRequest},
	{ErrInvalidNumber, http.StatusBadRequest},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrNotYourTurn, http.StatusForbidden},
	{ErrClaimRejected, http.StatusUnprocessableEntity},
	{ErrInsufficientTokens, http.StatusPaymentRequired},
	{ErrStoreUnavailable, http.StatusServiceUnavailable},
}

// Status maps an error to the HTTP status code the API answers with.
func Status(err error) int {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// Message returns the single user-visible message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if Status(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}
