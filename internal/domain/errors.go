package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz document does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrUserNotFound indicates there is no profile for the user.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmptyTitle is returned when publishing a quiz without a title.
	ErrEmptyTitle = errors.New("quiz title is empty")
	// ErrInvalidQuestion is returned for a question draft that cannot be published.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidStatus is returned for a status other than ativo/rascunho.
	ErrInvalidStatus = errors.New("invalid quiz status")
	// ErrUnauthenticated is returned when no session is available.
	ErrUnauthenticated = errors.New("unauthenticated")
)
