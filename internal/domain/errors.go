package domain

import "errors"

var (
	// ErrMalformedQuestionSet is returned when a question record is missing a field or violates a bank rule.
	ErrMalformedQuestionSet = errors.New("malformed question set")
	// ErrEmptyQuestionSet is returned when a question source yields no questions.
	ErrEmptyQuestionSet = errors.New("empty question set")
	// ErrSessionAlreadyComplete is returned when a question is requested from a completed session.
	ErrSessionAlreadyComplete = errors.New("session already complete")
	// ErrNoPendingQuestion is returned when an answer is submitted without a dealt question.
	ErrNoPendingQuestion = errors.New("no pending question")
	// ErrSessionNotComplete is returned when a session is finalized before it completes.
	ErrSessionNotComplete = errors.New("session not complete")
	// ErrSessionNotFound is returned when a session snapshot cannot be found or restored.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrDuplicateUsername is returned when registering a username that is already taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrInvalidCredentials is returned when a username/password pair does not match an account.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
