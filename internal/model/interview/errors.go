package interview

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound        = errors.New("interview session not found")
	ErrDuplicateSession       = errors.New("interview session already exists")
	ErrSessionAlreadyComplete = errors.New("interview session already complete")
	ErrUnknownQuestion        = errors.New("unknown question")
	// ErrQuestionNotAsked is also an ErrUnknownQuestion: from the session's
	// point of view the key does not exist yet.
	ErrQuestionNotAsked   = fmt.Errorf("%w: question has not been asked in this session", ErrUnknownQuestion)
	ErrInvalidAnswerValue = errors.New("invalid answer value")
	ErrNoCandidates       = errors.New("no eligible categories remain")
)
