package llm

import "errors"

// ErrEmptyCompletion is returned when the provider answered without text.
var ErrEmptyCompletion = errors.New("llm returned empty text")
