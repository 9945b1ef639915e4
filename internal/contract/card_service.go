package contract

import (
	"context"
	"errors"
	"fmt"
	"recurring-card/internal/dto"
)

var ErrCardNotFound = errors.New("card not found")

// TransientError is a network failure, 5xx or throttling response. It is never
// retried in-call; the next reconciliation cycle tries again.
type TransientError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: transient failure (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient failure (status %d): %s", e.Op, e.StatusCode, e.Body)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ValidationPreconditionError means the schedule or board configuration cannot
// produce a card. Retrying will not help until someone fixes the configuration.
type ValidationPreconditionError struct {
	Reason string
}

func (e *ValidationPreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsPrecondition(err error) bool {
	var p *ValidationPreconditionError
	return errors.As(err, &p)
}

type CardService interface {
	GetCard(ctx context.Context, id string) (*dto.Card, error)
	CreateCard(ctx context.Context, spec dto.CardSpec, settings dto.BoardSettings) (*dto.Card, error)
}
