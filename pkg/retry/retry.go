// Package retry runs actions repeatedly under a list of strategies.
package retry

// Action is attempted until it succeeds or a strategy gives up.
type Action func() error

// Retrier runs actions under a fixed set of strategies.
type Retrier interface {
	Retry(action Action) (uint, error)
}

type retrier []Strategy

// NewRetrier binds strategies to a Retrier. With no strategies, actions are
// retried in a tight loop until they succeed.
func NewRetrier(strategies ...Strategy) Retrier {
	return retrier(strategies)
}

func (r retrier) Retry(action Action) (uint, error) {
	return Retry(action, r...)
}

// Retry runs action until it returns nil or a strategy declines another
// attempt, returning the number of attempts made and the last error.
//
// Strategies are consulted in order and evaluation stops at the first that
// declines, so strategies that sleep belong at the end of the list.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	var attempts uint
	for {
		attempts++

		err := action()
		if err == nil {
			return attempts, nil
		}
		if !shouldRetry(strategies, attempts, err) {
			return attempts, err
		}
	}
}

func shouldRetry(strategies []Strategy, attempts uint, err error) bool {
	for _, s := range strategies {
		if !s(attempts, err) {
			return false
		}
	}
	return true
}
