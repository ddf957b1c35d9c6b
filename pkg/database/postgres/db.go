package pg

const maxSerializationRetries = 5

// ExecuteRetryable runs fn, rerunning it up to maxSerializationRetries times
// while it fails with a serialization failure.
func ExecuteRetryable(fn func() error) error {
	err := fn()
	for retries := 0; retries < maxSerializationRetries && IsSerializationFailure(err); retries++ {
		err = fn()
	}
	return err
}
