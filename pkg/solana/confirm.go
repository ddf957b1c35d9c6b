package solana

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/tunegate/tunegate-server/pkg/retry"
	"github.com/tunegate/tunegate-server/pkg/retry/backoff"
)

var errCommitmentNotReached = errors.New("commitment not reached")

// PollForConfirmation blocks until sig reaches the requested commitment, the
// transaction is found to have failed, or ctx is done.
func PollForConfirmation(ctx context.Context, sc Client, sig Signature, commitment Commitment, interval time.Duration) (*SignatureStatus, error) {
	var status *SignatureStatus
	_, err := retry.Retry(
		func() error {
			s, err := sc.GetSignatureStatus(sig)
			if err != nil {
				return err
			}

			status = s
			if s.ErrorResult != nil {
				return s.ErrorResult
			}
			if !s.Reached(commitment) {
				return errCommitmentNotReached
			}
			return nil
		},
		retry.RetriableErrors(ErrSignatureNotFound, errCommitmentNotReached),
		retry.Context(ctx),
		retry.BackoffContext(ctx, backoff.Constant(interval), interval),
	)
	if err == nil {
		return status, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return status, errors.Wrapf(ctxErr, "signature %s not confirmed", sig)
	}
	return status, err
}
