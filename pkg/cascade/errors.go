package cascade

import rerrors "github.com/jihwankim/resilience-core/pkg/errors"

func newInvalidRequest(msg string) error {
	return rerrors.New(rerrors.InvalidRequest, msg)
}
