// Package errwrap gives resource's release loops and blueprint's misuse
// panics a single, shared way to carry an error without every call site
// re-deriving its own nil-checks. A Sequential or Parallel release walks
// every child regardless of earlier failures and needs to fold each new
// failure onto a running total; Wrapf needs to annotate a sentinel error
// only when one is actually being raised.
package errwrap

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Wrapf annotates cause with a formatted message. A nil cause wraps to
// nil, so callers can wrap unconditionally.
func Wrapf(cause error, format string, args ...interface{}) error {
	return errors.Wrapf(cause, format, args...)
}

// Append folds err onto the end of aggregate, the running total a
// release loop accumulates as it tears down however many children it
// owns. Either argument may be nil.
func Append(aggregate, err error) error {
	switch {
	case aggregate == nil:
		return err
	case err == nil:
		return aggregate
	default:
		return multierror.Append(aggregate, err)
	}
}

// String renders err, or the empty string if err is nil.
func String(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
