package reconcile

import "github.com/pkg/errors"

// ErrDuplicateNotification means the idempotency key was already recorded.
// The notification is acknowledged without any further effect.
var ErrDuplicateNotification = errors.New("duplicate notification")

// ErrMirrorRegression means the freshly fetched ledger state is behind the
// local mirror. The chain only moves forward, so this is a stale read; the
// mirror is never moved backward.
var ErrMirrorRegression = errors.New("fetched state behind local mirror")
