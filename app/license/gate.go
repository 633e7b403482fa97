package license

import "context"

// Gate decides whether harvesting may proceed. A false answer is final for
// the call that asked.
type Gate interface {
	Authorize(ctx context.Context) (bool, string)
}

// AllowAll authorizes every call. Used by internal deployments without a
// license server.
type AllowAll struct{}

func (AllowAll) Authorize(ctx context.Context) (bool, string) {
	return true, "license check disabled"
}

// Static always returns the same answer.
type Static struct {
	OK     bool
	Reason string
}

func (s Static) Authorize(ctx context.Context) (bool, string) {
	return s.OK, s.Reason
}
