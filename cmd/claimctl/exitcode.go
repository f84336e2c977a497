package main

import "github.com/MuriData/zkclaim/pkg/errs"

// Exit codes spec.md §6 requires to be distinguishable by callers scripting
// against this binary.
const (
	ExitOK             = 0
	ExitUserError      = 1
	ExitNetworkError   = 2
	ExitAlreadyClaimed = 3
	ExitRateLimited    = 4
	ExitInternal       = 5
)

// exitCodeFor maps an error's Kind to the exit code spec.md §6 names.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	switch errs.KindOf(err) {
	case errs.MalformedInput, errs.NotEligible, errs.WeakKey:
		return ExitUserError
	case errs.ChainTransient, errs.ServiceStarved:
		return ExitNetworkError
	case errs.AlreadyClaimed:
		return ExitAlreadyClaimed
	case errs.RateLimited:
		return ExitRateLimited
	case errs.ChainRevertKnown:
		return ExitUserError
	default:
		return ExitInternal
	}
}
