// internal/common/errors/wrap.go
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Creation and wrapping. Callers import this package in place of the
// standard library errors package.
var (
	New         = crdb.New
	Newf        = crdb.Newf
	Wrap        = crdb.Wrap
	Wrapf       = crdb.Wrapf
	WithStack   = crdb.WithStack
	WithMessage = crdb.WithMessage
	WithDetail  = crdb.WithDetail
	WithHint    = crdb.WithHint
	Mark        = crdb.Mark
	Join        = crdb.Join
)

// Inspection.
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Sentinels. Match with Is; they survive Wrap and Mark.
var (
	ErrJobNotFound         = New("analysis job not found")
	ErrInvalidWorkUnits    = New("invalid work units")
	ErrInvalidTransition   = New("invalid job status transition")
	ErrQueueFull           = New("queue full")
	ErrNoPendingAnalysis   = New("no pending analysis")
	ErrSeekerNotFound      = New("seeker not found")
	ErrOpportunityNotFound = New("opportunity not found")
)
