package sikulibridge

import (
	"errors"

	"github.com/cboone/sikulibridge/catalog"
	"github.com/cboone/sikulibridge/internal/enginecli"
	"github.com/cboone/sikulibridge/internal/remote"
)

var (
	// ErrStartFailed is returned when no launch attempt produced an engine
	// answering HTTP within the timeout.
	ErrStartFailed = errors.New("engine process failed to start")

	// ErrVerifyFailed is returned when the engine answers HTTP but its
	// remote interface never completed a keyword listing.
	ErrVerifyFailed = errors.New("failed to verify remote connection")

	// ErrNotConnected is returned by operations that need a verified
	// engine connection before one exists.
	ErrNotConnected = errors.New("engine is not connected")

	// ErrAlreadyStarted is returned when starting or connecting a bridge
	// that already left the unstarted state.
	ErrAlreadyStarted = errors.New("bridge already started")

	// ErrUnknownMode is returned for an unrecognized operating mode.
	ErrUnknownMode = errors.New("unknown mode")

	// ErrUnknownKeyword is returned for names missing from a cached catalog.
	ErrUnknownKeyword = catalog.ErrUnknownKeyword
)

// ConfigError reports an engine installation that cannot be launched, such
// as zero or several engine artifacts in the library directory.
type ConfigError = enginecli.ConfigError

// TimeoutError reports a readiness or verification poll that ran out of time.
type TimeoutError = enginecli.TimeoutError

// KeywordError is a keyword that ran on the engine and failed.
type KeywordError = remote.KeywordError
