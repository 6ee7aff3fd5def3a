package sikulibridge

import (
	"context"
	"fmt"
	"strings"
)

// Mode selects what a Bridge does while it is being constructed.
type Mode int

const (
	// ModeOld starts the engine immediately. Outside an active test run
	// the engine is stopped again shortly after.
	ModeOld Mode = iota
	// ModeNew does nothing; the caller starts the engine explicitly.
	ModeNew
	// ModePython connects to an engine that is already listening on the
	// configured port, without checking for a test run.
	ModePython
	// ModeDoc starts the engine for documentation generation and stops it
	// after 4 seconds.
	ModeDoc
	// ModeCreate starts the engine, writes its keywords to a catalog file
	// and stops it after 3 seconds.
	ModeCreate
)

var modeNames = map[Mode]string{
	ModeOld:    "OLD",
	ModeNew:    "NEW",
	ModePython: "PYTHON",
	ModeDoc:    "DOC",
	ModeCreate: "CREATE",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name such as "old" or " CREATE ".
func ParseMode(s string) (Mode, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// modeStrategy is the fixed initialization of one mode.
type modeStrategy struct {
	// live reads keyword metadata from the engine instead of the catalog.
	live bool
	init func(b *Bridge, ctx context.Context) error
}

var modeStrategies = map[Mode]modeStrategy{
	ModeOld:    {init: (*Bridge).initOld},
	ModeNew:    {init: (*Bridge).initNew},
	ModePython: {init: (*Bridge).initPython},
	ModeDoc:    {init: (*Bridge).initDoc},
	ModeCreate: {live: true, init: (*Bridge).initCreate},
}

func (b *Bridge) initOld(ctx context.Context) error {
	if err := b.StartSikuliProcess(ctx, b.opts.port); err != nil {
		return err
	}
	if active, err := probeSession(b.opts.session); !active {
		b.log.WithError(err).Warn("Test run may not be active, stopping engine")
		b.scheduleStop(unattendedStopDelay)
	}
	return nil
}

func (b *Bridge) initNew(context.Context) error {
	return nil
}

func (b *Bridge) initPython(ctx context.Context) error {
	return b.ConnectSikuliProcess(ctx, b.opts.port)
}

func (b *Bridge) initDoc(ctx context.Context) error {
	if err := b.StartSikuliProcess(ctx, b.opts.port); err != nil {
		return err
	}
	b.scheduleStop(docStopDelay)
	return nil
}

func (b *Bridge) initCreate(ctx context.Context) error {
	if err := b.StartSikuliProcess(ctx, b.opts.port); err != nil {
		return err
	}
	defer b.scheduleStop(createStopDelay)
	_, err := b.WriteCatalog(ctx, b.catalogPath())
	return err
}
