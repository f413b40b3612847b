// Package ryzensmu negotiates with the System Management Unit embedded in
// AMD Zen-family processors over the side-band SMN register interface. It
// identifies the silicon generation, resolves the per-generation mailbox
// register layouts, executes privileged SMU commands with bounded polling,
// and retrieves the firmware-maintained PM telemetry table from physical
// memory.
package ryzensmu

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/amkillam/ryzen-smu/internal/cpuid"
	"github.com/amkillam/ryzen-smu/internal/mailbox"
	"github.com/amkillam/ryzen-smu/internal/pmtable"
	"github.com/amkillam/ryzen-smu/internal/smn"
)

// -----------------------------------------------------------------------------
// Re-exports from the internal packages
// -----------------------------------------------------------------------------

// Codename identifies a silicon generation.
type Codename = cpuid.Codename

// Mailbox selects one of the SMU's independent command mailboxes.
type Mailbox = mailbox.Kind

// Args is one command's six-word argument block. Responses overwrite it.
type Args = mailbox.Args

// Result is a raw SMU response code.
type Result = mailbox.Result

// ResultError is an error carrying a raw SMU response code.
type ResultError = mailbox.ResultError

// SizeError reports a too-small PM table buffer; Required carries the size
// to retry with.
type SizeError = pmtable.SizeError

// IFVersion is the MP1 mailbox interface version.
type IFVersion = mailbox.IFVersion

// Geometry describes the PM table's physical location and size.
type Geometry = pmtable.Geometry

// Mailbox kinds.
const (
	RSMU = mailbox.RSMU
	MP1  = mailbox.MP1
	HSMP = mailbox.HSMP
)

// Supported codenames.
const (
	Undefined     = cpuid.Undefined
	Colfax        = cpuid.Colfax
	Renoir        = cpuid.Renoir
	Picasso       = cpuid.Picasso
	Matisse       = cpuid.Matisse
	Threadripper  = cpuid.Threadripper
	CastlePeak    = cpuid.CastlePeak
	RavenRidge    = cpuid.RavenRidge
	RavenRidge2   = cpuid.RavenRidge2
	SummitRidge   = cpuid.SummitRidge
	PinnacleRidge = cpuid.PinnacleRidge
	Rembrandt     = cpuid.Rembrandt
	Vermeer       = cpuid.Vermeer
	VanGogh       = cpuid.VanGogh
	Cezanne       = cpuid.Cezanne
	Milan         = cpuid.Milan
	Dali          = cpuid.Dali
	Lucienne      = cpuid.Lucienne
	Naples        = cpuid.Naples
	Chagall       = cpuid.Chagall
	Raphael       = cpuid.Raphael
	Phoenix       = cpuid.Phoenix
	StrixPoint    = cpuid.StrixPoint
	GraniteRidge  = cpuid.GraniteRidge
	HawkPoint     = cpuid.HawkPoint
	StormPeak     = cpuid.StormPeak
)

// Common sentinel errors. Raw hardware codes outside this set surface as a
// ResultError carrying the code unchanged.
var (
	ErrNotInitialized   = errors.New("smu: not initialized")
	ErrTimeout          = mailbox.ErrTimeout
	ErrUnsupported      = mailbox.ErrUnsupported
	ErrInvalidArgument  = mailbox.ErrInvalidArgument
	ErrInsufficientSize = mailbox.ErrInsufficientSize
	ErrMapFailed        = mailbox.ErrMapFailed
	ErrTransport        = mailbox.ErrTransport
)

// NewArgs returns an argument block with arg0 set and the rest zeroed.
func NewArgs(arg0 uint32) Args {
	return mailbox.NewArgs(arg0)
}

// opGetVersion reports the mailbox's firmware version. Universal across all
// supported codenames; the first argument is always 1.
const opGetVersion = 0x02

// -----------------------------------------------------------------------------
// Engine
// -----------------------------------------------------------------------------

// Engine owns all mutable protocol state: the resolved codename, the
// mailbox layouts, the command executor, and the PM table cache. Operations
// are safe for concurrent use; commands serialize on the executor's command
// lock and raw register access on the transport lock.
type Engine struct {
	transport smn.Transport
	resolver  *cpuid.Resolver
	mapper    pmtable.Mapper
	cfg       Config

	mu       sync.Mutex
	codename cpuid.Codename
	exec     *mailbox.Executor
	reader   *pmtable.Reader

	closers []io.Closer
}

// New assembles an Engine from explicit collaborators. Most callers want
// NewLocal instead; New exists for alternative transports and tests.
func New(transport smn.Transport, leaves cpuid.LeafReader, mapper pmtable.Mapper, cfg Config) *Engine {
	return &Engine{
		transport: transport,
		resolver:  cpuid.NewResolver(leaves),
		mapper:    mapper,
		cfg:       cfg.withDefaults(),
	}
}

// Initialize identifies the processor and resolves its mailbox layouts.
// Must be called before any command or PM table operation; calling it again
// after success is a no-op. Identification failure is unrecoverable: every
// later operation is rejected until a process restart on supported
// hardware.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.codename != cpuid.Undefined {
		return nil
	}

	codename, err := e.resolver.Resolve()
	if err != nil {
		return fmt.Errorf("identify processor: %w", err)
	}

	set, ok := mailbox.Lookup(codename)
	if !ok {
		return fmt.Errorf("no mailbox layout known for %s: %w", codename, ErrUnsupported)
	}

	e.exec = mailbox.NewExecutor(e.transport, set, e.cfg.TimeoutAttempts, e.cfg.pollInterval())
	e.reader = pmtable.NewReader(e.exec, codename, e.mapper, e.cfg.refreshInterval())
	e.codename = codename
	return nil
}

// Shutdown releases any open PM table mapping and resets the cached
// codename to Undefined, forcing re-initialization before reuse. The
// transport stays usable for raw register access.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.reader != nil {
		_ = e.reader.Close()
		e.reader = nil
	}
	e.exec = nil
	e.codename = cpuid.Undefined
	e.resolver.Reset()
}

// Close shuts the engine down and releases the underlying OS resources
// opened by NewLocal.
func (e *Engine) Close() error {
	e.Shutdown()

	var firstErr error
	for _, c := range e.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.closers = nil
	return firstErr
}

// Codename returns the resolved codename, or Undefined before Initialize.
func (e *Engine) Codename() Codename {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.codename
}

// Execute issues a raw SMU command against the given mailbox. On success
// args holds the response words.
func (e *Engine) Execute(op uint32, args *Args, mb Mailbox) error {
	exec, err := e.executor()
	if err != nil {
		return err
	}
	return exec.Exec(op, args, mb)
}

// FirmwareVersion queries the firmware version word of the given mailbox.
func (e *Engine) FirmwareVersion(mb Mailbox) (uint32, error) {
	args := NewArgs(1)
	if err := e.Execute(opGetVersion, &args, mb); err != nil {
		return 0, err
	}
	return args[0], nil
}

// MP1InterfaceVersion returns the MP1 mailbox interface version.
func (e *Engine) MP1InterfaceVersion() (IFVersion, error) {
	exec, err := e.executor()
	if err != nil {
		return mailbox.IFVersionUnknown, err
	}
	return exec.Set().IF, nil
}

// ReadRegister reads a raw SMN register. Works without initialization; raw
// address-space access is independent of mailbox state.
func (e *Engine) ReadRegister(addr uint32) (uint32, error) {
	return e.transport.ReadRegister(addr)
}

// WriteRegister writes a raw SMN register.
func (e *Engine) WriteRegister(addr uint32, value uint32) error {
	return e.transport.WriteRegister(addr, value)
}

// ReadPMTable refreshes (if due) and copies the PM table into buf,
// returning the bytes written. A too-small buf yields a SizeError carrying
// the required size so the caller can retry.
func (e *Engine) ReadPMTable(buf []byte) (int, error) {
	reader, err := e.pmReader()
	if err != nil {
		return 0, err
	}
	return reader.Read(buf)
}

// PMTableSize returns the table's total byte size.
func (e *Engine) PMTableSize() (int, error) {
	reader, err := e.pmReader()
	if err != nil {
		return 0, err
	}
	return reader.Size()
}

// PMTableVersion queries the table's format tag.
func (e *Engine) PMTableVersion() (uint32, error) {
	reader, err := e.pmReader()
	if err != nil {
		return 0, err
	}
	return reader.Version()
}

// PMTableGeometry returns the discovered table geometry.
func (e *Engine) PMTableGeometry() (Geometry, error) {
	reader, err := e.pmReader()
	if err != nil {
		return Geometry{}, err
	}
	return reader.Geometry()
}

func (e *Engine) executor() (*mailbox.Executor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.exec == nil {
		return nil, ErrNotInitialized
	}
	return e.exec, nil
}

func (e *Engine) pmReader() (*pmtable.Reader, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reader == nil {
		return nil, ErrNotInitialized
	}
	return e.reader, nil
}
