package mailbox

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amkillam/ryzen-smu/internal/smn"
)

// MaxArgs is the number of 32-bit argument words a command carries. All six
// are always written, with unused slots zeroed; responses overwrite them in
// place.
const MaxArgs = 6

// Clamp bounds for the polling budget. Values outside this range either
// time out commands that merely run slow or busy-wait pathologically.
const (
	MinAttempts     = 500
	MaxAttempts     = 32768
	DefaultAttempts = 8192
)

// Args is one command's argument block.
type Args [MaxArgs]uint32

// NewArgs returns an argument block with arg0 set and the rest zeroed.
func NewArgs(arg0 uint32) Args {
	return Args{arg0}
}

// ClampAttempts forces a polling budget into the supported range.
func ClampAttempts(attempts uint) uint {
	if attempts < MinAttempts {
		return MinAttempts
	}
	if attempts > MaxAttempts {
		return MaxAttempts
	}
	return attempts
}

// Executor runs the request/response handshake against one codename's
// mailbox set. A single mutex serializes entire commands end to end: the
// hardware has no pipelining, and another thread's register writes must
// never interleave with an in-flight command's argument block, message ID,
// or response poll. The lock is held for the whole polling duration.
type Executor struct {
	transport    smn.Transport
	set          Set
	attempts     uint
	pollInterval time.Duration

	mu sync.Mutex
}

// NewExecutor returns an Executor over the given transport and mailbox set.
// attempts is the polling budget per command; pollInterval, if non-zero, is
// slept between polls.
func NewExecutor(transport smn.Transport, set Set, attempts uint, pollInterval time.Duration) *Executor {
	return &Executor{
		transport:    transport,
		set:          set,
		attempts:     ClampAttempts(attempts),
		pollInterval: pollInterval,
	}
}

// Set returns the mailbox layouts this executor drives.
func (e *Executor) Set() Set {
	return e.set
}

// Exec issues op with the supplied argument block against the mailbox of
// the given kind. On success the block is overwritten with the response
// arguments and nil is returned. Failures surface as a ResultError holding
// either a synthesized code (Timeout, Unsupported, TransportFailed) or the
// raw hardware code; transport errors also wrap the underlying cause.
func (e *Executor) Exec(op uint32, args *Args, kind Kind) error {
	addr := e.set.Lookup(kind)
	if !addr.Present() {
		return ErrUnsupported
	}

	slog.Debug("mailbox: service request",
		"mailbox", kind,
		"op", fmt.Sprintf("%#x", op),
		"args", fmt.Sprintf("%#x", *args))

	e.mu.Lock()
	defer e.mu.Unlock()

	// A prior command may still be in flight; the mailbox is ready for a
	// new command once the response register reads non-zero. Note this is
	// the one place where reading the OK code does not mean "this command
	// succeeded" -- it is the idle/ready condition.
	ready, err := e.pollResponse(addr.Rsp, e.attempts)
	if err != nil {
		return fmt.Errorf("probe mailbox availability: %w", err)
	}
	if ready == 0 {
		slog.Debug("mailbox: timed out waiting for availability", "mailbox", kind)
		return ErrTimeout
	}

	// Clear the prior result, arm all six argument words in index order,
	// then trigger execution by writing the message ID.
	if err := e.transport.WriteRegister(addr.Rsp, 0); err != nil {
		return fmt.Errorf("clear response register: %w", err)
	}
	for i, arg := range args {
		if err := e.transport.WriteRegister(addr.Args+uint32(i*4), arg); err != nil {
			return fmt.Errorf("write argument %d: %w", i, err)
		}
	}
	if err := e.transport.WriteRegister(addr.Cmd, op); err != nil {
		return fmt.Errorf("write message ID: %w", err)
	}

	rsp, err := e.pollResponse(addr.Rsp, e.attempts)
	if err != nil {
		return fmt.Errorf("probe mailbox response: %w", err)
	}
	if rsp == 0 {
		slog.Debug("mailbox: command timed out",
			"mailbox", kind,
			"op", fmt.Sprintf("%#x", op),
			"attempts", e.attempts)
		return ErrTimeout
	}
	if Result(rsp) != ResultOK {
		slog.Debug("mailbox: command rejected",
			"mailbox", kind,
			"op", fmt.Sprintf("%#x", op),
			"rsp", fmt.Sprintf("%#x", rsp))
		return ResultError{Result(rsp)}
	}

	// The argument block now carries the response words.
	for i := range args {
		value, err := e.transport.ReadRegister(addr.Args + uint32(i*4))
		if err != nil {
			return fmt.Errorf("read response argument %d: %w", i, err)
		}
		args[i] = value
	}

	slog.Debug("mailbox: service response",
		"mailbox", kind,
		"op", fmt.Sprintf("%#x", op),
		"args", fmt.Sprintf("%#x", *args))

	return nil
}

// pollResponse reads the response register until it is non-zero or the
// budget is exhausted, returning the last observed value.
func (e *Executor) pollResponse(rspAddr uint32, attempts uint) (uint32, error) {
	var value uint32
	var err error
	for i := uint(0); i <= attempts; i++ {
		value, err = e.transport.ReadRegister(rspAddr)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		if value != 0 {
			return value, nil
		}
		if e.pollInterval > 0 {
			time.Sleep(e.pollInterval)
		}
	}
	return 0, nil
}
