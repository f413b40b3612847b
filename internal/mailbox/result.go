package mailbox

import "fmt"

// Result is an SMU response-register value. The high codes are emitted by
// firmware; Timeout and below are synthesized by this package. Hardware may
// emit values outside this set; they pass through unchanged and callers must
// treat anything other than ResultOK as failure.
type Result uint32

const (
	ResultOK               Result = 0x01
	ResultFailed           Result = 0xFF
	ResultUnknownCmd       Result = 0xFE
	ResultRejectedPrereq   Result = 0xFD
	ResultRejectedBusy     Result = 0xFC
	ResultTimeout          Result = 0xFB
	ResultInvalidArgument  Result = 0xFA
	ResultUnsupported      Result = 0xF9
	ResultInsufficientSize Result = 0xF8
	ResultMapError         Result = 0xF7
	ResultTransportFailed  Result = 0xF6
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultFailed:
		return "failed"
	case ResultUnknownCmd:
		return "unknown command"
	case ResultRejectedPrereq:
		return "rejected: prerequisite unmet"
	case ResultRejectedBusy:
		return "rejected: busy"
	case ResultTimeout:
		return "timed out"
	case ResultInvalidArgument:
		return "invalid argument"
	case ResultUnsupported:
		return "unsupported"
	case ResultInsufficientSize:
		return "insufficient buffer size"
	case ResultMapError:
		return "failed to map physical memory"
	case ResultTransportFailed:
		return "transport failure"
	}
	return fmt.Sprintf("raw code %#x", uint32(r))
}

// ResultError wraps a non-OK Result as an error. It is a comparable value
// type so errors.Is matches the sentinels below.
type ResultError struct {
	Code Result
}

func (e ResultError) Error() string {
	return fmt.Sprintf("smu: %s", e.Code)
}

// Sentinels for the locally synthesized failure codes.
var (
	ErrTimeout          = ResultError{ResultTimeout}
	ErrUnsupported      = ResultError{ResultUnsupported}
	ErrInvalidArgument  = ResultError{ResultInvalidArgument}
	ErrInsufficientSize = ResultError{ResultInsufficientSize}
	ErrMapFailed        = ResultError{ResultMapError}
	ErrTransport        = ResultError{ResultTransportFailed}
)

// Err converts a Result into an error: nil for ResultOK, a ResultError
// carrying the raw code otherwise.
func (r Result) Err() error {
	if r == ResultOK {
		return nil
	}
	return ResultError{r}
}
