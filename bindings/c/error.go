package main

/*
#include <stdlib.h>
#include <stdint.h>
#include <string.h>

// Error codes (must match libsmu.h)
typedef enum {
    SMU_OK = 0,
    SMU_ERR_INVALID_HANDLE = 1,
    SMU_ERR_INVALID_ARGUMENT = 2,
    SMU_ERR_NOT_INITIALIZED = 3,
    SMU_ERR_TIMEOUT = 4,
    SMU_ERR_UNSUPPORTED = 5,
    SMU_ERR_INSUFFICIENT_SIZE = 6,
    SMU_ERR_MAP_FAILED = 7,
    SMU_ERR_TRANSPORT = 8,
    SMU_ERR_COMMAND = 9,
    SMU_ERR_UNKNOWN = 99
} smu_error_code;

typedef struct {
    smu_error_code code;
    uint32_t raw;      // raw SMU response code for SMU_ERR_COMMAND, else 0
    char* message;
} smu_error;

// Helper to set error fields
static inline void set_error(smu_error* err, smu_error_code code, uint32_t raw, const char* message) {
    if (err == NULL) return;
    err->code = code;
    err->raw = raw;
    err->message = message ? strdup(message) : NULL;
}

static inline void clear_error(smu_error* err) {
    if (err == NULL) return;
    err->code = SMU_OK;
    err->raw = 0;
    err->message = NULL;
}
*/
import "C"

import (
	"errors"
	"unsafe"

	ryzensmu "github.com/amkillam/ryzen-smu"
)

// errorCode maps a Go error to a C error code.
func errorCode(err error) C.smu_error_code {
	if err == nil {
		return C.SMU_OK
	}

	// Check for sentinel errors
	if errors.Is(err, ryzensmu.ErrNotInitialized) {
		return C.SMU_ERR_NOT_INITIALIZED
	}
	if errors.Is(err, ryzensmu.ErrTimeout) {
		return C.SMU_ERR_TIMEOUT
	}
	if errors.Is(err, ryzensmu.ErrUnsupported) {
		return C.SMU_ERR_UNSUPPORTED
	}
	if errors.Is(err, ryzensmu.ErrInvalidArgument) {
		return C.SMU_ERR_INVALID_ARGUMENT
	}
	if errors.Is(err, ryzensmu.ErrInsufficientSize) {
		return C.SMU_ERR_INSUFFICIENT_SIZE
	}
	if errors.Is(err, ryzensmu.ErrMapFailed) {
		return C.SMU_ERR_MAP_FAILED
	}
	if errors.Is(err, ryzensmu.ErrTransport) {
		return C.SMU_ERR_TRANSPORT
	}

	// Raw hardware response codes pass through in smu_error.raw.
	var resultErr ryzensmu.ResultError
	if errors.As(err, &resultErr) {
		return C.SMU_ERR_COMMAND
	}

	return C.SMU_ERR_UNKNOWN
}

// setError populates a smu_error struct from a Go error.
func setError(err error, cErr *C.smu_error) C.smu_error_code {
	if err == nil {
		C.clear_error(cErr)
		return C.SMU_OK
	}

	code := errorCode(err)

	var raw C.uint32_t
	var resultErr ryzensmu.ResultError
	if errors.As(err, &resultErr) {
		raw = C.uint32_t(resultErr.Code)
	}

	msg := C.CString(err.Error())
	defer C.free(unsafe.Pointer(msg))
	C.set_error(cErr, code, raw, msg)
	return code
}

//export smu_error_free
func smu_error_free(err *C.smu_error) {
	if err == nil {
		return
	}
	if err.message != nil {
		C.free(unsafe.Pointer(err.message))
		err.message = nil
	}
	err.code = C.SMU_OK
	err.raw = 0
}
