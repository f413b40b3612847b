// Package main builds libryzensmu, a C shared library over the SMU engine.
//
// Build with:
//
//	go build -buildmode=c-shared -o libryzensmu.so ./bindings/c
//
// Every fallible entry point takes a smu_error out-parameter and returns its
// code; pass NULL to ignore the detail. Strings placed in smu_error must be
// released with smu_error_free.
package main

/*
#include <stdlib.h>
#include <stdint.h>
#include <string.h>

// API version
#define SMU_API_VERSION_MAJOR 0
#define SMU_API_VERSION_MINOR 1
#define SMU_API_VERSION_PATCH 0

// Handle types
#define SMU_DEFINE_HANDLE(name) typedef struct { uint64_t _h; } name

SMU_DEFINE_HANDLE(smu_handle);

// Error codes
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

// Mailbox selector (must match the Go constants)
typedef enum {
    SMU_MAILBOX_RSMU = 0,
    SMU_MAILBOX_MP1 = 1,
    SMU_MAILBOX_HSMP = 2
} smu_mailbox;

// A command's six-word argument block, overwritten with the response.
typedef struct {
    uint32_t args[6];
} smu_args;
*/
import "C"

import (
	"fmt"
	"unsafe"

	ryzensmu "github.com/amkillam/ryzen-smu"
)

func engineFromHandle(h C.smu_handle) (*ryzensmu.Engine, bool) {
	return getHandleTyped[*ryzensmu.Engine](uint64(h._h))
}

func invalidHandle(cErr *C.smu_error) C.smu_error_code {
	return setError(fmt.Errorf("invalid or closed SMU handle"), cErr)
}

func mailboxFromC(mb C.smu_mailbox) (ryzensmu.Mailbox, bool) {
	switch mb {
	case C.SMU_MAILBOX_RSMU:
		return ryzensmu.RSMU, true
	case C.SMU_MAILBOX_MP1:
		return ryzensmu.MP1, true
	case C.SMU_MAILBOX_HSMP:
		return ryzensmu.HSMP, true
	}
	return 0, false
}

// smu_open opens the local machine's SMU and identifies the processor.
// configPath may be NULL to use defaults. Requires root.
//
//export smu_open
func smu_open(configPath *C.char, out *C.smu_handle, cErr *C.smu_error) C.smu_error_code {
	if out == nil {
		return setError(fmt.Errorf("out handle is NULL"), cErr)
	}

	var cfg ryzensmu.Config
	if configPath != nil {
		loaded, err := ryzensmu.LoadConfig(C.GoString(configPath))
		if err != nil {
			return setError(err, cErr)
		}
		cfg = loaded
	}

	engine, err := ryzensmu.NewLocal(cfg)
	if err != nil {
		return setError(err, cErr)
	}
	if err := engine.Initialize(); err != nil {
		_ = engine.Close()
		return setError(err, cErr)
	}

	out._h = C.uint64_t(newHandle(engine))
	return setError(nil, cErr)
}

// smu_close releases the engine and its OS resources. The handle is invalid
// afterwards.
//
//export smu_close
func smu_close(h C.smu_handle, cErr *C.smu_error) C.smu_error_code {
	v := freeHandle(uint64(h._h))
	if v == nil {
		return invalidHandle(cErr)
	}
	engine, ok := v.(*ryzensmu.Engine)
	if !ok {
		return invalidHandle(cErr)
	}
	return setError(engine.Close(), cErr)
}

// smu_codename returns the resolved codename as an integer enum value.
//
//export smu_codename
func smu_codename(h C.smu_handle, out *C.int32_t, cErr *C.smu_error) C.smu_error_code {
	engine, ok := engineFromHandle(h)
	if !ok {
		return invalidHandle(cErr)
	}
	if out == nil {
		return setError(fmt.Errorf("out pointer is NULL"), cErr)
	}
	*out = C.int32_t(engine.Codename())
	return setError(nil, cErr)
}

// smu_codename_name returns the codename as a string. The caller frees it.
//
//export smu_codename_name
func smu_codename_name(h C.smu_handle) *C.char {
	engine, ok := engineFromHandle(h)
	if !ok {
		return nil
	}
	return C.CString(engine.Codename().String())
}

// smu_firmware_version queries the firmware version word of a mailbox.
//
//export smu_firmware_version
func smu_firmware_version(h C.smu_handle, mb C.smu_mailbox, out *C.uint32_t, cErr *C.smu_error) C.smu_error_code {
	engine, ok := engineFromHandle(h)
	if !ok {
		return invalidHandle(cErr)
	}
	mailbox, ok := mailboxFromC(mb)
	if !ok || out == nil {
		return setError(fmt.Errorf("bad mailbox selector or NULL out pointer"), cErr)
	}
	version, err := engine.FirmwareVersion(mailbox)
	if err != nil {
		return setError(err, cErr)
	}
	*out = C.uint32_t(version)
	return setError(nil, cErr)
}

// smu_execute issues a raw SMU command. On success the argument block holds
// the response words.
//
//export smu_execute
func smu_execute(h C.smu_handle, mb C.smu_mailbox, op C.uint32_t, args *C.smu_args, cErr *C.smu_error) C.smu_error_code {
	engine, ok := engineFromHandle(h)
	if !ok {
		return invalidHandle(cErr)
	}
	mailbox, ok := mailboxFromC(mb)
	if !ok || args == nil {
		return setError(fmt.Errorf("bad mailbox selector or NULL args"), cErr)
	}

	var block ryzensmu.Args
	for i := range block {
		block[i] = uint32(args.args[i])
	}
	if err := engine.Execute(uint32(op), &block, mailbox); err != nil {
		return setError(err, cErr)
	}
	for i := range block {
		args.args[i] = C.uint32_t(block[i])
	}
	return setError(nil, cErr)
}

// smu_read_register reads a raw SMN register. Works on any open handle.
//
//export smu_read_register
func smu_read_register(h C.smu_handle, addr C.uint32_t, out *C.uint32_t, cErr *C.smu_error) C.smu_error_code {
	engine, ok := engineFromHandle(h)
	if !ok {
		return invalidHandle(cErr)
	}
	if out == nil {
		return setError(fmt.Errorf("out pointer is NULL"), cErr)
	}
	value, err := engine.ReadRegister(uint32(addr))
	if err != nil {
		return setError(err, cErr)
	}
	*out = C.uint32_t(value)
	return setError(nil, cErr)
}

// smu_write_register writes a raw SMN register.
//
//export smu_write_register
func smu_write_register(h C.smu_handle, addr C.uint32_t, value C.uint32_t, cErr *C.smu_error) C.smu_error_code {
	engine, ok := engineFromHandle(h)
	if !ok {
		return invalidHandle(cErr)
	}
	return setError(engine.WriteRegister(uint32(addr), uint32(value)), cErr)
}

// smu_pm_table_size reports the PM table's total byte size.
//
//export smu_pm_table_size
func smu_pm_table_size(h C.smu_handle, out *C.size_t, cErr *C.smu_error) C.smu_error_code {
	engine, ok := engineFromHandle(h)
	if !ok {
		return invalidHandle(cErr)
	}
	if out == nil {
		return setError(fmt.Errorf("out pointer is NULL"), cErr)
	}
	size, err := engine.PMTableSize()
	if err != nil {
		return setError(err, cErr)
	}
	*out = C.size_t(size)
	return setError(nil, cErr)
}

// smu_pm_table_version reports the PM table's format tag.
//
//export smu_pm_table_version
func smu_pm_table_version(h C.smu_handle, out *C.uint32_t, cErr *C.smu_error) C.smu_error_code {
	engine, ok := engineFromHandle(h)
	if !ok {
		return invalidHandle(cErr)
	}
	if out == nil {
		return setError(fmt.Errorf("out pointer is NULL"), cErr)
	}
	version, err := engine.PMTableVersion()
	if err != nil {
		return setError(err, cErr)
	}
	*out = C.uint32_t(version)
	return setError(nil, cErr)
}

// smu_read_pm_table refreshes (if due) and copies the PM table into buf,
// storing the bytes written in written. A too-small buffer fails with
// SMU_ERR_INSUFFICIENT_SIZE; query smu_pm_table_size for the needed length.
//
//export smu_read_pm_table
func smu_read_pm_table(h C.smu_handle, buf unsafe.Pointer, bufLen C.size_t, written *C.size_t, cErr *C.smu_error) C.smu_error_code {
	engine, ok := engineFromHandle(h)
	if !ok {
		return invalidHandle(cErr)
	}
	if buf == nil {
		return setError(fmt.Errorf("buffer is NULL"), cErr)
	}

	target := unsafe.Slice((*byte)(buf), int(bufLen))
	n, err := engine.ReadPMTable(target)
	if err != nil {
		return setError(err, cErr)
	}
	if written != nil {
		*written = C.size_t(n)
	}
	return setError(nil, cErr)
}

func main() {}
