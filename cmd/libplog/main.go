// Command libplog exports the plog boundary with C linkage.
//
//	go build -buildmode=c-shared -o libplog.so ./cmd/libplog
//
// Every function returns a status code (see capi.Status); strings are
// NUL-terminated and copied before the call returns.
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"time"
	"unsafe"

	"github.com/trickstertwo/plog/capi"
)

func main() {}

func logAt(level int, msg *C.char) C.int {
	return C.int(capi.Log(level, C.GoString(msg), "", 0, ""))
}

//export plog_log
func plog_log(level C.int, msg, file *C.char, line C.int, function *C.char) C.int {
	return C.int(capi.Log(int(level), C.GoString(msg), C.GoString(file), int(line), C.GoString(function)))
}

//export plog_log_kv
func plog_log_kv(level C.int, msg *C.char, kv **C.char, n C.int) C.int {
	if n < 0 || (n > 0 && kv == nil) {
		return C.int(capi.StatusInvalidArgument)
	}
	pairs := make([]string, int(n))
	if n > 0 {
		for i, p := range unsafe.Slice(kv, int(n)) {
			pairs[i] = C.GoString(p)
		}
	}
	return C.int(capi.Log(int(level), C.GoString(msg), "", 0, "", pairs...))
}

//export plog_trace
func plog_trace(msg *C.char) C.int { return logAt(capi.LevelTrace, msg) }

//export plog_debug
func plog_debug(msg *C.char) C.int { return logAt(capi.LevelDebug, msg) }

//export plog_info
func plog_info(msg *C.char) C.int { return logAt(capi.LevelInfo, msg) }

//export plog_warn
func plog_warn(msg *C.char) C.int { return logAt(capi.LevelWarn, msg) }

//export plog_error
func plog_error(msg *C.char) C.int { return logAt(capi.LevelError, msg) }

//export plog_fatal
func plog_fatal(msg *C.char) C.int { return logAt(capi.LevelFatal, msg) }

//export plog_configure
func plog_configure(doc *C.char) C.int {
	if doc == nil {
		return C.int(capi.StatusInvalidArgument)
	}
	return C.int(capi.Configure([]byte(C.GoString(doc))))
}

//export plog_add_channel
func plog_add_channel(doc *C.char, handle *C.int64_t) C.int {
	if doc == nil || handle == nil {
		return C.int(capi.StatusInvalidArgument)
	}
	h, st := capi.AddChannel([]byte(C.GoString(doc)))
	*handle = C.int64_t(h)
	return C.int(st)
}

//export plog_remove_channel
func plog_remove_channel(handle C.int64_t, timeoutMillis C.int64_t) C.int {
	return C.int(capi.RemoveChannel(capi.Handle(handle), millis(timeoutMillis)))
}

//export plog_flush
func plog_flush(timeoutMillis C.int64_t) C.int {
	return C.int(capi.Flush(millis(timeoutMillis)))
}

//export plog_shutdown
func plog_shutdown(forced C.int, timeoutMillis C.int64_t) C.int {
	return C.int(capi.Shutdown(forced != 0, millis(timeoutMillis)))
}

//export plog_dropped
func plog_dropped() C.uint64_t {
	return C.uint64_t(capi.DroppedWrites())
}

func millis(ms C.int64_t) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
