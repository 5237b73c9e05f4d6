//go:build android

package androidlog

/*
#cgo LDFLAGS: -llog
#include <android/log.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type logcatSink struct{}

// DefaultSink returns the liblog-backed sink.
func DefaultSink() Sink { return logcatSink{} }

func (logcatSink) Write(prio Priority, tag, msg string) error {
	ctag := C.CString(tag)
	defer C.free(unsafe.Pointer(ctag))
	cmsg := C.CString(msg)
	defer C.free(unsafe.Pointer(cmsg))

	if ret := C.__android_log_write(C.int(prio), ctag, cmsg); ret < 0 {
		return fmt.Errorf("__android_log_write failed: %d", int(ret))
	}
	return nil
}
