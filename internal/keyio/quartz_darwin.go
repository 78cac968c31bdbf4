//go:build darwin

package keyio

/*
#cgo LDFLAGS: -framework ApplicationServices
#include <ApplicationServices/ApplicationServices.h>

int
post_key(int code, int down)
{
	CGEventRef ev = CGEventCreateKeyboardEvent(NULL, (CGKeyCode)code, down != 0);
	if (!ev)
	{ return -1; }

	CGEventPost(kCGHIDEventTap, ev);
	CFRelease(ev);

	return 0;
}
*/
import "C"

import "fmt"

// Quartz posts keyboard events through the CoreGraphics HID event tap.
type Quartz struct{}

// NewEmitter returns the platform key-event emitter.
func NewEmitter() (Emitter, error) {
	return &Quartz{}, nil
}

func (q *Quartz) Emit(code int, down bool) error {
	d := C.int(0)
	if down {
		d = 1
	}
	if rc := C.post_key(C.int(code), d); rc != 0 {
		return fmt.Errorf("post key %d: rc=%d", code, int(rc))
	}
	return nil
}
