//go:build unix

package supervisor

import "syscall"

// procAttrNewGroup puts the child in its own process group so Stop can
// signal the whole group (the child plus anything it forked) rather than
// just the direct child pid.
func procAttrNewGroup() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
