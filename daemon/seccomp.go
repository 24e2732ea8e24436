package daemon

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Classic BPF instruction encoding (linux/filter.h / linux/bpf_common.h).
const (
	bpfLd  = 0x00
	bpfJmp = 0x05
	bpfRet = 0x06
	bpfW   = 0x00
	bpfAbs = 0x20
	bpfJeq = 0x10
	bpfK   = 0x00
)

const (
	seccompRetKillProcess = 0x80000000
	seccompRetAllow       = 0x7fff0000
	seccompModeFilter     = 2

	auditArchX86_64 = 0xc000003e

	seccompOffsetNR   = 0
	seccompOffsetArch = 4
)

// sockFilter mirrors struct sock_filter.
type sockFilter struct {
	code uint16
	jt   uint8
	jf   uint8
	k    uint32
}

// sockFprog mirrors struct sock_fprog; Go's own alignment rules give the
// pointer field the same 6 bytes of padding the C struct has on amd64.
type sockFprog struct {
	len    uint16
	filter *sockFilter
}

func bpfStmt(code uint16, k uint32) sockFilter { return sockFilter{code: code, k: k} }

func bpfJump(code uint16, k uint32, jt, jf uint8) sockFilter {
	return sockFilter{code: code, jt: jt, jf: jf, k: k}
}

// allowedSyscalls are the x86_64 syscall numbers (asm/unistd_64.h) the
// steady-state loop and the curl child need: core I/O, memory, time,
// ioctl (DRM gamma + inotify), process spawn/reap for the weather fetcher,
// signals, file ops for the config directory, process info, exit, the
// event/notify fds the loop itself creates, and socket I/O for the
// X11/Wayland/D-Bus backends and the curl child's own networking.
var allowedSyscalls = []uint32{
	0, 1, 3, 5, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 20, 21, 24, 25, 28,
	33, 35, 39, 41, 42, 44, 45, 46, 47, 48, 49, 51, 52, 54, 55, 56, 59, 60,
	61, 62, 63, 72, 79, 83, 87, 89, 96, 102, 104, 107, 108, 131, 157, 158,
	202, 204, 217, 218, 228, 230, 231, 232, 233, 254, 257, 258, 262, 263,
	267, 271, 273, 281, 283, 286, 289, 290, 291, 292, 293, 294, 299, 302, 307, 318,
	332, 334, 425, 426, 427, 435, 439,
}

// installSeccompFilter installs the syscall allow-list via prctl's classic
// BPF path (no libseccomp): verify the architecture, then allow exactly
// allowedSyscalls, killing the process on anything else. Like the Landlock
// sandbox, failure here (old kernel, CONFIG_SECCOMP off) is a logged
// warning, not a fatal error -- both are defense-in-depth layers applied
// after the gamma backend, signalfd and inotify fds are open. The epoll
// instance and the tick timerfd are created afterwards by runEventLoop, so
// epoll_create1, timerfd_create and timerfd_settime are on the allow-list.
func installSeccompFilter() bool {
	prog := make([]sockFilter, 0, 4+2*len(allowedSyscalls)+1)
	prog = append(prog,
		bpfStmt(bpfLd|bpfW|bpfAbs, seccompOffsetArch),
		bpfJump(bpfJmp|bpfJeq|bpfK, auditArchX86_64, 1, 0),
		bpfStmt(bpfRet|bpfK, seccompRetKillProcess),
		bpfStmt(bpfLd|bpfW|bpfAbs, seccompOffsetNR),
	)
	for _, nr := range allowedSyscalls {
		prog = append(prog,
			bpfJump(bpfJmp|bpfJeq|bpfK, nr, 0, 1),
			bpfStmt(bpfRet|bpfK, seccompRetAllow),
		)
	}
	prog = append(prog, bpfStmt(bpfRet|bpfK, seccompRetKillProcess))

	fprog := sockFprog{
		len:    uint16(len(prog)),
		filter: &prog[0],
	}
	err := unix.Prctl(unix.PR_SET_SECCOMP, uintptr(seccompModeFilter), uintptr(unsafe.Pointer(&fprog)), 0, 0)
	return err == nil
}
