package daemon

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Landlock syscall numbers (x86_64). Not yet exposed by golang.org/x/sys/unix,
// so they're declared the same way drm.go declares DRM ioctl numbers: as raw
// constants straight from the kernel ABI rather than a cgo binding.
const (
	sysLandlockCreateRuleset = 444
	sysLandlockAddRule       = 445
	sysLandlockRestrictSelf  = 446

	landlockCreateRulesetVersion = 1 << 0
	landlockRuleTypePathBeneath  = 1

	accessFSExecute    = 1 << 0
	accessFSWriteFile  = 1 << 1
	accessFSReadFile   = 1 << 2
	accessFSReadDir    = 1 << 3
	accessFSRemoveFile = 1 << 5
	accessFSMakeDir    = 1 << 7
	accessFSMakeReg    = 1 << 8
)

type landlockRulesetAttr struct {
	handledAccessFS  uint64
	handledAccessNet uint64
}

// landlock_path_beneath_attr is a packed 12-byte kernel struct (u64 + s32,
// no trailing padding). Go's own alignment rules give this type 4 bytes of
// trailing padding to round up to 16, but landlock_add_rule only ever reads
// the first 12 bytes from the pointer we hand it, so the extra bytes are
// never inspected.
type landlockPathBeneathAttr struct {
	allowedAccess uint64
	parentFD      int32
}

// installLandlockSandbox restricts the process's filesystem view to exactly
// what the steady-state loop needs: full read/write/create/remove under
// configDir, read-only on /dev, /proc, /usr, /etc, /lib and /lib64, execute
// on /usr for the weather fetcher child, and read/write/create-file on /tmp. Returns false (never fatal) on kernels predating 5.13 or
// with Landlock disabled at build time.
func installLandlockSandbox(configDir string) bool {
	abi, _, errno := unix.Syscall(sysLandlockCreateRuleset, 0, 0, landlockCreateRulesetVersion)
	if errno != 0 || int(abi) < 1 {
		return false
	}

	attr := landlockRulesetAttr{
		handledAccessFS: accessFSReadFile | accessFSReadDir | accessFSWriteFile |
			accessFSRemoveFile | accessFSMakeReg | accessFSMakeDir | accessFSExecute,
	}
	rulesetFD, _, errno := unix.Syscall(sysLandlockCreateRuleset,
		uintptr(unsafe.Pointer(&attr)), unsafe.Sizeof(attr), 0)
	if errno != 0 {
		return false
	}
	fd := int(rulesetFD)
	defer unix.Close(fd)

	readOnly := uint64(accessFSReadFile | accessFSReadDir)
	configAccess := uint64(accessFSReadFile | accessFSReadDir | accessFSWriteFile |
		accessFSRemoveFile | accessFSMakeReg | accessFSMakeDir)

	addLandlockPathRule(fd, configDir, configAccess)
	addLandlockPathRule(fd, "/dev", readOnly)
	addLandlockPathRule(fd, "/proc", readOnly)
	addLandlockPathRule(fd, "/usr", readOnly|accessFSExecute)
	addLandlockPathRule(fd, "/etc", readOnly)
	addLandlockPathRule(fd, "/lib", readOnly)
	addLandlockPathRule(fd, "/lib64", readOnly)
	addLandlockPathRule(fd, "/tmp", accessFSReadFile|accessFSWriteFile|accessFSMakeReg)

	_, _, errno = unix.Syscall(sysLandlockRestrictSelf, uintptr(fd), 0, 0)
	return errno == 0
}

func addLandlockPathRule(rulesetFD int, path string, access uint64) bool {
	pathFD, err := unix.Open(path, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return false
	}
	defer unix.Close(pathFD)

	rule := landlockPathBeneathAttr{
		allowedAccess: access,
		parentFD:      int32(pathFD),
	}
	_, _, errno := unix.Syscall6(sysLandlockAddRule,
		uintptr(rulesetFD), landlockRuleTypePathBeneath,
		uintptr(unsafe.Pointer(&rule)), 0, 0, 0)
	return errno == 0
}
