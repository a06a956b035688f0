//go:build windows

package process

import "syscall"

var (
	kernel32             = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess      = kernel32.NewProc("OpenProcess")
	procTerminateProcess = kernel32.NewProc("TerminateProcess")
	procCloseHandle      = kernel32.NewProc("CloseHandle")
)

const (
	processTerminate        = 0x0001
	processQueryInformation = 0x0400
)

// killProcess approximates Unix signaling on Windows: signal 0 checks
// existence, anything else terminates the process.
func killProcess(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return nil
	}
	if sig == 0 {
		return checkProcessExists(pid)
	}
	handle, err := openProcess(processTerminate, pid)
	if err != nil {
		// Unopenable almost always means already gone; treat as terminated.
		return nil
	}
	defer closeHandle(handle)
	ret, _, callErr := procTerminateProcess.Call(uintptr(handle), uintptr(1))
	if ret == 0 {
		return callErr
	}
	return nil
}

// killGroup has no process-group semantics on Windows; it falls back to the
// single process.
func killGroup(pid int, sig syscall.Signal) error {
	if pid < 0 {
		pid = -pid
	}
	return killProcess(pid, sig)
}

func checkProcessExists(pid int) error {
	handle, err := openProcess(processQueryInformation, pid)
	if err != nil {
		return err
	}
	defer closeHandle(handle)
	return nil
}

func openProcess(access uint32, pid int) (syscall.Handle, error) {
	ret, _, err := procOpenProcess.Call(uintptr(access), 0, uintptr(uint32(pid)))
	if ret == 0 {
		return 0, err
	}
	return syscall.Handle(ret), nil
}

func closeHandle(handle syscall.Handle) {
	_, _, _ = procCloseHandle.Call(uintptr(handle))
}
