package linuxprocess

import "golang.org/x/sys/unix"

func hasCapability(capability int) bool {
	header := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3, Pid: 0}
	var data [2]unix.CapUserData
	if err := unix.Capget(&header, &data[0]); err != nil {
		return false
	}
	return data[capability/32].Effective&(1<<(capability%32)) != 0
}

// rlimitExempt mirrors kernel fork check: root user and processes with
// CAP_SYS_RESOURCE or CAP_SYS_ADMIN may exceed RLIMIT_NPROC.
func rlimitExempt() bool {
	return unix.Getuid() == 0 ||
		hasCapability(unix.CAP_SYS_RESOURCE) ||
		hasCapability(unix.CAP_SYS_ADMIN)
}
