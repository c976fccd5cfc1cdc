package xid

import (
	"bytes"
	"hash/crc32"
	"os"
)

var osGetpid = os.Getpid

// cgroupFile names the cgroup of the current process on Linux.
const cgroupFile = "/proc/self/cpuset"

// ProcessIDFunc produces the 16-bit process id. It is called once, when the
// generator is constructed.
type ProcessIDFunc func() uint16

// DefaultProcessID returns os.Getpid() truncated to 16 bits.
//
// Inside a container most processes are pid 1, so when the process runs in a
// non-root cgroup the pid is XORed with a CRC32 of the cgroup path. This
// keeps two containers on one host from sharing a process id. Outside Linux,
// or when the file cannot be read, the plain pid is used.
func DefaultProcessID() uint16 {
	pid := uint32(osGetpid())
	if b, err := osReadFile(cgroupFile); err == nil {
		if cg := bytes.TrimSpace(b); len(cg) > 1 {
			pid ^= crc32.ChecksumIEEE(cg)
		}
	}
	return uint16(pid)
}
