package xid

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Injection points so tests can reach every fallback branch.
var (
	osHostname = os.Hostname
	osReadFile = os.ReadFile
	randRead   = rand.Read
)

// ============================================================================
// Environment
// ============================================================================

const (
	// EnvMachineID pins the machine id to 6 hexadecimal digits, e.g. "0a1b2c".
	EnvMachineID = "XID_MACHINE_ID"

	// EnvPodName is the K8s pod name (injected through the Downward API).
	EnvPodName = "POD_NAME"

	// EnvHostname is set by most container runtimes.
	EnvHostname = "HOSTNAME"
)

// platformIDFiles are tried in order for a stable host identity.
var platformIDFiles = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
	"/sys/class/dmi/id/product_uuid",
}

// errNoMachineID is returned when no source yields a host identity.
var errNoMachineID = errors.New("xid: no machine id source available")

// ============================================================================
// Machine ID Strategies
// ============================================================================

// MachineIDFunc produces the 3-byte machine id. It is called at most a few
// times per generator, on first use.
type MachineIDFunc func() ([MachineLen]byte, error)

// DefaultMachineID resolves the machine id, trying in order:
//
//  1. XID_MACHINE_ID environment variable (6 hex digits, used verbatim)
//  2. platform id (/etc/machine-id, dbus machine-id, DMI product uuid)
//  3. POD_NAME environment variable
//  4. HOSTNAME environment variable
//  5. os.Hostname()
//
// Strategies 2-5 hash the string with xxhash and keep the top 3 bytes.
// Hashing is best effort: two hosts collide with probability ~n²/2^25. Large
// fleets should pin XID_MACHINE_ID or lease ids (see the lease package).
//
// An error means every source failed; the generator then falls back to
// random bytes.
func DefaultMachineID() ([MachineLen]byte, error) {
	if s := os.Getenv(EnvMachineID); s != "" {
		return ParseMachineID(s)
	}

	if id, ok := machineIDFromPlatform(); ok {
		return id, nil
	}

	for _, env := range []string{EnvPodName, EnvHostname} {
		if v := os.Getenv(env); v != "" {
			return HashMachineID(v), nil
		}
	}

	hostname, err := osHostname()
	if err != nil {
		return [MachineLen]byte{}, fmt.Errorf("%w: hostname: %w", errNoMachineID, err)
	}
	if hostname == "" {
		return [MachineLen]byte{}, fmt.Errorf("%w: empty hostname", errNoMachineID)
	}
	return HashMachineID(hostname), nil
}

// machineIDFromPlatform hashes the first readable, non-empty platform id.
func machineIDFromPlatform() ([MachineLen]byte, bool) {
	for _, path := range platformIDFiles {
		b, err := osReadFile(path)
		if err != nil {
			continue
		}
		b = bytes.TrimSpace(b)
		if len(b) == 0 {
			continue
		}
		return HashMachineID(string(b)), true
	}
	return [MachineLen]byte{}, false
}

// HashMachineID reduces a host identity string to 3 bytes.
//
// The top 24 bits of the 64-bit xxhash are used, so the result is stable
// across processes and platforms.
func HashMachineID(s string) [MachineLen]byte {
	h := xxhash.Sum64String(s)
	return [MachineLen]byte{byte(h >> 56), byte(h >> 48), byte(h >> 40)}
}

// ParseMachineID parses 6 hexadecimal digits into a machine id.
func ParseMachineID(s string) ([MachineLen]byte, error) {
	var id [MachineLen]byte
	s = strings.TrimSpace(s)
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != MachineLen {
		return id, newConfigError("MachineID", s, "not a machine id", "must be 6 hexadecimal digits")
	}
	copy(id[:], b)
	return id, nil
}

// randomMachineID is the last resort when no host identity is available.
// It keeps generation infallible at the cost of a new machine id per process.
func randomMachineID() [MachineLen]byte {
	var id [MachineLen]byte
	if _, err := randRead(id[:]); err != nil {
		// crypto/rand does not fail on supported platforms; mix in the pid
		// so the value is at least per-process.
		pid := osGetpid()
		id = [MachineLen]byte{byte(pid >> 16), byte(pid >> 8), byte(pid)}
	}
	return id
}
