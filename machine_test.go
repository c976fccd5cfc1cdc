package xid

import (
	"errors"
	"hash/crc32"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFiles replaces osReadFile with an in-memory file table for the test.
func stubFiles(t *testing.T, files map[string]string) {
	t.Helper()
	saved := osReadFile
	t.Cleanup(func() { osReadFile = saved })
	osReadFile = func(name string) ([]byte, error) {
		if s, ok := files[name]; ok {
			return []byte(s), nil
		}
		return nil, fs.ErrNotExist
	}
}

func stubHostname(t *testing.T, name string, err error) {
	t.Helper()
	saved := osHostname
	t.Cleanup(func() { osHostname = saved })
	osHostname = func() (string, error) { return name, err }
}

// clearMachineEnv unsets every environment source for the test.
func clearMachineEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvMachineID, "")
	t.Setenv(EnvPodName, "")
	t.Setenv(EnvHostname, "")
}

func TestDefaultMachineIDFromEnv(t *testing.T) {
	clearMachineEnv(t)
	stubFiles(t, map[string]string{"/etc/machine-id": "ignored"})
	t.Setenv(EnvMachineID, "0a1b2c")

	id, err := DefaultMachineID()
	require.NoError(t, err)
	assert.Equal(t, [MachineLen]byte{0x0a, 0x1b, 0x2c}, id)
}

func TestDefaultMachineIDInvalidEnv(t *testing.T) {
	clearMachineEnv(t)
	t.Setenv(EnvMachineID, "not-hex")

	_, err := DefaultMachineID()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDefaultMachineIDFromPlatform(t *testing.T) {
	clearMachineEnv(t)
	t.Setenv(EnvPodName, "pod-7")

	t.Run("machine-id", func(t *testing.T) {
		stubFiles(t, map[string]string{"/etc/machine-id": "4c4c4544004c\n"})
		id, err := DefaultMachineID()
		require.NoError(t, err)
		assert.Equal(t, HashMachineID("4c4c4544004c"), id)
	})

	t.Run("skips empty files", func(t *testing.T) {
		stubFiles(t, map[string]string{
			"/etc/machine-id":                "  \n",
			"/sys/class/dmi/id/product_uuid": "uuid-1",
		})
		id, err := DefaultMachineID()
		require.NoError(t, err)
		assert.Equal(t, HashMachineID("uuid-1"), id)
	})
}

func TestDefaultMachineIDFromPodAndHostname(t *testing.T) {
	clearMachineEnv(t)
	stubFiles(t, nil)
	stubHostname(t, "os-host", nil)

	t.Setenv(EnvHostname, "env-host")
	id, err := DefaultMachineID()
	require.NoError(t, err)
	assert.Equal(t, HashMachineID("env-host"), id)

	t.Setenv(EnvPodName, "api-5d8c7-xk2p9")
	id, err = DefaultMachineID()
	require.NoError(t, err)
	assert.Equal(t, HashMachineID("api-5d8c7-xk2p9"), id, "pod name wins over hostname")

	clearMachineEnv(t)
	id, err = DefaultMachineID()
	require.NoError(t, err)
	assert.Equal(t, HashMachineID("os-host"), id)
}

func TestDefaultMachineIDNoSource(t *testing.T) {
	clearMachineEnv(t)
	stubFiles(t, nil)

	t.Run("hostname error", func(t *testing.T) {
		boom := errors.New("boom")
		stubHostname(t, "", boom)
		_, err := DefaultMachineID()
		assert.ErrorIs(t, err, errNoMachineID)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty hostname", func(t *testing.T) {
		stubHostname(t, "", nil)
		_, err := DefaultMachineID()
		assert.ErrorIs(t, err, errNoMachineID)
	})
}

func TestHashMachineID(t *testing.T) {
	a := HashMachineID("host-a")
	assert.Equal(t, a, HashMachineID("host-a"))
	assert.NotEqual(t, a, HashMachineID("host-b"))
	assert.NotEqual(t, [MachineLen]byte{}, HashMachineID(""))
}

func TestParseMachineID(t *testing.T) {
	id, err := ParseMachineID(" 0A1b2C ")
	require.NoError(t, err)
	assert.Equal(t, [MachineLen]byte{0x0a, 0x1b, 0x2c}, id)

	for _, s := range []string{"", "0a1b", "0a1b2c3d", "0a1b2g"} {
		_, err := ParseMachineID(s)
		cfgErr, ok := GetConfigError(err)
		require.True(t, ok, s)
		assert.Equal(t, "MachineID", cfgErr.Field)
		assert.Equal(t, "must be 6 hexadecimal digits", cfgErr.Constraint)
	}
}

func TestRandomMachineIDFallback(t *testing.T) {
	saved := randRead
	t.Cleanup(func() { randRead = saved })
	randRead = func([]byte) (int, error) { return 0, errors.New("no entropy") }

	pid := osGetpid()
	want := [MachineLen]byte{byte(pid >> 16), byte(pid >> 8), byte(pid)}
	assert.Equal(t, want, randomMachineID())
}

// ============================================================================
// Process ID
// ============================================================================

func TestDefaultProcessID(t *testing.T) {
	saved := osGetpid
	t.Cleanup(func() { osGetpid = saved })
	osGetpid = func() int { return 0x12345 }

	t.Run("no cgroup file", func(t *testing.T) {
		stubFiles(t, nil)
		assert.Equal(t, uint16(0x2345), DefaultProcessID())
	})

	t.Run("root cgroup", func(t *testing.T) {
		stubFiles(t, map[string]string{cgroupFile: "/\n"})
		assert.Equal(t, uint16(0x2345), DefaultProcessID())
	})

	t.Run("container cgroup", func(t *testing.T) {
		const cg = "/docker/3f4e5d"
		stubFiles(t, map[string]string{cgroupFile: cg + "\n"})
		want := uint16(0x12345 ^ crc32.ChecksumIEEE([]byte(cg)))
		assert.Equal(t, want, DefaultProcessID())
	})
}
