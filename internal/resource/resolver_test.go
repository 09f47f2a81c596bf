// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCgroupReader is a mock implementation of cgroupReader
type MockCgroupReader struct {
	mock.Mock
	root string
}

func (m *MockCgroupReader) Root() string { return m.root }

func (m *MockCgroupReader) CgroupPaths(id int) ([]string, error) {
	args := m.Called(id)
	return args.Get(0).([]string), args.Error(1)
}

var errExited = errors.New("no such file or directory")

func writeCgroup(t *testing.T, root string, id int, content string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(id))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cgroup"), []byte(content), 0o644))
}

func TestCgroupResolverFromProcFS(t *testing.T) {
	host := t.TempDir()
	local := t.TempDir()
	writeCgroup(t, host, 100, "0::/system.slice/docker-"+containerID+".scope\n")
	writeCgroup(t, local, 200, "12:cpu:/docker/"+containerID2+"\n")
	writeCgroup(t, local, 300, "0::/user.slice\n")

	r, err := NewCgroupResolver(WithProcFSRoots(host, local))
	require.NoError(t, err)

	assert.Equal(t, containerID, r.CgroupID(100, 100))
	assert.Equal(t, containerID2, r.CgroupID(200, 200))
	assert.Empty(t, r.CgroupID(300, 300))

	// exited thread falls back to its thread group
	assert.Equal(t, containerID, r.CgroupID(101, 100))
	assert.Empty(t, r.CgroupID(999, 999))
}

func TestCgroupResolverSkipsMissingRoots(t *testing.T) {
	local := t.TempDir()
	writeCgroup(t, local, 1, "0::/docker/"+containerID+"\n")

	r, err := NewCgroupResolver(WithProcFSRoots(filepath.Join(local, "missing"), local))
	require.NoError(t, err)
	assert.Equal(t, containerID, r.CgroupID(1, 1))

	_, err = NewCgroupResolver(WithProcFSRoots(filepath.Join(local, "missing")))
	assert.ErrorIs(t, err, errNoProcFS)
}

func TestCgroupResolverRootOrder(t *testing.T) {
	host := &MockCgroupReader{root: "/host/proc"}
	local := &MockCgroupReader{root: "/proc"}
	host.On("CgroupPaths", 42).Return([]string{"/system.slice/docker-" + containerID2 + ".scope"}, nil)
	local.On("CgroupPaths", 42).Return([]string{"/docker/" + containerID}, nil)

	r, err := NewCgroupResolver(withCgroupReaders(host, local))
	require.NoError(t, err)

	// bare ids are searched in every root before systemd scopes
	assert.Equal(t, containerID, r.CgroupID(42, 42))
	host.AssertExpectations(t)
	local.AssertExpectations(t)
}

func TestCgroupResolverLookupOrder(t *testing.T) {
	host := &MockCgroupReader{root: "/host/proc"}
	host.On("CgroupPaths", 7).Return([]string(nil), errExited).Once()
	host.On("CgroupPaths", 5).Return([]string{"/docker/" + containerID}, nil).Once()

	r, err := NewCgroupResolver(withCgroupReaders(host))
	require.NoError(t, err)

	assert.Equal(t, containerID, r.CgroupID(7, 5))
	host.AssertExpectations(t)

	// negative ids never reach the filesystem
	assert.Empty(t, r.CgroupID(-3, -3))
	host.AssertNumberOfCalls(t, "CgroupPaths", 2)
}
