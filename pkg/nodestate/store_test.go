package nodestate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterfleet/midplane/pkg/types"
)

func strptr(s string) *string { return &s }

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), ".clustered_services"), zerolog.Nop())
}

func TestLoadMissingFile(t *testing.T) {
	s := testStore(t)

	obs, err := s.Load(0)
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := testStore(t)

	obs := map[string]types.ServiceObservation{
		"cifs": {Running: true, LastCheck: 1700000000.25},
		"nfs":  {Running: false, LastCheck: 1700000000.25, Error: strptr("port in use")},
	}
	require.NoError(t, s.Save(2, obs))

	loaded, err := s.Load(2)
	require.NoError(t, err)
	assert.Equal(t, obs, loaded)
}

func TestSaveRewritesFully(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.Save(1, map[string]types.ServiceObservation{
		"cifs": {Running: true, LastCheck: 1},
		"nfs":  {Running: true, LastCheck: 1},
	}))
	require.NoError(t, s.Save(1, map[string]types.ServiceObservation{
		"cifs": {Running: false, LastCheck: 2},
	}))

	loaded, err := s.Load(1)
	require.NoError(t, err)
	assert.NotContains(t, loaded, "nfs")
	assert.False(t, loaded["cifs"].Running)
}

func TestLoadCorruptFile(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.WriteFile(s.Path(3), []byte("{corrupt"), 0o644))

	obs, err := s.Load(3)
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestNodesGetDistinctFiles(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.Save(0, map[string]types.ServiceObservation{"cifs": {Running: true}}))
	require.NoError(t, s.Save(1, map[string]types.ServiceObservation{"cifs": {Running: false}}))

	obs0, err := s.Load(0)
	require.NoError(t, err)
	obs1, err := s.Load(1)
	require.NoError(t, err)

	assert.True(t, obs0["cifs"].Running)
	assert.False(t, obs1["cifs"].Running)
}
