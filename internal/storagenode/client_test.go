package storagenode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAppliesDefaults(t *testing.T) {
	c := New(Config{Host: "10.0.0.5"})
	assert.Equal(t, "/", c.cfg.StorageRoot)
	assert.Equal(t, 21, c.cfg.Port)
	assert.Equal(t, "10.0.0.5", c.Host())
}

func TestNewKeepsExplicitValues(t *testing.T) {
	c := New(Config{Host: "10.0.0.5", Port: 2121, StorageRoot: "/data"})
	assert.Equal(t, "/data", c.cfg.StorageRoot)
	assert.Equal(t, 2121, c.cfg.Port)
}

func TestJoinRemote(t *testing.T) {
	assert.Equal(t, "a", joinRemote("", "a"))
	assert.Equal(t, "a", joinRemote("/", "a"))
	assert.Equal(t, "dir1/a", joinRemote("dir1", "a"))
	assert.Equal(t, "dir1/a", joinRemote("/dir1/", "a"))
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "file.txt", baseName("file.txt"))
	assert.Equal(t, "file.txt", baseName("/remote/root/dir1/file.txt"))
}

func TestTransportErrWrapsAndUnwraps(t *testing.T) {
	underlying := errors.New("connection refused")
	err := transportErr("10.0.0.5", "dial", underlying)

	var te *TransportError
	requireAs(t, err, &te)
	assert.Equal(t, "10.0.0.5", te.Host)
	assert.Equal(t, "dial", te.Op)
	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "10.0.0.5")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestTransportErrNilIsNil(t *testing.T) {
	assert.NoError(t, transportErr("host", "op", nil))
}

func requireAs(t *testing.T, err error, target **TransportError) {
	t.Helper()
	if !errors.As(err, target) {
		t.Fatalf("expected *TransportError, got %T", err)
	}
}

// fakeNLSTConn is a scripted ftpLister: it records the path ChangeDir
// was called with and replays a canned NLST response, standing in for
// a live storage node's CWD/NLST round trip.
type fakeNLSTConn struct {
	cwd     string
	names   []string
	cwdErr  error
	nlstErr error
}

func (f *fakeNLSTConn) ChangeDir(path string) error {
	if f.cwdErr != nil {
		return f.cwdErr
	}
	f.cwd = path
	return nil
}

func (f *fakeNLSTConn) NameList(string) ([]string, error) {
	if f.nlstErr != nil {
		return nil, f.nlstErr
	}
	return f.names, nil
}

func TestReadDirChangesDirThenListsNames(t *testing.T) {
	c := New(Config{Host: "10.0.0.5", StorageRoot: "/data"})
	conn := &fakeNLSTConn{names: []string{"a", "b.txt"}}

	names, err := c.readDir(conn, "dir1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b.txt"}, names)
	assert.Equal(t, "/data/dir1", conn.cwd)
}

func TestReadDirPropagatesChangeDirFailure(t *testing.T) {
	c := New(Config{Host: "10.0.0.5"})
	conn := &fakeNLSTConn{cwdErr: errors.New("no such directory")}

	_, err := c.readDir(conn, "missing")
	var te *TransportError
	requireAs(t, err, &te)
}

func TestReadDirWrapsNameListFailureAsTransportError(t *testing.T) {
	c := New(Config{Host: "10.0.0.5"})
	conn := &fakeNLSTConn{nlstErr: errors.New("connection reset")}

	_, err := c.readDir(conn, "")
	var te *TransportError
	requireAs(t, err, &te)
	assert.Equal(t, "nlst", te.Op)
}
