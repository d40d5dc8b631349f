// Package storagenode is a thin, stateful client for a single storage
// node speaking the bulk file-transfer protocol (FTP). It is modeled
// on backend/ftp/ftp.go's dial/login/command shape, but scoped to one
// remote session per call rather than pooled, per the coordinator's
// resource model.
package storagenode

import (
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// SizeUnknown is returned by GetFileSize when the size could not be
// determined.
const SizeUnknown int64 = -1

// Config describes how to reach and authenticate against one storage
// node.
type Config struct {
	Host        string
	Port        int
	User        string
	Pass        string
	StorageRoot string // defaults to "/"
	DialTimeout time.Duration
}

// Client is a handle to a storage node's configuration. It holds no
// live connection between calls.
type Client struct {
	cfg Config
}

// New returns a Client for the given configuration, applying the
// StorageRoot default.
func New(cfg Config) *Client {
	if cfg.StorageRoot == "" {
		cfg.StorageRoot = "/"
	}
	if cfg.Port == 0 {
		cfg.Port = 21
	}
	return &Client{cfg: cfg}
}

// Host returns the node's hostname/IP, as stored in a file's replica
// set.
func (c *Client) Host() string { return c.cfg.Host }

func (c *Client) dial() (*ftp.ServerConn, error) {
	addr := c.cfg.Host + ":" + strconv.Itoa(c.cfg.Port)
	opts := []ftp.DialOption{}
	if c.cfg.DialTimeout > 0 {
		opts = append(opts, ftp.DialWithTimeout(c.cfg.DialTimeout))
	}
	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, transportErr(c.cfg.Host, "dial", err)
	}
	if err := conn.Login(c.cfg.User, c.cfg.Pass); err != nil {
		_ = conn.Quit()
		return nil, transportErr(c.cfg.Host, "login", err)
	}
	return conn, nil
}

// ftpChanger is the subset of *ftp.ServerConn changeDir needs, narrowed
// to an interface so the commands built on it (ReadDir in particular)
// can be exercised against a fake NLST/CWD flow in tests.
type ftpChanger interface {
	ChangeDir(path string) error
}

// ftpLister is the subset of *ftp.ServerConn ReadDir needs.
type ftpLister interface {
	ftpChanger
	NameList(path string) ([]string, error)
}

func (c *Client) changeDir(conn ftpChanger, dir string) error {
	trimmed := strings.TrimPrefix(dir, "/")
	target := path.Join(c.cfg.StorageRoot, trimmed)
	if err := conn.ChangeDir(target); err != nil {
		return transportErr(c.cfg.Host, "cwd "+target, err)
	}
	return nil
}

// CreateFile uploads a zero-length file at path/filename.
func (c *Client) CreateFile(dirPath, filename string) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Quit()
	if err := c.changeDir(conn, dirPath); err != nil {
		return err
	}
	if err := conn.Stor(filename, strings.NewReader("")); err != nil {
		return transportErr(c.cfg.Host, "stor "+filename, err)
	}
	return nil
}

// ReadFile downloads path/filename's contents into sink.
func (c *Client) ReadFile(dirPath, filename string, sink io.Writer) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Quit()
	if err := c.changeDir(conn, dirPath); err != nil {
		return err
	}
	resp, err := conn.Retr(filename)
	if err != nil {
		return transportErr(c.cfg.Host, "retr "+filename, err)
	}
	defer resp.Close()
	if _, err := io.Copy(sink, resp); err != nil {
		return transportErr(c.cfg.Host, "retr "+filename, err)
	}
	return nil
}

// WriteFile uploads the full contents of source as path/filename.
func (c *Client) WriteFile(dirPath, filename string, source io.Reader) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Quit()
	if err := c.changeDir(conn, dirPath); err != nil {
		return err
	}
	if err := conn.Stor(filename, source); err != nil {
		return transportErr(c.cfg.Host, "stor "+filename, err)
	}
	return nil
}

// DeleteFile removes path/filename.
func (c *Client) DeleteFile(dirPath, filename string) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Quit()
	if err := c.changeDir(conn, dirPath); err != nil {
		return err
	}
	if err := conn.Delete(filename); err != nil {
		return transportErr(c.cfg.Host, "dele "+filename, err)
	}
	return nil
}

// GetFileSize returns the byte size of path/filename, or SizeUnknown
// on failure.
func (c *Client) GetFileSize(dirPath, filename string) (int64, error) {
	conn, err := c.dial()
	if err != nil {
		return SizeUnknown, err
	}
	defer conn.Quit()
	if err := c.changeDir(conn, dirPath); err != nil {
		return SizeUnknown, err
	}
	size, err := conn.FileSize(filename)
	if err != nil {
		return SizeUnknown, transportErr(c.cfg.Host, "size "+filename, err)
	}
	return size, nil
}

// CopyFile emulates a server-side copy client-side: download to a
// pipe, upload to the destination. The bulk protocol has no atomic
// copy command.
func (c *Client) CopyFile(dirPath, filename, newDirPath, newFilename string) error {
	if newFilename == "" {
		newFilename = filename
	}
	pr, pw := io.Pipe()
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.ReadFile(dirPath, filename, pw)
		pw.Close()
	}()
	if err := c.WriteFile(newDirPath, newFilename, pr); err != nil {
		<-errCh
		return err
	}
	return <-errCh
}

// MoveFile copies then deletes the source.
func (c *Client) MoveFile(dirPath, filename, newDirPath, newFilename string) error {
	if err := c.CopyFile(dirPath, filename, newDirPath, newFilename); err != nil {
		return err
	}
	return c.DeleteFile(dirPath, filename)
}

// MakeDir creates an empty directory at path/dirname.
func (c *Client) MakeDir(dirPath, dirname string) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Quit()
	if err := c.changeDir(conn, dirPath); err != nil {
		return err
	}
	if err := conn.MakeDir(dirname); err != nil {
		return transportErr(c.cfg.Host, "mkd "+dirname, err)
	}
	return nil
}

// ReadDir lists the names of path's immediate children.
func (c *Client) ReadDir(dirPath string) ([]string, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Quit()
	return c.readDir(conn, dirPath)
}

func (c *Client) readDir(conn ftpLister, dirPath string) ([]string, error) {
	if err := c.changeDir(conn, dirPath); err != nil {
		return nil, err
	}
	names, err := conn.NameList("")
	if err != nil {
		return nil, transportErr(c.cfg.Host, "nlst", err)
	}
	return names, nil
}

// DeleteDir recursively removes dirname under path. It distinguishes
// files from directories by attempting to cd into each child name —
// the bulk protocol offers no type query — and deletes post-order so
// a directory is never removed while non-empty.
func (c *Client) DeleteDir(dirPath, dirname string) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Quit()
	return c.deleteDirAt(conn, joinRemote(dirPath, dirname))
}

func (c *Client) deleteDirAt(conn *ftp.ServerConn, target string) error {
	full := path.Join(c.cfg.StorageRoot, strings.TrimPrefix(target, "/"))
	names, err := conn.NameList(full)
	if err != nil {
		return transportErr(c.cfg.Host, "nlst "+full, err)
	}
	for _, name := range names {
		childRemote := joinRemote(target, baseName(name))
		childFull := path.Join(c.cfg.StorageRoot, strings.TrimPrefix(childRemote, "/"))
		if err := conn.ChangeDir(childFull); err == nil {
			if err := c.deleteDirAt(conn, childRemote); err != nil {
				return err
			}
			continue
		}
		if err := conn.Delete(childFull); err != nil {
			return transportErr(c.cfg.Host, "dele "+childFull, err)
		}
	}
	if err := conn.RemoveDir(full); err != nil {
		return transportErr(c.cfg.Host, "rmd "+full, err)
	}
	return nil
}

// Clear recursively removes every child of the storage root.
func (c *Client) Clear() error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Quit()
	names, err := conn.NameList(c.cfg.StorageRoot)
	if err != nil {
		return transportErr(c.cfg.Host, "nlst "+c.cfg.StorageRoot, err)
	}
	for _, name := range names {
		childFull := path.Join(c.cfg.StorageRoot, baseName(name))
		if err := conn.ChangeDir(childFull); err == nil {
			if err := c.deleteDirAt(conn, "/"+baseName(name)); err != nil {
				return err
			}
			continue
		}
		if err := conn.Delete(childFull); err != nil {
			return transportErr(c.cfg.Host, "dele "+childFull, err)
		}
	}
	return nil
}

func joinRemote(dirPath, name string) string {
	trimmed := strings.Trim(dirPath, "/")
	if trimmed == "" {
		return name
	}
	return trimmed + "/" + name
}

func baseName(name string) string {
	return path.Base(name)
}
