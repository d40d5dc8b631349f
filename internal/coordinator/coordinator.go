// Package coordinator glues the directory tree, the node registry,
// and per-node storage clients together: placement, fan-out writes,
// fallback reads, and directory-wide broadcast. It is grounded on the
// dispatch style of backend/union/union.go, adapted from choosing
// among upstream remotes to choosing among storage-node replicas.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/TymurLysenkoIU/ds-project2-name-server/internal/storagenode"
	"github.com/TymurLysenkoIU/ds-project2-name-server/internal/tree"
	"github.com/rs/zerolog"
)

// NodeRegistry is the subset of *registry.Registry the coordinator
// depends on, narrowed to an interface so placement and bootstrap
// logic can be tested without live HTTP health endpoints.
type NodeRegistry interface {
	Add(host string) bool
	Snapshot() []string
	AvailableServers(ctx context.Context) []string
	RequestSpaceAvailable(ctx context.Context, host string) int64
}

// ErrNoServersAvailable is returned by placement when no storage node
// is currently live.
var ErrNoServersAvailable = errors.New("no storage servers available")

// maxReplicas caps how many nodes a single file is placed on.
const maxReplicas = 2

// ByteSource is a rewindable readable byte stream, satisfied by a
// caller-owned temp file. It replaces the duck-typed read/seek object
// the original command parser accepted.
type ByteSource interface {
	io.Reader
	Rewind() error
}

// ByteSink is a rewindable writable byte stream.
type ByteSink interface {
	io.Writer
	Rewind() error
}

// ClientFactory builds a storage-node client for a host. Production
// code supplies storagenode.New wrapped with shared credentials;
// tests supply a fake.
type ClientFactory func(host string) StorageClient

// StorageClient is the subset of *storagenode.Client the coordinator
// drives, narrowed to an interface so fan-out/fallback logic can be
// tested without a live FTP server.
type StorageClient interface {
	CreateFile(path, filename string) error
	ReadFile(path, filename string, sink io.Writer) error
	WriteFile(path, filename string, source io.Reader) error
	DeleteFile(path, filename string) error
	GetFileSize(path, filename string) (int64, error)
	CopyFile(path, filename, newPath, newFilename string) error
	MoveFile(path, filename, newPath, newFilename string) error
	MakeDir(path, dirname string) error
	DeleteDir(path, dirname string) error
	Clear() error
}

// Coordinator is the single in-process owner of the directory tree
// and node registry, constructed once in main and passed explicitly
// to request handlers rather than reached through a package-level
// singleton.
type Coordinator struct {
	tree      *tree.Tree
	registry  NodeRegistry
	newClient ClientFactory
	log       zerolog.Logger
}

// New builds a Coordinator over the given tree, registry, and client
// factory.
func New(t *tree.Tree, reg NodeRegistry, factory ClientFactory, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		tree:      t,
		registry:  reg,
		newClient: factory,
		log:       log,
	}
}

func storagenodeFactory(cfg func(host string) storagenode.Config) ClientFactory {
	return func(host string) StorageClient {
		return storagenode.New(cfg(host))
	}
}

// NewWithStoragenodeConfig is a convenience constructor wiring a real
// storagenode.Client per host, parameterized by a per-host config
// builder (host, port, and shared FTP credentials are applied there).
func NewWithStoragenodeConfig(t *tree.Tree, reg NodeRegistry, cfg func(host string) storagenode.Config, log zerolog.Logger) *Coordinator {
	return New(t, reg, storagenodeFactory(cfg), log)
}

func (c *Coordinator) clientsFor(hosts []string) []StorageClient {
	clients := make([]StorageClient, len(hosts))
	for i, h := range hosts {
		clients[i] = c.newClient(h)
	}
	return clients
}

// chooseStorageServers implements the placement policy: zero live
// nodes fails NoServersAvailable, more than two picks two uniformly
// at random without replacement, otherwise every live node is used.
func (c *Coordinator) chooseStorageServers(ctx context.Context) ([]string, error) {
	live := c.registry.AvailableServers(ctx)
	if len(live) == 0 {
		return nil, ErrNoServersAvailable
	}
	if len(live) <= maxReplicas {
		return live, nil
	}
	picked := make([]string, len(live))
	copy(picked, live)
	rand.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	return picked[:maxReplicas], nil
}

func (c *Coordinator) logFailure(op, host string, err error) {
	if err == nil {
		return
	}
	c.log.Error().Err(err).Str("op", op).Str("host", host).Msg("storage node operation failed")
}

// CreateFile chooses a replica set, commits metadata, then fans out a
// zero-length file creation to each chosen node.
func (c *Coordinator) CreateFile(ctx context.Context, path, filename string) error {
	servers, err := c.chooseStorageServers(ctx)
	if err != nil {
		return err
	}
	if err := c.tree.CreateFile(ctx, path, filename, servers); err != nil {
		return err
	}
	for _, client := range c.clientsFor(servers) {
		if err := client.CreateFile(path, filename); err != nil {
			c.logFailure("create_file", hostOf(client), err)
		}
	}
	return nil
}

// WriteFile chooses a fresh replica set, commits metadata, then
// uploads source to each chosen node, rewinding between uploads.
func (c *Coordinator) WriteFile(ctx context.Context, path, filename string, source ByteSource) error {
	servers, err := c.chooseStorageServers(ctx)
	if err != nil {
		return err
	}
	if err := c.tree.CreateFile(ctx, path, filename, servers); err != nil {
		return err
	}
	for _, client := range c.clientsFor(servers) {
		if err := client.WriteFile(path, filename, source); err != nil {
			c.logFailure("write_file", hostOf(client), err)
			continue
		}
		if err := source.Rewind(); err != nil {
			c.logFailure("write_file rewind", hostOf(client), err)
		}
	}
	return nil
}

// ReadFile tries each replica in listed order, returning on the first
// success. If every replica fails, it returns the last transport
// error seen.
func (c *Coordinator) ReadFile(ctx context.Context, path, filename string, sink ByteSink) error {
	servers, err := c.tree.GetFileServers(ctx, path, filename)
	if err != nil {
		return err
	}
	var lastErr error
	for _, client := range c.clientsFor(servers) {
		if err := client.ReadFile(path, filename, sink); err != nil {
			c.logFailure("read_file", hostOf(client), err)
			lastErr = err
			continue
		}
		if err := sink.Rewind(); err != nil {
			return err
		}
		return nil
	}
	c.log.Error().Str("path", path).Str("filename", filename).Msg("failed to read file from any replica")
	if lastErr == nil {
		lastErr = fmt.Errorf("no replicas available for %s/%s", path, filename)
	}
	return lastErr
}

// DeleteFile removes the metadata entry first, then fans out deletion
// to the file's replicas.
func (c *Coordinator) DeleteFile(ctx context.Context, path, filename string) error {
	servers, err := c.tree.GetFileServers(ctx, path, filename)
	if err != nil {
		return err
	}
	if err := c.tree.DeleteFile(ctx, path, filename); err != nil {
		return err
	}
	for _, client := range c.clientsFor(servers) {
		if err := client.DeleteFile(path, filename); err != nil {
			c.logFailure("delete_file", hostOf(client), err)
		}
	}
	return nil
}

// GetFileSize tries each replica in order, returning the first
// successful size.
func (c *Coordinator) GetFileSize(ctx context.Context, path, filename string) (int64, error) {
	servers, err := c.tree.GetFileServers(ctx, path, filename)
	if err != nil {
		return storagenode.SizeUnknown, err
	}
	var lastErr error
	for _, host := range servers {
		client := c.newClient(host)
		size, err := client.GetFileSize(path, filename)
		if err != nil {
			c.logFailure("get_file_size", host, err)
			lastErr = err
			continue
		}
		return size, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no replicas available for %s/%s", path, filename)
	}
	return storagenode.SizeUnknown, lastErr
}

// CopyFile updates metadata first (preserving the source's replica
// set), then fans out the copy to the file's current replicas.
func (c *Coordinator) CopyFile(ctx context.Context, path, filename, newPath, newFilename string) error {
	servers, err := c.tree.GetFileServers(ctx, path, filename)
	if err != nil {
		return err
	}
	if err := c.tree.CopyFile(ctx, path, filename, newPath, newFilename); err != nil {
		return err
	}
	for _, client := range c.clientsFor(servers) {
		if err := client.CopyFile(path, filename, newPath, newFilename); err != nil {
			c.logFailure("copy_file", hostOf(client), err)
		}
	}
	return nil
}

// MoveFile updates metadata first, then fans out the move to the
// file's current replicas.
func (c *Coordinator) MoveFile(ctx context.Context, path, filename, newPath, newFilename string) error {
	servers, err := c.tree.GetFileServers(ctx, path, filename)
	if err != nil {
		return err
	}
	if err := c.tree.MoveFile(ctx, path, filename, newPath, newFilename); err != nil {
		return err
	}
	for _, client := range c.clientsFor(servers) {
		if err := client.MoveFile(path, filename, newPath, newFilename); err != nil {
			c.logFailure("move_file", hostOf(client), err)
		}
	}
	return nil
}

// ReadDir delegates directly to the directory tree; no node fan-out
// is involved in reading metadata.
func (c *Coordinator) ReadDir(ctx context.Context, path string) ([]tree.Entry, error) {
	return c.tree.ReadDir(ctx, path)
}

// MakeDir commits metadata first, then broadcasts the new directory
// to every known node (live or not), so bootstrap stays correct even
// if a node is briefly unreachable during the call.
func (c *Coordinator) MakeDir(ctx context.Context, path, dirname string) error {
	if err := c.tree.MakeDir(ctx, path, dirname); err != nil {
		return err
	}
	for _, client := range c.clientsFor(c.registry.Snapshot()) {
		if err := client.MakeDir(path, dirname); err != nil {
			c.logFailure("make_dir", hostOf(client), err)
		}
	}
	return nil
}

// DeleteDir commits metadata first, then broadcasts the recursive
// deletion to every known node.
func (c *Coordinator) DeleteDir(ctx context.Context, path, dirname string) error {
	if err := c.tree.DeleteDir(ctx, path, dirname); err != nil {
		return err
	}
	for _, client := range c.clientsFor(c.registry.Snapshot()) {
		if err := client.DeleteDir(path, dirname); err != nil {
			c.logFailure("delete_dir", hostOf(client), err)
		}
	}
	return nil
}

// Clear wipes the directory tree, then clears every known node.
func (c *Coordinator) Clear(ctx context.Context) error {
	if err := c.tree.Clear(ctx); err != nil {
		return err
	}
	for _, client := range c.clientsFor(c.registry.Snapshot()) {
		if err := client.Clear(); err != nil {
			c.logFailure("clear", hostOf(client), err)
		}
	}
	return nil
}

// AddStorageServer registers host, clears its storage root, then
// replays the current directory layout onto it. Existing files are
// never replicated to the new node; only its future writes will be.
//
// The clear-and-replay step always runs, even when host is already
// known: the handshake is an idempotent bootstrap, not a one-time
// registration, so a node that lost its local disk and reconnects
// still gets its directory structure rebuilt.
func (c *Coordinator) AddStorageServer(ctx context.Context, host string) error {
	if c.registry.Add(host) {
		c.log.Info().Str("host", host).Msg("new storage server registered")
	}
	client := c.newClient(host)
	if err := client.Clear(); err != nil {
		c.logFailure("bootstrap clear", host, err)
	}
	dirs, err := c.tree.AsList(ctx)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if err := client.MakeDir(d.Path, d.DirName); err != nil {
			c.logFailure("bootstrap make_dir", host, err)
		}
	}
	return nil
}

// GetAvailableSpace sums advisory free space over live nodes and
// halves it, since placement writes every file to up to two replicas.
func (c *Coordinator) GetAvailableSpace(ctx context.Context) int64 {
	var total int64
	for _, host := range c.registry.AvailableServers(ctx) {
		total += c.registry.RequestSpaceAvailable(ctx, host)
	}
	return total / 2
}

// hostOf recovers the host a StorageClient talks to, for logging.
// storagenode.Client satisfies this via Host(); fakes used in tests
// are expected to as well.
func hostOf(c StorageClient) string {
	type hoster interface{ Host() string }
	if h, ok := c.(hoster); ok {
		return h.Host()
	}
	return "unknown"
}
