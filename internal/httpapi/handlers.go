package httpapi

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/TymurLysenkoIU/ds-project2-name-server/internal/command"
	"github.com/TymurLysenkoIU/ds-project2-name-server/internal/tree"
)

// queryCanNotBeExecuted is the literal error body existing clients
// parse; wire compatibility is an explicit requirement (spec §6.1), so
// failures are reported this way at 200 rather than with a proper
// status code. The real error is still logged server-side.
const queryCanNotBeExecuted = "The query can not be executed!"

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	args := decodeArgs(r.URL.Query())
	cmd, err := command.Parse(args)
	if err != nil {
		s.log.Error().Err(err).Strs("args", args).Msg("failed to parse command")
		writeText(w, queryCanNotBeExecuted)
		return
	}

	if cmd.Kind == command.Write && r.Method == http.MethodPost {
		s.handleWrite(ctx, w, r, cmd)
		return
	}
	if cmd.Kind == command.Read {
		s.handleRead(ctx, w, cmd)
		return
	}

	answer, err := s.dispatch(ctx, cmd)
	if err != nil {
		s.log.Error().Err(err).Str("op", cmd.Kind.String()).Msg("command failed")
		writeText(w, queryCanNotBeExecuted)
		return
	}
	writeText(w, answer)
}

// dispatch executes every command except read/write, which need
// access to the request body or response writer directly.
func (s *Server) dispatch(ctx context.Context, cmd command.Command) (string, error) {
	switch cmd.Kind {
	case command.Init:
		return "", s.coordinator.Clear(ctx)
	case command.Create:
		return "OK", s.coordinator.CreateFile(ctx, cmd.Path, cmd.Name)
	case command.Delete:
		return "OK", s.coordinator.DeleteFile(ctx, cmd.Path, cmd.Name)
	case command.Info:
		size, err := s.coordinator.GetFileSize(ctx, cmd.Path, cmd.Name)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(size, 10), nil
	case command.Copy:
		return "OK", s.coordinator.CopyFile(ctx, cmd.Path, cmd.Name, cmd.NewPath, cmd.NewFilename)
	case command.Move:
		return "OK", s.coordinator.MoveFile(ctx, cmd.Path, cmd.Name, cmd.NewPath, cmd.NewFilename)
	case command.ReadDir:
		entries, err := s.coordinator.ReadDir(ctx, cmd.Path)
		if err != nil {
			return "", err
		}
		return formatEntries(entries), nil
	case command.MakeDir:
		return "OK", s.coordinator.MakeDir(ctx, cmd.Path, cmd.Name)
	case command.DeleteDir:
		return "OK", s.coordinator.DeleteDir(ctx, cmd.Path, cmd.Name)
	default:
		return "", fmt.Errorf("unsupported command kind %v in dispatch", cmd.Kind)
	}
}

func formatEntries(entries []tree.Entry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("{type:%s, name:%s}", e.Type, e.Name)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (s *Server) handleRead(ctx context.Context, w http.ResponseWriter, cmd command.Command) {
	sink, err := newTempFileBuf()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to allocate temp file for read")
		writeText(w, queryCanNotBeExecuted)
		return
	}
	defer sink.Close()

	if err := s.coordinator.ReadFile(ctx, cmd.Path, cmd.Name, sink); err != nil {
		s.log.Error().Err(err).Str("path", cmd.Path).Str("filename", cmd.Name).Msg("read failed")
		writeText(w, queryCanNotBeExecuted)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, sink.f); err != nil {
		s.log.Error().Err(err).Msg("failed to stream file to client")
	}
}

func (s *Server) handleWrite(ctx context.Context, w http.ResponseWriter, r *http.Request, cmd command.Command) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.log.Error().Err(err).Msg("failed to parse multipart body")
		writeText(w, queryCanNotBeExecuted)
		return
	}
	part, _, err := r.FormFile("file")
	if err != nil {
		s.log.Error().Err(err).Msg("missing file part in write request")
		writeText(w, queryCanNotBeExecuted)
		return
	}
	defer part.Close()

	source, err := newTempFileBuf()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to allocate temp file for write")
		writeText(w, queryCanNotBeExecuted)
		return
	}
	defer source.Close()

	if _, err := io.Copy(source.f, part); err != nil {
		s.log.Error().Err(err).Msg("failed to buffer upload")
		writeText(w, queryCanNotBeExecuted)
		return
	}
	if err := source.Rewind(); err != nil {
		s.log.Error().Err(err).Msg("failed to rewind upload buffer")
		writeText(w, queryCanNotBeExecuted)
		return
	}

	if err := s.coordinator.WriteFile(ctx, cmd.Path, cmd.Name, source); err != nil {
		s.log.Error().Err(err).Str("path", cmd.Path).Str("filename", cmd.Name).Msg("write failed")
		writeText(w, queryCanNotBeExecuted)
		return
	}
	writeText(w, "OK")
}

// handleConnect is the storage-node registration handshake: the
// sender's address is taken from the forwarded-for chain's first
// entry, falling back to the socket peer, and added to the registry.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if err := s.coordinator.AddStorageServer(r.Context(), ip); err != nil {
		s.log.Error().Err(err).Str("host", ip).Msg("failed to bootstrap new storage server")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.log.Info().Str("host", ip).Msg("storage server registered")
	w.WriteHeader(http.StatusAccepted)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}
