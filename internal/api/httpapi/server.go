package httpapi

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/logger"
	"github.com/oshokin/ant-controller/internal/service/dispatch"
)

const (
	// ChecksumHeader optionally carries the hex SHA512 of a PUT /config body.
	ChecksumHeader = "X-Checksum-Sha512"

	// reloadCommand swaps the installed document in.
	reloadCommand = dispatch.TagConfig + "/reload"
	// maxDocumentSize caps the PUT /config body.
	maxDocumentSize = 64 << 10
	// httpTimeout bounds reads and writes of one request.
	httpTimeout = 3 * time.Second

	contentTypeJSON = "application/json"
	contentTypeTOML = "application/toml"
)

// Dispatcher is the command surface served by the API.
type Dispatcher interface {
	Execute(ctx context.Context, command string) dispatch.Result
	Status(ctx context.Context) dispatch.Result
}

// Presets reads and replaces the primary buttons document.
type Presets interface {
	ReadButtons() ([]byte, error)
	Install(ctx context.Context, buttons, checksum []byte) error
}

// Server is the HTTP transport.
type Server struct {
	// dispatcher executes commands.
	dispatcher Dispatcher
	// presets serves /config; nil disables it.
	presets Presets
	// server is the listening HTTP server.
	server *http.Server
}

// New creates a Server listening on address once ListenAndServe is called.
func New(address string, dispatcher Dispatcher, presets Presets) *Server {
	s := &Server{
		dispatcher: dispatcher,
		presets:    presets,
	}

	s.server = &http.Server{
		Addr:              address,
		Handler:           s.Handler(),
		ReadTimeout:       httpTimeout,
		ReadHeaderTimeout: httpTimeout,
		WriteTimeout:      httpTimeout,
		IdleTimeout:       2 * httpTimeout,
	}

	return s
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/api/*cmd", s.handleCommand)

	if s.presets != nil {
		router.GET("/config", s.handleGetConfig)
		router.PUT("/config", s.handlePutConfig)
	}

	return router
}

// ListenAndServe blocks until the server stops. A shutdown is not an error.
func (s *Server) ListenAndServe(ctx context.Context) error {
	logger.InfoKV(ctx, "HTTP API listening", "address", s.server.Addr)

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	ctx := logger.WithKV(r.Context(), "remote", r.RemoteAddr)
	command := strings.Trim(p.ByName("cmd"), "/")

	if command == "" {
		writeResult(ctx, w, s.dispatcher.Status(ctx))

		return
	}

	writeResult(ctx, w, s.dispatcher.Execute(ctx, command))
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()

	data, err := s.presets.ReadButtons()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %w", relay.ErrNotFound, err)
		}

		writeResult(ctx, w, dispatch.Failure(err))

		return
	}

	w.Header().Set("Content-Type", contentTypeTOML)
	_, _ = w.Write(data)
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := logger.WithKV(r.Context(), "remote", r.RemoteAddr)

	var checksum []byte

	if header := r.Header.Get(ChecksumHeader); header != "" {
		decoded, err := hex.DecodeString(header)
		if err != nil {
			writeResult(ctx, w, dispatch.Failure(fmt.Errorf("checksum: %w", dispatch.ErrMalformed)))

			return
		}

		checksum = decoded
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentSize))
	if err != nil {
		writeResult(ctx, w, dispatch.Failure(fmt.Errorf("read document: %w: %w", dispatch.ErrMalformed, err)))

		return
	}

	if err = s.presets.Install(ctx, data, checksum); err != nil {
		writeResult(ctx, w, dispatch.Failure(err))

		return
	}

	writeResult(ctx, w, s.dispatcher.Execute(ctx, reloadCommand))
}

// writeResult answers with the JSON result, using its code as the HTTP status.
func writeResult(ctx context.Context, w http.ResponseWriter, result dispatch.Result) {
	body, err := result.MarshalJSON()
	if err != nil {
		logger.ErrorKV(ctx, "Result encoding failed", "error", err)
		http.Error(w, "unable to encode result", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(result.RetCode)
	_, _ = w.Write(body)
}
