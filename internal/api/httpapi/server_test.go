package httpapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/service/dispatch"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	commands []string
}

func (f *fakeDispatcher) Execute(_ context.Context, command string) dispatch.Result {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	f.mu.Unlock()

	if strings.HasPrefix(command, "NOPE") {
		return dispatch.Failure(fmt.Errorf("API call for tag NOPE: %w", relay.ErrNotFound))
	}

	return dispatch.OK(map[string]any{"echo": command})
}

func (f *fakeDispatcher) Status(context.Context) dispatch.Result {
	return dispatch.OK(map[string]any{"io": map[string]any{}})
}

func (f *fakeDispatcher) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.commands...)
}

type fakePresets struct {
	document   []byte
	installed  []byte
	checksum   []byte
	installErr error
	readErr    error
}

func (f *fakePresets) ReadButtons() ([]byte, error) {
	return f.document, f.readErr
}

func (f *fakePresets) Install(_ context.Context, buttons, checksum []byte) error {
	if f.installErr != nil {
		return f.installErr
	}

	f.installed = buttons
	f.checksum = checksum

	return nil
}

func do(t *testing.T, handler http.Handler, method, target string, body io.Reader, header http.Header) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	for key, values := range header {
		req.Header[key] = values
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())

	return rec.Code, decoded
}

// TestHandleCommand routes the path after /api/ to the dispatcher.
func TestHandleCommand(t *testing.T) {
	t.Parallel()

	dispatcher := new(fakeDispatcher)
	handler := New(":0", dispatcher, nil).Handler()

	code, body := do(t, handler, http.MethodGet, "/api/BUT/ant/A", nil, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "OK", body["msg"])
	require.InDelta(t, 200, body["retCode"], 0)
	require.Equal(t, "BUT/ant/A", body["echo"])

	code, body = do(t, handler, http.MethodGet, "/api/NOPE/1", nil, nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "ERR: API call for tag NOPE: not found", body["msg"])

	code, body = do(t, handler, http.MethodGet, "/api/", nil, nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "io")

	require.Equal(t, []string{"BUT/ant/A", "NOPE/1"}, dispatcher.executed())
}

// TestConfig_Disabled hides /config without a preset store.
func TestConfig_Disabled(t *testing.T) {
	t.Parallel()

	handler := New(":0", new(fakeDispatcher), nil).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// TestGetConfig serves the raw buttons document.
func TestGetConfig(t *testing.T) {
	t.Parallel()

	presets := &fakePresets{document: []byte("[[buttons.ant]]\nname = \"A\"\npins = [\"RL1\"]\n")}
	handler := New(":0", new(fakeDispatcher), presets).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, contentTypeTOML, rec.Header().Get("Content-Type"))
	require.Equal(t, presets.document, rec.Body.Bytes())

	presets.readErr = fmt.Errorf("read preset: %w", os.ErrNotExist)

	code, body := do(t, handler, http.MethodGet, "/config", nil, nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Contains(t, body["msg"], "ERR: ")
}

// TestPutConfig installs the document, forwards the checksum and reloads.
func TestPutConfig(t *testing.T) {
	t.Parallel()

	dispatcher := new(fakeDispatcher)
	presets := new(fakePresets)
	handler := New(":0", dispatcher, presets).Handler()

	document := "[[buttons.ant]]\nname = \"B\"\npins = [\"RL2\"]\n"
	checksum := []byte{0xde, 0xad, 0xbe, 0xef}
	header := http.Header{ChecksumHeader: {hex.EncodeToString(checksum)}}

	code, body := do(t, handler, http.MethodPut, "/config", strings.NewReader(document), header)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "CFG/reload", body["echo"])
	require.Equal(t, []byte(document), presets.installed)
	require.Equal(t, checksum, presets.checksum)
	require.Equal(t, []string{"CFG/reload"}, dispatcher.executed())

	// Bad checksum encoding.
	header = http.Header{ChecksumHeader: {"zz"}}
	code, _ = do(t, handler, http.MethodPut, "/config", strings.NewReader(document), header)
	require.Equal(t, http.StatusBadRequest, code)

	// Rejected document: no reload.
	presets.installErr = fmt.Errorf("buttons.conf: %w: unknown pin", relay.ErrParse)
	code, body = do(t, handler, http.MethodPut, "/config", strings.NewReader(document), nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body["msg"], "unknown pin")
	require.Len(t, dispatcher.executed(), 1)
}
