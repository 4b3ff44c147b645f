package integration

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/ant-controller/internal/config"
	"github.com/oshokin/ant-controller/internal/service/server"
)

const (
	benchPins = `version = "bench"

[[pin]]
name = "RL1"
antctrl = "RL1"
sch = "K1"

[[pin]]
name = "RL2"
antctrl = "RL2"
sch = "K2"

[[pin]]
name = "TX"
antctrl = "TTL1"
sch = "J7"
`
	benchButtons = `[[buttons.ant]]
name = "A"
pins = ["RL1"]

[[buttons.ant]]
name = "B"
pins = ["RL2"]
disable_on_high = ["TX"]
`
)

// controller describes a daemon started for a test.
type controller struct {
	// grpcAddress is the dialable gRPC address.
	grpcAddress string
	// httpBase is the base URL of the HTTP API.
	httpBase string
	// settings are the daemon settings.
	settings *config.Config
}

// reservePort returns a currently free loopback address.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// startController writes settings and presets to a temporary directory and
// runs the daemon until the test ends.
func startController(t *testing.T) *controller {
	t.Helper()

	dir := t.TempDir()

	settings := &config.Config{
		GRPCAddress: reservePort(t),
		HTTPAddress: reservePort(t),
		Presets: config.PresetsConfig{
			Pins:     filepath.Join(dir, "pins.conf"),
			Buttons:  filepath.Join(dir, "buttons.conf"),
			Fallback: filepath.Join(dir, "buttons_simple.conf"),
		},
		StateFile: filepath.Join(dir, "state.json"),
		LogLevel:  "warn",
	}

	require.NoError(t, os.WriteFile(settings.Presets.Pins, []byte(benchPins), 0o600))
	require.NoError(t, os.WriteFile(settings.Presets.Buttons, []byte(benchButtons), 0o600))

	cfgPath := filepath.Join(dir, "settings.yaml")
	require.NoError(t, config.Save(cfgPath, settings))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{ConfigPath: cfgPath})
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	c := &controller{
		grpcAddress: settings.GRPCAddress,
		httpBase:    "http://" + settings.HTTPAddress,
		settings:    settings,
	}

	// Wait for both listeners.
	require.Eventually(t, func() bool {
		for _, address := range []string{settings.GRPCAddress, settings.HTTPAddress} {
			conn, err := net.DialTimeout("tcp", address, 50*time.Millisecond)
			if err != nil {
				return false
			}

			_ = conn.Close()
		}

		return true
	}, 5*time.Second, 20*time.Millisecond)

	return c
}

// httpDo performs a request and decodes the JSON result.
func (c *controller) httpDo(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, c.httpBase+path, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded), string(data))

	return resp.StatusCode, decoded
}

// selection extracts the selection of a group from a BUT/<group> result.
func selection(t *testing.T, result map[string]any) string {
	t.Helper()

	value, ok := result["selection"].(string)
	require.True(t, ok, result)

	return value
}
