package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/oshokin/ant-controller/internal/api/grpc/controller"
	"github.com/oshokin/ant-controller/internal/api/httpapi"
	"github.com/oshokin/ant-controller/internal/api/mqtt"
	"github.com/oshokin/ant-controller/internal/api/serial"
	"github.com/oshokin/ant-controller/internal/config"
	"github.com/oshokin/ant-controller/internal/hardware"
	"github.com/oshokin/ant-controller/internal/logger"
	"github.com/oshokin/ant-controller/internal/repository/preset"
	repository "github.com/oshokin/ant-controller/internal/repository/state"
	"github.com/oshokin/ant-controller/internal/service/dispatch"
	"github.com/oshokin/ant-controller/internal/service/engine"
)

// shutdownTimeout bounds the graceful stop of the HTTP API and the final flush of changes.
const shutdownTimeout = 5 * time.Second

// daemon holds the wired components of a running controller.
type daemon struct {
	// settings are the validated daemon settings.
	settings *config.Config
	// backend drives the board.
	backend hardware.Backend
	// presets loads and installs preset documents.
	presets *preset.Loader
	// engine owns the buttons and guards.
	engine *engine.Engine
	// dispatcher executes commands for every transport.
	dispatcher *dispatch.Dispatcher
	// svc persists selections.
	svc *service
}

// newDaemon opens the backend, loads the presets and boots the engine.
// A preset that fails to load leaves the controller running without buttons,
// so CFG/reload or PUT /config can repair it.
func newDaemon(ctx context.Context, settings *config.Config) (*daemon, error) {
	backend, err := hardware.Open(hardwareOptions(settings))
	if err != nil {
		return nil, fmt.Errorf("open hardware: %w", err)
	}

	presets := &preset.Loader{
		Pins:     settings.Presets.Pins,
		Buttons:  settings.Presets.Buttons,
		Fallback: settings.Presets.Fallback,
	}

	snapshot, err := presets.LoadWithFallback(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "No preset loaded, running without buttons", "error", err)
	}

	eng := engine.New(engine.Options{
		Backend:     backend,
		Snapshot:    snapshot,
		Policy:      engine.Policy(settings.Guard.Policy),
		LockTimeout: settings.LockTimeout,
	})

	if err = eng.Boot(ctx); err != nil {
		_ = backend.Close()

		return nil, fmt.Errorf("boot: %w", err)
	}

	d := &daemon{
		settings:   settings,
		backend:    backend,
		presets:    presets,
		engine:     eng,
		dispatcher: dispatch.New(eng, presets),
		svc:        newService(repository.NewFileRepository(settings.StateFile)),
	}

	if settings.RestoreState && snapshot != nil {
		if err = d.svc.restore(ctx, eng, snapshot.Source); err != nil {
			logger.ErrorKV(ctx, "Selections not restored", "error", err)
		}
	}

	eng.Subscribe(d.svc.onChange)

	return d, nil
}

// serve runs the guard task and every configured transport until ctx is done.
func (d *daemon) serve(ctx context.Context, lis net.Listener) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		d.engine.RunGuardTask(ctx, d.settings.Guard.Interval, d.settings.GuardInputsOnly())

		return nil
	})

	group.Go(func() error {
		return d.serveGRPC(ctx, lis)
	})

	if d.settings.HTTPAddress != "" {
		group.Go(func() error {
			return d.serveHTTP(ctx)
		})
	}

	if d.settings.MQTT.Broker != "" {
		group.Go(func() error {
			return d.serveMQTT(ctx)
		})
	}

	if d.settings.Serial.Device != "" {
		group.Go(func() error {
			return d.serveSerial(ctx)
		})
	}

	return group.Wait()
}

// close waits for pending selections to be saved, then releases the
// hardware, leaving outputs low.
func (d *daemon) close(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := d.engine.Flush(flushCtx); err != nil {
		logger.WarnKV(ctx, "Pending changes not delivered", "error", err)
	}

	if err := d.backend.Close(); err != nil {
		logger.ErrorKV(ctx, "Failed to release hardware", "error", err)
	}
}

func (d *daemon) serveGRPC(ctx context.Context, lis net.Listener) error {
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(controller.ActorInterceptor))
	controller.RegisterControllerServer(grpcServer, controller.NewServer(d.dispatcher))

	logger.InfoKV(ctx, "Controller listening", "listen_address", lis.Addr().String())

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

func (d *daemon) serveHTTP(ctx context.Context) error {
	server := httpapi.New(d.settings.HTTPAddress, d.dispatcher, d.presets)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "HTTP API shutdown failed", "error", err)
		}
	}()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	return nil
}

func (d *daemon) serveMQTT(ctx context.Context) error {
	transport, err := mqtt.Dial(ctx, mqtt.Options{
		Broker:      d.settings.MQTT.Broker,
		ClientID:    d.settings.MQTT.ClientID,
		TopicPrefix: d.settings.MQTT.TopicPrefix,
	}, d.dispatcher)
	if err != nil {
		logger.ErrorKV(ctx, "MQTT bridge disabled", "error", err)

		return nil
	}

	d.engine.Subscribe(func(ctx context.Context, _ engine.Change) {
		if err := transport.PublishStatus(ctx); err != nil {
			logger.WarnKV(ctx, "MQTT status not published", "error", err)
		}
	})

	<-ctx.Done()

	if err = transport.Close(); err != nil {
		logger.WarnKV(ctx, "MQTT close failed", "error", err)
	}

	return nil
}

func (d *daemon) serveSerial(ctx context.Context) error {
	port, err := serial.Open(d.settings.Serial.Device, d.settings.Serial.Baud)
	if err != nil {
		return fmt.Errorf("serve serial: %w", err)
	}

	return serveTerminal(ctx, port, serial.New(port, d.dispatcher, d.settings.Serial.Echo))
}

// serveTerminal runs terminal until ctx is done, then closes port to unblock it.
func serveTerminal(ctx context.Context, port io.Closer, terminal *serial.Terminal) error {
	stop := context.AfterFunc(ctx, func() {
		_ = port.Close()
	})
	defer stop()

	logger.Info(ctx, "Serial terminal started")

	if err := terminal.Serve(ctx); err != nil {
		return fmt.Errorf("serve serial: %w", err)
	}

	return nil
}

// hardwareOptions maps settings to backend options.
func hardwareOptions(settings *config.Config) hardware.Options {
	return hardware.Options{
		Backend:       settings.IO.Backend,
		I2CBus:        uint8(settings.IO.I2CBus), //nolint:gosec // Bus numbers are small.
		MosfetDevice:  settings.IO.Expanders.Mosfet,
		RelayDevice:   settings.IO.Expanders.Relay,
		OptoTTLDevice: settings.IO.Expanders.OptoTTL,
		InputDriver:   settings.IO.Inputs.Driver,
		InputChip:     settings.IO.Inputs.Chip,
		InputLines:    settings.IO.Inputs.Lines,
		InputPins:     settings.IO.Inputs.Pins,
	}
}
