package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/pickplace/internal/clock"
	"github.com/sweeney/pickplace/internal/config"
	"github.com/sweeney/pickplace/internal/control"
	"github.com/sweeney/pickplace/internal/metrics"
	"github.com/sweeney/pickplace/internal/mqtt"
	"github.com/sweeney/pickplace/internal/status"
	"github.com/sweeney/pickplace/internal/web"
)

// telemetryQueue bounds events waiting for the MQTT pump.
const telemetryQueue = 512

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pick-and-place controller",
	Long: `Home the rail, then serve keypad selections until SIGINT or SIGTERM.
Workflow events are published to MQTT and the status page is served over HTTP.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	return run(cmd.Context(), cfg, logger)
}

func run(parent context.Context, cfg config.Config, logger zerolog.Logger) error {
	clk := clock.System{}

	m, err := openMachine(cfg, clk, os.Stdin, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	rec := metrics.New()
	sinks := control.Sinks{tracker, rec}

	var publisher *mqtt.RealPublisher
	var fwd *mqtt.Forwarder
	if cfg.MQTT.Broker != "" {
		publisher = mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, logger.With().Str("component", "mqtt").Logger())
		defer publisher.Close()
		fwd = mqtt.NewForwarder(publisher, telemetryQueue, logger.With().Str("component", "telemetry").Logger())
		sinks = append(sinks, fwd)

		rec.GaugeFunc("telemetry_dropped_events", "Workflow events dropped because the MQTT queue was full.", func() float64 {
			return float64(fwd.Dropped())
		})
		rec.GaugeFunc("mqtt_buffered_messages", "Messages held while the broker is unreachable.", func() float64 {
			return float64(publisher.Buffered())
		})
		rec.GaugeFunc("mqtt_evicted_messages", "Buffered messages evicted because the backlog was full.", func() float64 {
			return float64(publisher.Dropped())
		})
		rec.GaugeFunc("mqtt_connected", "1 while connected to the broker.", func() float64 {
			if publisher.IsConnected() {
				return 1
			}
			return 0
		})
	}

	ctrl := control.New(m.hw, cfg.Control(), clk, logger.With().Str("component", "control").Logger(), sinks)
	if err := ctrl.Init(); err != nil {
		return fmt.Errorf("init hardware: %w", err)
	}
	defer func() {
		if err := ctrl.Halt(); err != nil {
			logger.Error().Err(err).Msg("halt failed")
		}
	}()

	// Interfaces stay nil when telemetry is disabled.
	var pub mqtt.Publisher
	var conn mqtt.ConnectionStatus
	if publisher != nil {
		pub, conn = publisher, publisher
		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			logger.Warn().Err(err).Msg("failed to publish startup event")
		} else {
			logger.Info().Msg("published startup event")
		}
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// The relay hands the first signal to the loop and cancels any
	// in-flight sub-loop so the loop can see it.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	loopSig := make(chan os.Signal, 1)
	tickCtx, stopTicks := context.WithCancel(gctx)
	defer stopTicks()
	g.Go(func() error {
		select {
		case s := <-sigCh:
			loopSig <- s
			stopTicks()
		case <-gctx.Done():
		}
		return nil
	})

	if fwd != nil {
		g.Go(func() error { return fwd.Run(gctx) })
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, rec.Handler())
		g.Go(func() error {
			logger.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info().
		Dur("tick", cfg.Timing.Tick).
		Dur("debounce", cfg.Timing.Debounce).
		Str("broker", cfg.MQTT.Broker).
		Dur("heartbeat", cfg.MQTT.Heartbeat).
		Int("targets", len(cfg.Motion.Positions)).
		Msg("started")

	ticker := time.NewTicker(cfg.Timing.Tick)
	defer ticker.Stop()

	g.Go(func() error {
		defer cancel()
		return runLoop(tickCtx, loopDeps{
			ctrl:      ctrl,
			publisher: pub,
			status:    conn,
			tracker:   tracker,
			heartbeat: cfg.MQTT.Heartbeat,
			now:       time.Now,
			log:       logger,
		}, ticker.C, loopSig)
	})

	return g.Wait()
}

// loopDeps is what runLoop needs besides its channels. publisher, status
// and tracker may be nil.
type loopDeps struct {
	ctrl      *control.Controller
	publisher mqtt.Publisher
	status    mqtt.ConnectionStatus
	tracker   *status.Tracker
	heartbeat time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func runLoop(ctx context.Context, d loopDeps, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := d.now()

	for {
		select {
		case s := <-sig:
			shutdown(d, s)
			return nil

		case <-ctx.Done():
			// A signal cancels ctx after queuing itself.
			select {
			case s := <-sig:
				shutdown(d, s)
			default:
			}
			return nil

		case <-tick:
			d.ctrl.Tick(ctx)

			if d.tracker != nil && d.status != nil {
				d.tracker.SetMQTTConnected(d.status.IsConnected())
			}

			t := d.now()
			if d.heartbeat > 0 && t.Sub(lastHeartbeat) >= d.heartbeat {
				lastHeartbeat = t
				counts := d.ctrl.Counts()
				d.log.Info().
					Str("state", d.ctrl.State().String()).
					Int("cycles", counts.Cycles).
					Int("faults", counts.Faults).
					Int("retries", counts.Retries).
					Int("estops", counts.EStops).
					Msg("heartbeat")
				if d.tracker != nil {
					if net := readNetworkInfo(); net != nil {
						d.tracker.SetNetwork(net)
					}
				}
				publishSystem(d, "HEARTBEAT", "", false)
			}
		}
	}
}

func shutdown(d loopDeps, s os.Signal) {
	d.log.Info().Stringer("signal", s).Msg("shutting down")
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	publishSystem(d, "SHUTDOWN", signalName, true)
}

// publishSystem sends a lifecycle event carrying the full status snapshot.
func publishSystem(d loopDeps, event, reason string, retained bool) {
	if d.publisher == nil {
		return
	}
	e := mqtt.SystemEvent{
		Timestamp: d.now(),
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if d.tracker != nil {
		if d.status != nil {
			d.tracker.SetMQTTConnected(d.status.IsConnected())
		}
		e.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), event, reason)
	}
	if err := d.publisher.PublishSystem(e); err != nil {
		d.log.Warn().Err(err).Str("event", event).Msg("system event publish failed")
	}
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		TickMs:      cfg.Timing.Tick.Milliseconds(),
		DebounceMs:  cfg.Timing.Debounce.Milliseconds(),
		HeartbeatMs: cfg.MQTT.Heartbeat.Milliseconds(),
		ThresholdCM: cfg.Sensor.ThresholdCM,
		Targets:     len(cfg.Motion.Positions),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		File:        cfg.File,
	}
}
