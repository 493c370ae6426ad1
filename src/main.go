package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ryansname/powermeter/src/clock"
	"github.com/ryansname/powermeter/src/config"
	"github.com/ryansname/powermeter/src/display"
	"github.com/ryansname/powermeter/src/link"
	"github.com/ryansname/powermeter/src/meter"
	"github.com/ryansname/powermeter/src/supervisor"
	"github.com/ryansname/powermeter/src/wifi"
)

// firmwareVersion is set at build time with -ldflags "-X main.firmwareVersion=..."
var firmwareVersion = "dev"

// newSource picks the current sensor front-end
func newSource(cfg *config.Config) meter.Source {
	if cfg.Sensor.Mock {
		log.Println("Using simulated current sensor")
		return meter.NewMockSource()
	}

	rms := meter.NewRMSCalculator(cfg.Sensor.Calibration, cfg.Sensor.VRef, cfg.Sensor.ADCBits)
	source := meter.NewSerialSource(cfg.Sensor.Port, cfg.Sensor.BaudRate, cfg.Sensor.ReadTimeout, rms)
	source.Window = cfg.Sensor.Samples
	return source
}

// newNetwork picks the network stack
func newNetwork(cfg *config.Config) wifi.Link {
	if cfg.WiFi.Simulate {
		log.Println("Using simulated WiFi link")
		return wifi.NewSimulatedLink(2, -58)
	}
	return wifi.NewSysfsLink(cfg.WiFi.Interface, cfg.WiFi.ConnectCommand)
}

func main() {
	configPath := flag.String("config", "powermeter.yaml", "path to the YAML configuration")
	envPath := flag.String("env", ".env", "path to the .env file holding broker credentials")
	mock := flag.Bool("mock", false, "simulate the current sensor and the WiFi link")
	debug := flag.Bool("debug", false, "start the interactive debug console")
	flag.Parse()

	log.Printf("Starting powermeter %s...\n", firmwareVersion)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *mock {
		cfg.Sensor.Mock = true
		cfg.WiFi.Simulate = true
	}
	if err := cfg.LoadSecrets(*envPath); err != nil {
		log.Fatalf("Failed to load secrets: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	location, err := time.LoadLocation(cfg.Time.Timezone)
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := display.NewState()
	buffer := meter.NewBuffer(cfg.Sampling.BufferCapacity)
	peaks := &meter.HourlyRange{}
	sampler := meter.NewSampler(newSource(cfg), buffer, cfg.Sensor.MainsVoltage, state, peaks)
	gate := display.NewPhaseGate(state, cfg.Cloud.Enabled, cfg.Local.Enabled)
	backoff := link.Backoff{Min: cfg.Retry.Min, Max: cfg.Retry.Max, Exponential: cfg.Retry.Exponential}

	wifiMachine := link.New("wifi",
		wifi.NewDuty(newNetwork(cfg), state, cfg.WiFi.SignalPeriod),
		backoff,
		link.WithObserver(gate.Observer(display.RoleWiFi)),
	)
	statuses := []statusSource{wifiMachine}

	var brokers []*link.Machine
	if cfg.Cloud.Enabled {
		cloud, err := NewCloudLink(cfg, buffer, func() int { return state.Snapshot().WiFiStrengthDbm })
		if err != nil {
			log.Fatalf("Failed to create cloud link: %v", err)
		}
		defer cloud.Close()

		brokers = append(brokers, link.New("cloud", cloud, backoff,
			link.WithGate(wifiMachine.IsConnected),
			link.WithObserver(gate.Observer(display.RoleCloud)),
		))
	}
	if cfg.Local.Enabled {
		local := NewHomeAssistantLink(cfg, state, peaks)
		defer local.Close()

		brokers = append(brokers, link.New("homeassistant", local, backoff,
			link.WithGate(wifiMachine.IsConnected),
			link.WithObserver(gate.Observer(display.RoleLocal)),
		))
	}
	for _, b := range brokers {
		statuses = append(statuses, b)
	}

	var timeSource clock.Source = clock.SystemClock{}
	var ntpClock *clock.NTPClock
	if cfg.Time.Enabled {
		ntpClock = clock.NewNTPClock(cfg.Time.Server, cfg.Time.ResyncPeriod, wifiMachine.IsConnected)
		timeSource = ntpClock
	}

	renderer := display.NewRenderer(display.NewFramebuffer(cfg.Display.SnapshotPath))

	sup, err := buildSupervisor(taskSet{
		sampler:       sampler,
		samplePeriod:  cfg.Sampling.SamplePeriod,
		renderer:      renderer,
		state:         state,
		refreshPeriod: cfg.Display.RefreshPeriod,
		clock:         clock.NewDisplay(timeSource, state, cfg.Time.Format, location),
		ntp:           ntpClock,
		wifi:          wifiMachine,
		brokers:       brokers,
	}, cfg.Display.SharedContext)
	if err != nil {
		log.Fatalf("Failed to build task table: %v", err)
	}
	if err := sup.Start(ctx); err != nil {
		log.Fatalf("Failed to start tasks: %v", err)
	}

	if *debug {
		supervisor.Go(ctx, "debug-worker", func(ctx context.Context) {
			debugWorker(ctx, cancel, state, statuses)
		})
	}

	// Wait for an interrupt, or for the debug console to cancel ctx
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("\nShutting down...")
	case <-ctx.Done():
		log.Println("\nDebug console interrupted, shutting down...")
	}
	cancel()
}
