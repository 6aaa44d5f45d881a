// vtouch - keyboard and mouse to virtual touchscreen
// Maps desktop input onto multitouch gestures on an Android device
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	log "github.com/sirupsen/logrus"

	"vtouch/internal/action"
	"vtouch/internal/api"
	"vtouch/internal/calib"
	"vtouch/internal/config"
	"vtouch/internal/device"
	"vtouch/internal/executor"
	"vtouch/internal/input"
	"vtouch/internal/logging"
	"vtouch/internal/network"
	"vtouch/internal/osutils"
	"vtouch/internal/protocol"
	"vtouch/internal/reactor"
	"vtouch/internal/touch"
	"vtouch/internal/tray"
)

var version = "0.1.0"

func main() {
	parser := argparse.NewParser("vtouch", "Map keyboard and mouse input onto a virtual touchscreen")

	configPath := parser.String("c", "config", &argparse.Options{
		Required: false,
		Help:     "Configuration file (.json, .yaml or .toml)",
	})
	envName := parser.String("e", "env", &argparse.Options{
		Required: false,
		Help:     "Environment to use",
	})
	debug := parser.Flag("d", "debug", &argparse.Options{
		Required: false,
		Help:     "Debug logging",
	})
	listDevices := parser.Flag("", "list-devices", &argparse.Options{
		Required: false,
		Help:     "List adb devices with their touch nodes and exit",
	})
	scan := parser.Flag("", "scan", &argparse.Options{
		Required: false,
		Help:     "Scan the local network for adb over TCP and exit",
	})
	forward := parser.String("", "forward", &argparse.Options{
		Required: false,
		Help:     "Forward stdin lines to a remote instance over WebSocket (host:port)",
	})
	forwardUDP := parser.String("", "forward-udp", &argparse.Options{
		Required: false,
		Help:     "Forward stdin lines to a remote instance over UDP (host:port)",
	})
	token := parser.String("", "token", &argparse.Options{
		Required: false,
		Help:     "API token for --forward",
	})
	withTray := parser.Flag("", "tray", &argparse.Options{
		Required: false,
		Help:     "Show a system tray icon",
	})
	showVer := parser.Flag("", "version", &argparse.Options{
		Required: false,
		Help:     "Show version",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(2)
	}

	if *showVer {
		fmt.Printf("vtouch version %s\n", version)
		return
	}

	level := "info"
	if *debug {
		level = "debug"
	}
	if err := logging.Setup(logging.Options{Level: level}); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *scan:
		scanLAN(ctx)
		return
	case *forward != "":
		runForward(ctx, network.NewWSClient(*forward, *token))
		return
	case *forwardUDP != "":
		fw := network.NewUDPForwarder(*forwardUDP)
		if !fw.Probe() {
			log.Warn("UDP path not confirmed, sending anyway")
		}
		if err := fw.Start(); err != nil {
			log.Fatalf("Failed to start UDP forwarder: %v", err)
		}
		runForward(ctx, fw)
		return
	}

	cfg, env := loadConfig(*configPath, *envName, *debug)

	if *listDevices {
		printDevices(env.Device)
		return
	}

	runService(ctx, cfg, env, *withTray)
}

func loadConfig(path, envName string, debug bool) (*config.Config, *config.Environment) {
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			log.Fatalf("Failed to locate config: %v", err)
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	opts := logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if debug {
		opts.Level = "debug"
	}
	if err := logging.Setup(opts); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	env, err := cfg.Select(envName, config.TerminalChooser())
	if err != nil {
		log.Fatalf("Failed to select environment: %v", err)
	}
	log.WithField("config", path).Printf("Using environment %q", env.Name)
	return cfg, env
}

func scanLAN(ctx context.Context) {
	log.Printf("Scanning for adb over TCP on port %d...", network.ADBPort)
	hosts, err := network.ScanLAN(ctx, network.ADBPort)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}

	if len(hosts) == 0 {
		fmt.Println("No devices found")
		return
	}
	for _, h := range hosts {
		fmt.Println(h.Addr())
	}
}

func printDevices(dev config.Device) {
	listings, err := device.List(dev, nil)
	if err != nil {
		log.Fatalf("Failed to list devices: %v", err)
	}

	fmt.Println("Attached Devices:")
	fmt.Println("-----------------")
	for _, l := range listings {
		fmt.Printf("Serial: %s\n", l.Serial)
		if l.Err != nil {
			fmt.Printf("  Error: %v\n", l.Err)
		}
		if l.Width > 0 {
			fmt.Printf("  Screen: %dx%d\n", l.Width, l.Height)
		}
		for _, n := range l.Nodes {
			fmt.Printf("  Touch: %s (%s) x<=%d y<=%d pressure<=%d slots<=%d\n",
				n.Path, n.Name, n.MaxX, n.MaxY, n.MaxPressure, n.MaxSlot)
		}
		fmt.Println()
	}
}

// runForward pipes stdin lines to fw until EOF, exit or a signal.
func runForward(ctx context.Context, fw network.Forwarder) {
	defer fw.Close()
	if c, ok := fw.(*network.WSClient); ok {
		c.Start()
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if c.WaitConnected(wctx) {
			log.Printf("Forward: connected as %s", c.ClientID())
		} else {
			log.Warn("Forward: not connected yet, lines are queued until the host answers")
		}
		cancel()
	}

	msgs := make(chan protocol.Message, 256)
	src := input.NewLineSource(os.Stdin)
	go func() {
		if err := src.Run(msgs); err != nil {
			log.WithError(err).Warn("Input: stdin read failed")
		}
		close(msgs)
	}()
	defer src.Stop()

	log.Println("Forwarding stdin. Send \"exit\" or press Ctrl+C to stop.")
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			fw.Send(m)
			if m.Kind == protocol.KindExit {
				return
			}
		}
	}
}

func runService(ctx context.Context, cfg *config.Config, env *config.Environment, withTray bool) {
	log.Println("vtouch starting...")

	mapper, err := env.Mapper()
	if err != nil {
		log.Fatalf("Invalid key table: %v", err)
	}

	transport, geo, err := device.Open(env.Device, nil, config.TerminalChooser())
	if err != nil {
		log.Fatalf("Failed to open device: %v", err)
	}

	opts := device.Options{SwipeDuration: env.Device.SwipeDuration()}
	if pad, key, ok := mapper.Pad(); ok {
		opts.PadRadius = pad.Radius
		log.WithField("key", key).Debugf("Joystick pad at %.3f,%.3f radius %.3f", pad.X, pad.Y, pad.Radius)
	}
	ctrl := device.NewController(transport, geo, opts)

	exec := executor.New(ctrl)
	exec.Start()

	var window *calib.Window
	if r, ok := env.Window.Rect(); ok {
		window = calib.NewWindow(r)
		log.Printf("Initial calibration %d,%d - %d,%d", r.Left, r.Top, r.Right, r.Bottom)
	}

	re, err := reactor.New(reactor.Options{
		Window:    window,
		Anchor:    calib.Point{X: env.Player.X, Y: env.Player.Y},
		Mapper:    mapper,
		Allocator: touch.NewAllocator(),
	}, exec)
	if err != nil {
		log.Fatalf("Failed to create reactor: %v", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := make(chan protocol.Message, env.QueueSize)

	var ports []osutils.Port
	if cfg.API.Enabled {
		ports = append(ports, osutils.Port{Number: cfg.API.Port, Protocol: "TCP"})
	}
	if cfg.UDP.Enabled {
		ports = append(ports, osutils.Port{Number: cfg.UDP.Port, Protocol: "UDP"})
	}
	if len(ports) > 0 {
		if err := osutils.EnsureFirewallRules(ports...); err != nil {
			log.WithError(err).Warn("Failed to configure firewall, remote capture may be blocked")
		}
	}

	src := input.NewLineSource(os.Stdin)
	go func() {
		if err := src.Run(msgs); err != nil {
			log.WithError(err).Warn("Input: stdin read failed")
		}
		log.Debug("Input: stdin closed")
	}()

	if cfg.API.Enabled {
		srv := api.NewServer(cfg.API, env.Name, re, exec, msgs)
		go func() {
			if err := srv.Start(ctx); err != nil {
				log.WithError(err).Error("API server stopped")
			}
		}()
	}

	if cfg.UDP.Enabled {
		udp := network.NewUDPListener(cfg.UDP.Port, msgs)
		if err := udp.Start(); err != nil {
			log.WithError(err).Error("UDP listener not started")
		} else {
			defer udp.Stop()
		}
	}

	runReactor := func() {
		if err := re.Run(ctx, msgs); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Reactor stopped")
		}
	}

	log.Println("vtouch running. Send \"exit\" or press Ctrl+C to stop.")
	if withTray {
		t := tray.New("vtouch")
		label := t.AddLabel(tray.Describe(re.Status()))
		t.AddSeparator()
		t.AddMenuItem("Quit", func() {
			select {
			case msgs <- protocol.Exit():
			default:
				cancel()
			}
		})
		go t.Watch(ctx, label, 500*time.Millisecond, re.Status)
		go func() {
			runReactor()
			t.Stop()
		}()
		t.Run()
	} else {
		runReactor()
	}

	log.Println("Shutting down...")
	cancel()
	src.Stop()
	shutdown(exec, ctrl, re.Status().Slots)
}

// shutdown stops the worker, lifts any contact still down and closes the
// transport.
func shutdown(exec *executor.Executor, ctrl *device.Controller, held []touch.Slot) {
	exec.Close()
	select {
	case <-exec.Done():
	case <-time.After(5 * time.Second):
		log.Warn("Executor did not stop in time")
	}

	for _, s := range held {
		if err := ctrl.Execute(action.TouchEnd{Slot: s}, action.Args{}); err != nil {
			log.WithError(err).WithField("slot", s.Index).Warn("Failed to lift contact")
		}
	}

	st := exec.Stats()
	log.WithFields(log.Fields{
		"executed":  st.Executed,
		"coalesced": st.Coalesced,
		"failed":    st.Failed,
	}).Info("Executor stopped")

	if err := ctrl.Close(); err != nil {
		log.WithError(err).Warn("Failed to close transport")
	}
}
