package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"

	"main/internal/chat"
	"main/internal/hub"
	"main/internal/ops"
	"main/pkg/conn"
	"main/pkg/uds"
)

type runtimeConfig struct {
	v atomic.Value
}

func newRuntimeConfig(loaded ops.Loaded) *runtimeConfig {
	var rc runtimeConfig
	rc.v.Store(loaded)
	return &rc
}

func (r *runtimeConfig) Load() ops.Loaded {
	return r.v.Load().(ops.Loaded)
}

func (r *runtimeConfig) Update(loaded ops.Loaded) {
	r.v.Store(loaded)
}

func main() {
	if err := run(); err != nil {
		log.Printf("chatd: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addrFlag := flag.String("addr", "", "Listen address (overrides config)")
	configPath := flag.String("config", "", "Path to JSON config")
	configReload := flag.Duration("config-reload-interval", 2*time.Second, "Config reload interval (0=disable)")
	ctlFlag := flag.String("ctl", "", "Admin control socket path (overrides config)")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disabled)")
	flag.Parse()

	loaded, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if *addrFlag != "" {
		loaded.ListenAddr = *addrFlag
	}
	if *ctlFlag != "" {
		loaded.ControlSocket = *ctlFlag
	}
	runtime := newRuntimeConfig(loaded)

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "chatd",
			ServerAddress:   *pyroscopeAddr,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return fmt.Errorf("pyroscope start failed: %w", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *chat.Store
	if loaded.History.Enabled {
		client, err := conn.New(conn.Option{
			Host:     loaded.History.Host,
			Port:     loaded.History.Port,
			User:     loaded.History.User,
			Password: loaded.History.Password,
			Database: loaded.History.Database,
			SSLMode:  loaded.History.SSLMode,
		})
		if err != nil {
			return fmt.Errorf("history db connect failed: %w", err)
		}
		defer client.Close()
		store, err = chat.NewStore(client)
		if err != nil {
			return fmt.Errorf("history store init failed: %w", err)
		}
		defer store.Close()
		log.Printf("chat history enabled: db=%s", loaded.History.Database)
	}

	ln, err := net.Listen("tcp", loaded.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen failed: %w", err)
	}

	cfg := hub.Config{
		Listener:         ln,
		Policy:           hub.PolicyFanOut,
		QueueSize:        loaded.Limits.QueueSize,
		HandshakeTimeout: loaded.Limits.HandshakeTimeout,
		MaxPayload:       loaded.Limits.MaxPayload,
	}
	if store != nil {
		cfg.Recorder = store
	}
	h, err := hub.New(cfg)
	if err != nil {
		return err
	}

	if *configPath != "" && *configReload > 0 {
		go watchConfig(ctx, *configPath, *configReload, func(next ops.Loaded) {
			runtime.Update(next)
			h.SetMaxPayload(next.Limits.MaxPayload)
		})
	}

	if loaded.ControlSocket != "" {
		server, err := uds.NewServer(loaded.ControlSocket)
		if err != nil {
			return err
		}
		if err := server.Listen(); err != nil {
			return fmt.Errorf("control socket listen failed: %w", err)
		}
		go func() {
			if err := server.Serve(ctx, adminHandler(h, store, runtime)); err != nil {
				log.Printf("control socket: %v", err)
			}
		}()
		log.Printf("control socket listening: %s", loaded.ControlSocket)
	}

	log.Printf("chat relay listening: %s", loaded.ListenAddr)
	return h.Run(ctx)
}

// adminHandler answers newline-delimited control commands.
func adminHandler(h *hub.Hub, store *chat.Store, runtime *runtimeConfig) func(cmd string) string {
	return func(cmd string) string {
		switch cmd {
		case "stats":
			return h.Metrics().Snapshot().String()
		case "quit":
			h.Quit()
			return "ok"
		case "history":
			if store == nil {
				return "history disabled"
			}
			msgs, err := store.Recent(runtime.Load().History.RecentLimit)
			if err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			if len(msgs) == 0 {
				return "no messages"
			}
			var b strings.Builder
			for _, m := range msgs {
				fmt.Fprintf(&b, "[%s] %s\n", m.Username, m.Body)
			}
			return b.String()
		default:
			return "unknown command: " + cmd
		}
	}
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Default(), nil
	}
	return ops.Load(path)
}

func watchConfig(ctx context.Context, path string, interval time.Duration, update func(ops.Loaded)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				log.Printf("config stat failed: %v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			loaded, err := ops.Load(path)
			if err != nil {
				log.Printf("config reload failed: %v", err)
				continue
			}
			update(loaded)
			lastMod = info.ModTime()
			log.Printf("config reloaded: %s", path)
		}
	}
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
