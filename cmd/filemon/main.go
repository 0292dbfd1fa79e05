package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"main/internal/hub"
	"main/internal/monitor"
	"main/pkg/uds"
)

func main() {
	if err := run(); err != nil {
		log.Printf("filemon: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", ":8080", "Listen address")
	ctl := flag.String("ctl", "", "Admin control socket path (optional)")
	flag.Parse()

	path := flag.Arg(0)
	if path == "" {
		return errors.New("usage: filemon [-addr host:port] <file-path>")
	}

	loader, err := monitor.NewLoader(path)
	if err != nil {
		return err
	}
	content, err := loader.Load()
	if err != nil {
		return fmt.Errorf("initial load failed: %w", err)
	}
	var current atomic.Value
	current.Store(content)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("listen failed: %w", err)
	}

	h, err := hub.New(hub.Config{
		Listener: ln,
		Policy:   hub.PolicyIgnore,
		Fallback: func(raw net.Conn, req []byte) {
			_, _ = raw.Write(monitor.Page(current.Load().([]byte)))
		},
	})
	if err != nil {
		return err
	}

	watcher, err := monitor.NewWatcher(loader)
	if err != nil {
		return err
	}
	go func() {
		_ = watcher.Run(ctx, func(data []byte) {
			current.Store(data)
			if err := h.Trigger(data); err != nil {
				log.Printf("push dropped: %v", err)
			}
		})
	}()

	if *ctl != "" {
		server, err := uds.NewServer(*ctl)
		if err != nil {
			return err
		}
		if err := server.Listen(); err != nil {
			return fmt.Errorf("control socket listen failed: %w", err)
		}
		go func() {
			if err := server.Serve(ctx, func(cmd string) string {
				switch cmd {
				case "stats":
					return h.Metrics().Snapshot().String()
				case "quit":
					h.Quit()
					return "ok"
				default:
					return "unknown command: " + cmd
				}
			}); err != nil {
				log.Printf("control socket: %v", err)
			}
		}()
		log.Printf("control socket listening: %s", *ctl)
	}

	log.Printf("monitoring %s, serving at %s", loader.Path(), *addr)
	return h.Run(ctx)
}
