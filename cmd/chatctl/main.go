package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"main/pkg/uds"
)

func main() {
	if err := run(); err != nil {
		log.Printf("chatctl: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctl := flag.String("ctl", "/tmp/chatd.sock", "Admin control socket path")
	timeout := flag.Duration("timeout", 5*time.Second, "Response read timeout")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		return errors.New("usage: chatctl [-ctl socket] <stats|quit|history>")
	}

	client, err := uds.NewClient(*ctl)
	if err != nil {
		return err
	}
	conn, err := client.Dial()
	if err != nil {
		return fmt.Errorf("dial %s failed: %w", client.Path(), err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return err
	}
	// half-close so the daemon answers and hangs up after this command
	if err := conn.CloseWrite(); err != nil {
		return err
	}

	_ = conn.SetReadDeadline(time.Now().Add(*timeout))
	if _, err := io.Copy(os.Stdout, conn); err != nil {
		return fmt.Errorf("read response failed: %w", err)
	}
	return nil
}
