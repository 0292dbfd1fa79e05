package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/yanun0323/pkg/sys"

	"main/internal/chat"
	"main/pkg/exception"
	"main/pkg/websocket"
)

// errDone marks a deliberate exit: /quit, stdin EOF, or a signal.
var errDone = errors.New("done")

func main() {
	if err := run(); err != nil {
		log.Printf("chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "127.0.0.1:8080", "Relay address")
	path := flag.String("path", "/chat", "Upgrade request path")
	flag.Parse()

	username := flag.Arg(0)
	if username == "" {
		return errors.New("usage: chat [-addr host:port] <username>")
	}

	lines := make(chan string)
	go readStdin(lines)

	backoff := websocket.DefaultBackoff()
	attempt := 0
	for {
		conn, err := dial(*addr, *path)
		if err != nil {
			attempt++
			delay := backoff.Next(attempt)
			log.Printf("connect %s failed: %v (retry in %s)", *addr, err, delay)
			select {
			case <-sys.Shutdown():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0
		log.Printf("connected to %s as %q", *addr, username)

		err = session(conn, username, lines)
		_ = conn.Close()
		if errors.Is(err, errDone) {
			return nil
		}
		log.Printf("disconnected: %v (reconnecting)", err)
	}
}

func dial(addr, path string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if err := websocket.Handshake(conn, host, path); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// session pumps one connection until it drops or the user quits. Incoming
// text frames are already rendered by the relay and print as-is.
func session(conn net.Conn, username string, lines <-chan string) error {
	disconnected := make(chan error, 1)
	go func() {
		buf := make([]byte, websocket.MaxPayload+8)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				disconnected <- err
				return
			}
			f, err := websocket.ParseFrame(buf[:n])
			if err != nil {
				continue
			}
			switch f.Opcode {
			case websocket.OpText:
				fmt.Println(string(f.Payload))
			case websocket.OpPing:
				pong, err := websocket.BuildFrame(f.Payload, websocket.OpPong)
				if err == nil {
					_, _ = conn.Write(pong)
				}
			case websocket.OpClose:
				disconnected <- exception.ErrWebSocketConnectionClose
				return
			}
		}
	}()

	for {
		select {
		case <-sys.Shutdown():
			sendClose(conn)
			return errDone
		case err := <-disconnected:
			return err
		case line, ok := <-lines:
			if !ok || line == "/quit" {
				sendClose(conn)
				return errDone
			}
			if line == "" {
				continue
			}
			payload := chat.Payload{Username: username, Message: line}.Encode()
			frame, err := websocket.BuildFrame(payload, websocket.OpText)
			if err != nil {
				log.Printf("message dropped: %v", err)
				continue
			}
			if _, err := conn.Write(frame); err != nil {
				return err
			}
		}
	}
}

func sendClose(conn net.Conn) {
	if frame, err := websocket.BuildFrame(nil, websocket.OpClose); err == nil {
		_, _ = conn.Write(frame)
	}
}

func readStdin(lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}
