// Package ipc is the local control channel: a unix socket speaking one
// JSON message per connection.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
)

const SocketPath = "/tmp/voxchat.sock"

// ControlMessage is a command from voxchat-ctl.
type ControlMessage struct {
	Cmd string `json:"cmd"` // "trigger", "stop", "status"
}

// Response is the daemon's answer.
type Response struct {
	OK    bool   `json:"ok"`
	Phase string `json:"phase,omitempty"`
	Error string `json:"error,omitempty"`
}

// StartServer listens on the control socket and calls handler for each
// message, writing its response back.
func StartServer(handler func(ControlMessage) Response) error {
	os.Remove(SocketPath)

	ln, err := net.Listen("unix", SocketPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				continue
			}
			go handleConn(conn, handler)
		}
	}()

	return nil
}

func handleConn(conn net.Conn, handler func(ControlMessage) Response) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return
	}
	resp := handler(msg)
	_ = json.NewEncoder(conn).Encode(resp)
}

// SendCommand connects to a running daemon and sends one command.
func SendCommand(cmd string) (Response, error) {
	conn, err := net.Dial("unix", SocketPath)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return Response{}, err
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
