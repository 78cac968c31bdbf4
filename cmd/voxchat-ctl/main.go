package main

import (
	"fmt"
	"os"

	"voxchat/internal/ipc"
)

func main() {
	cmd := "status"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	resp, err := ipc.SendCommand(cmd)
	if err != nil {
		fmt.Println("voxchat not running:", err)
		os.Exit(1)
	}

	if resp.Error != "" {
		fmt.Println("error:", resp.Error)
		os.Exit(1)
	}
	fmt.Println("ok, phase:", resp.Phase)
}
