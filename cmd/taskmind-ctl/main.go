package main

import (
	"fmt"
	"os"
	"strings"

	"taskmind/internal/ipc"
)

const usage = `usage: taskmind-ctl <command> [arg]

commands:
  ask <question...>    ask the copilot a manual question
  repeat               repeat the last answer
  toggle-listening     start/stop live listening
  toggle-recording     start/stop the recorder
  clear-history        drop the conversation history
  reload-context       reload the task board snapshot
  ingest <file>        run a meeting recording through the pipeline
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(2)
	}

	cmd := os.Args[1]
	arg := strings.Join(os.Args[2:], " ")

	switch cmd {
	case ipc.CmdAsk, ipc.CmdRepeat, ipc.CmdToggleListening, ipc.CmdToggleRecording,
		ipc.CmdClearHistory, ipc.CmdReloadContext, ipc.CmdIngest:
	default:
		fmt.Print(usage)
		os.Exit(2)
	}

	if err := ipc.SendCommand(cmd, arg); err != nil {
		fmt.Println("taskmindd not running:", err)
		os.Exit(1)
	}
}
