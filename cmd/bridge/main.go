// Command bridge runs the voice bridge against a terminal-driven stand-in
// for the game host. It is a development harness: group and player events
// normally delivered by the host's voice-chat subsystem are typed on stdin
// instead, while the remote side is real.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"

	"github.com/glizzus/voicebridge/internal/config"
	"github.com/glizzus/voicebridge/internal/host"
	"github.com/glizzus/voicebridge/internal/supervisor"
)

func runBridge() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	adapter := newDevAdapter()
	sup, err := supervisor.New(context.Background(), adapter)
	if err != nil {
		return fmt.Errorf("failed to build supervisor: %w", err)
	}
	sup.Start()
	defer sup.Shutdown()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	// Tracks the most recently created group so short commands work
	// without retyping uuids.
	var currentGroup host.GroupID
	var currentName string

	fmt.Println("commands: create <name> | remove | join <player> | leave <player> | cmd <player> <command> [args] | quit")
	for {
		select {
		case <-stop:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "create":
				if len(fields) < 2 {
					fmt.Println("usage: create <name>")
					continue
				}
				currentGroup = uuid.New()
				currentName = strings.Join(fields[1:], " ")
				creator, _ := adapter.addPlayer("console")
				sup.OnGroupCreated(currentGroup, currentName, creator, false)
				fmt.Printf("created group %q (%s)\n", currentName, currentGroup)
			case "remove":
				sup.OnGroupRemoved(currentGroup)
			case "join":
				if len(fields) != 2 {
					fmt.Println("usage: join <player>")
					continue
				}
				player, conn := adapter.addPlayer(fields[1])
				sup.OnJoinGroup(currentGroup, player, conn)
			case "leave":
				if len(fields) != 2 {
					fmt.Println("usage: leave <player>")
					continue
				}
				player, ok := adapter.findPlayer(fields[1])
				if !ok {
					fmt.Println("unknown player")
					continue
				}
				sup.OnLeaveGroup(currentGroup, player)
			case "cmd":
				if len(fields) < 3 {
					fmt.Println("usage: cmd <player> <command> [args]")
					continue
				}
				player, ok := adapter.findPlayer(fields[1])
				if !ok {
					fmt.Println("unknown player")
					continue
				}
				sup.Command(player, true, fields[2], strings.Join(fields[3:], " "))
			case "quit":
				return nil
			default:
				fmt.Println("unknown command")
			}
		}
	}
}

func main() {
	if err := runBridge(); err != nil {
		log.Fatalf("failed to run bridge: %v", err)
	}
}
