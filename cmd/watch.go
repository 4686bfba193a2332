package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"voiceeval/internal/models"
	"voiceeval/internal/progress"
)

var (
	watchURL    string
	watchTask   string
	watchOrigin string
)

// watchCmd streams progress events from a running server.
var watchCmd = &cobra.Command{
	Use:         "watch",
	Short:       "Stream progress events from a running server",
	Annotations: map[string]string{skipAppAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		header := http.Header{}
		if watchOrigin != "" {
			header.Set("Origin", watchOrigin)
		}
		conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), watchURL, header)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", watchURL, err)
		}
		defer conn.Close()

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-interrupt
			conn.Close()
		}()

		fmt.Printf("Watching %s", watchURL)
		if watchTask != "" {
			fmt.Printf(" for task %s", watchTask)
		}
		fmt.Println()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if watchTask == "" {
					return nil
				}
				return fmt.Errorf("connection closed before task %s finished: %w", watchTask, err)
			}
			var ev progress.Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				fmt.Fprintf(os.Stderr, "skipping malformed event: %v\n", err)
				continue
			}
			if watchTask != "" && ev.TaskName != watchTask {
				continue
			}
			printEvent(ev)

			if watchTask != "" && ev.Status != models.TaskStatusRunning {
				if ev.Status == models.TaskStatusFailed {
					return fmt.Errorf("task %s failed: %s", ev.TaskName, ev.Error)
				}
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchURL, "url", "ws://localhost:8080/ws", "Progress WebSocket URL")
	watchCmd.Flags().StringVar(&watchTask, "task", "", "Only show this task and exit when it finishes")
	watchCmd.Flags().StringVar(&watchOrigin, "origin", "", "Origin header to send (must be in server.allowed_origins)")
}

func printEvent(ev progress.Event) {
	var status string
	switch ev.Status {
	case models.TaskStatusCompleted:
		status = color.GreenString("%-9s", ev.Status)
	case models.TaskStatusFailed:
		status = color.RedString("%-9s", ev.Status)
	default:
		status = color.YellowString("%-9s", ev.Status)
	}

	line := fmt.Sprintf("%s  %s  %4d%%", ev.TaskName, status, ev.Progress)
	if ev.Error != "" {
		line += "  " + color.RedString(ev.Error)
	}
	fmt.Println(line)
}
