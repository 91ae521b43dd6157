package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream server status events",
		Long: `Connect to the operator SSE endpoint and print a "status" event each
time the queue or the set of running games changes. The latest status is
sent immediately on connect.

Press Ctrl+C to disconnect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return streamEvents(ctx, cmd.OutOrStdout(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")

	return cmd
}

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
}

func streamEvents(ctx context.Context, w io.Writer, jsonOutput bool) error {
	url := strings.TrimSuffix(cfg.ServerURL, "/") + "/api/v1/events"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if cfg.OperatorToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.OperatorToken)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if !jsonOutput {
		_, _ = fmt.Fprintln(w, "Connected")
	}

	events := newEventReader(resp.Body)
	for {
		event, data, err := events.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				if !jsonOutput {
					_, _ = fmt.Fprintln(w, "Disconnected")
				}
				return nil
			}
			return fmt.Errorf("reading event stream: %w", err)
		}
		printEvent(w, event, data, jsonOutput)
	}
}

// eventReader splits a text/event-stream body into named events.
// Comment lines (keepalives) and unnamed events are skipped.
type eventReader struct {
	scanner *bufio.Scanner
}

func newEventReader(r io.Reader) *eventReader {
	return &eventReader{scanner: bufio.NewScanner(r)}
}

// Next returns the next complete event, or io.EOF when the stream ends
func (e *eventReader) Next() (string, string, error) {
	var event string
	var data []string
	for e.scanner.Scan() {
		line := e.scanner.Text()
		switch {
		case line == "":
			if event != "" {
				return event, strings.Join(data, "\n"), nil
			}
			data = nil
		case strings.HasPrefix(line, ":"):
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				event = value
			case "data":
				data = append(data, value)
			}
		}
	}
	if err := e.scanner.Err(); err != nil {
		return "", "", err
	}
	return "", "", io.EOF
}

func printEvent(w io.Writer, event, data string, jsonOutput bool) {
	now := time.Now()

	if jsonOutput {
		jsonData, _ := json.Marshal(SSEEvent{Time: now, Event: event, Data: data})
		_, _ = fmt.Fprintln(w, string(jsonData))
		return
	}

	timestamp := now.Format(time.DateTime)
	if event == "status" {
		var status StatusResult
		if err := json.Unmarshal([]byte(data), &status); err == nil {
			_, _ = fmt.Fprintf(w, "[%s] queue=%d games=%d\n", timestamp, status.QueueSize, status.ActiveGames)
			return
		}
	}
	_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", timestamp, event, strings.ReplaceAll(data, "\n", " "))
}

