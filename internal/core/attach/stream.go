package attach

import (
	"context"
	"fmt"
	"net/url"

	"github.com/melih/lighthouse-dock/internal/core/ports"
)

// LogsRequest returns the request for a container's historical output.
func LogsRequest(apiVersion, containerID string, follow bool) []byte {
	query := url.Values{}
	query.Set("stdout", "1")
	query.Set("stderr", "1")
	if follow {
		query.Set("follow", "1")
	}
	return []byte(fmt.Sprintf("GET /%s/containers/%s/logs?%s HTTP/1.0\r\n\r\n",
		apiVersion, url.PathEscape(containerID), query.Encode()))
}

// StreamLogs requests the logs of containerID on a new channel and writes
// them to sink until the engine ends the stream or ctx is cancelled.
// Containers with a tty log raw text; others log multiplexed frames.
func StreamLogs(ctx context.Context, dialer ports.Dialer, apiVersion, containerID string, tty, follow bool, sink Sink) error {
	channel, err := dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to open logs channel: %w", err)
	}
	if err := channel.Send(LogsRequest(apiVersion, containerID, follow)); err != nil {
		channel.Close("internal-error")
		return fmt.Errorf("failed to send logs request: %w", err)
	}

	framing := FramingBinary
	if tty {
		framing = FramingText
	}
	reader := NewLogReader(LogReaderOptions{Framing: framing, Sink: sink})

	done := make(chan ports.CloseEvent, 1)
	token := channel.Subscribe(ports.ChannelHandler{
		Message: func(data []byte) { reader.Write(data) },
		Closed:  func(event ports.CloseEvent) { done <- event },
	})

	select {
	case event := <-done:
		channel.Unsubscribe(token)
		reader.Flush()
		if status := reader.Status(); status.Code != 0 && !status.OK() {
			return fmt.Errorf("logs request failed: %d %s", status.Code, status.Reason)
		}
		if event.Problem != "" {
			return fmt.Errorf("logs channel closed: %s", event.Problem)
		}
		return nil
	case <-ctx.Done():
		channel.Unsubscribe(token)
		channel.Close("cancelled")
		return ctx.Err()
	}
}
