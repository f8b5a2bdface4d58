// Package socket talks to the engine over its raw API socket. It provides
// byte channels for the attach and logs protocols and the engine event
// feed.
package socket

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/melih/lighthouse-dock/internal/core/ports"
)

// DefaultDialTimeout bounds connecting to the engine socket.
const DefaultDialTimeout = 5 * time.Second

// Dialer opens channels to the engine named by a DOCKER_HOST style
// address (unix:///var/run/docker.sock, tcp://host:2375).
type Dialer struct {
	network string
	address string
	timeout time.Duration
	logger  *zap.Logger
}

// NewDialer parses host and returns a Dialer for it.
func NewDialer(host string, logger *zap.Logger) (*Dialer, error) {
	if host == "" {
		host = client.DefaultDockerHost
	}
	u, err := client.ParseHostURL(host)
	if err != nil {
		return nil, fmt.Errorf("invalid engine host %q: %w", host, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dialer{timeout: DefaultDialTimeout, logger: logger}
	switch u.Scheme {
	case "unix", "tcp":
		d.network, d.address = u.Scheme, u.Host
	default:
		return nil, fmt.Errorf("unsupported engine host scheme %q", u.Scheme)
	}
	return d, nil
}

// Network returns the network and address the Dialer connects to.
func (d *Dialer) Network() (network, address string) {
	return d.network, d.address
}

// Dial connects to the engine and wraps the connection in a Channel.
func (d *Dialer) Dial(ctx context.Context) (ports.Channel, error) {
	dialer := net.Dialer{Timeout: d.timeout}
	conn, err := dialer.DialContext(ctx, d.network, d.address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine at %s: %w", d.address, err)
	}
	d.logger.Debug("engine channel opened",
		zap.String("network", d.network), zap.String("address", d.address))
	return NewChannel(conn, d.logger), nil
}
