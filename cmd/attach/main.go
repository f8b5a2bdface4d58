// Command attach connects the local terminal to a container's stdio over
// the engine's attach protocol, or prints its logs with --logs.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/melih/lighthouse-dock/internal/adapters/docker"
	"github.com/melih/lighthouse-dock/internal/adapters/socket"
	"github.com/melih/lighthouse-dock/internal/config"
	"github.com/melih/lighthouse-dock/internal/core/attach"
	"github.com/melih/lighthouse-dock/internal/core/domain"
	"github.com/melih/lighthouse-dock/internal/core/ports"
	"github.com/melih/lighthouse-dock/internal/logging"
)

// detachKey is Ctrl-].
const detachKey = 0x1d

// terminal renders session output on stdout.
type terminal struct{}

func (terminal) WriteText(text string) { os.Stdout.WriteString(text) }

func (terminal) SetTypeable(yes bool) {
	if yes {
		os.Stdout.WriteString("\x1b[?25h")
	} else {
		os.Stdout.WriteString("\x1b[?25l")
	}
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "attach:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg := config.LoadOrDefault()

	var (
		host       string
		apiVersion string
		ttyMode    string
		logs       bool
		follow     bool
		logLevel   string
	)
	flagSet := pflag.NewFlagSet("attach", pflag.ContinueOnError)
	flagSet.StringVar(&host, "host", cfg.Engine.Host, "engine address (unix:// or tcp://)")
	flagSet.StringVar(&apiVersion, "api-version", cfg.Engine.APIVersion, "engine API version")
	flagSet.StringVar(&ttyMode, "tty", "auto", "container tty: auto, true or false")
	flagSet.BoolVar(&logs, "logs", false, "print the container's logs instead of attaching")
	flagSet.BoolVarP(&follow, "follow", "f", false, "with --logs, keep streaming new output")
	flagSet.StringVar(&logLevel, "log-level", "warn", "diagnostic log level")
	flagSet.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: attach [flags] <container>")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return fmt.Errorf("exactly one container is required")
	}
	containerID := flagSet.Arg(0)

	logger, err := logging.New(logging.Config{Level: logLevel, Development: true})
	if err != nil {
		return err
	}
	defer logger.Sync()

	engine := cfg.Engine
	engine.Host = host
	engine.APIVersion = config.NormalizeAPIVersion(apiVersion)
	dialer, err := socket.NewDialer(engine.Host, logger.Component("socket"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	tty, err := resolveTTY(ctx, ttyMode, engine, containerID, logger.Component("docker"))
	if err != nil {
		return err
	}

	if logs {
		isTTY := tty != nil && *tty
		return attach.StreamLogs(ctx, dialer, engine.APIVersion, containerID, isTTY, follow, terminal{})
	}
	return interact(ctx, dialer, engine.APIVersion, containerID, tty, logger)
}

// resolveTTY returns the tty flag to use, looking it up from the
// container's configuration in auto mode. Nil leaves detection to the
// stream itself.
func resolveTTY(ctx context.Context, mode string, engine config.EngineConfig, id string, logger *zap.Logger) (*bool, error) {
	switch mode {
	case "true":
		yes := true
		return &yes, nil
	case "false":
		no := false
		return &no, nil
	case "auto":
	default:
		return nil, fmt.Errorf("invalid --tty value %q", mode)
	}

	adapter, err := docker.NewAdapter(engine, logger)
	if err != nil {
		return nil, err
	}
	defer adapter.Close()
	detail, err := adapter.InspectContainer(ctx, id)
	if docker.IsNotFound(err) {
		return nil, fmt.Errorf("no such container: %s", id)
	}
	if err != nil {
		logger.Debug("cannot inspect container, detecting tty from the stream", zap.Error(err))
		return nil, nil
	}
	tty := domain.NewContainer(id, nil, detail).TTY()
	return &tty, nil
}

func interact(ctx context.Context, dialer ports.Dialer, apiVersion, id string, tty *bool, logger *logging.Logger) error {
	done := make(chan ports.CloseEvent, 1)
	session := attach.NewSession(attach.SessionOptions{
		ContainerID: id,
		APIVersion:  apiVersion,
		Dialer:      dialer,
		TTY:         tty,
		Terminal:    terminal{},
		Logger:      logger.Component("attach"),
		OnDisconnect: func(event ports.CloseEvent) {
			select {
			case done <- event:
			default:
			}
		},
	})

	stdinFd := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFd) {
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			return fmt.Errorf("set terminal raw mode: %w", err)
		}
		defer term.Restore(stdinFd, oldState)
	}

	if err := session.Open(ctx); err != nil {
		return err
	}
	session.SetTypeable(true)

	go pumpInput(session)

	select {
	case event := <-done:
		terminal{}.SetTypeable(true)
		if event.Problem != "" && event.Problem != "detached" {
			return fmt.Errorf("connection closed: %s", event.Problem)
		}
		return nil
	case <-ctx.Done():
		session.Close("terminated")
		return nil
	}
}

// pumpInput forwards stdin to the session until Ctrl-] or end of input.
func pumpInput(session *attach.Session) {
	buf := make([]byte, 1024)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if i := bytes.IndexByte(chunk, detachKey); i >= 0 {
				session.Input(chunk[:i])
				session.Close("detached")
				return
			}
			if err := session.Input(chunk); err != nil {
				return
			}
		}
		if err != nil {
			session.Close("detached")
			return
		}
	}
}
