package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/amoylab/hublink/internal/auth"
	"github.com/amoylab/hublink/internal/common/config"
	"github.com/amoylab/hublink/internal/common/dto"
	"github.com/amoylab/hublink/internal/realtime"
	"github.com/amoylab/hublink/internal/transport"
	pkglogger "github.com/amoylab/hublink/pkg/logger"
	"github.com/amoylab/hublink/pkg/metrics"
	"github.com/amoylab/hublink/pkg/version"
)

type chatOptions struct {
	user  string
	token string
	room  string
	email string
	name  string
}

func runChat(cmd *cobra.Command, opts chatOptions) error {
	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration %s: %w", cfgPath, err)
	}

	logger, err := pkglogger.NewLogger(&cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("Starting realtime client",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	tokens := auth.NewTokenSource(cfg.Auth)
	if opts.token != "" {
		tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.token, TokenType: "Bearer"})
	}
	credential, err := auth.Credential(tokens)
	if err != nil {
		return err
	}
	identity, err := resolveIdentity(opts.user, credential, cfg.Auth.IdentityClaim)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
	}

	mgr := realtime.NewManager(logger,
		transport.NewFactory(logger, cfg.Transport),
		realtime.WithMetrics(m),
		realtime.WithTokenSource(tokens),
		realtime.WithDeferredChannels(cfg.Channels.Deferred),
	)
	defer func() { _ = mgr.Close() }()
	if err := mgr.Initialize(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &chat{
		out:      &syncWriter{w: cmd.OutOrStdout()},
		mgr:      mgr,
		identity: identity,
		email:    opts.email,
		name:     opts.name,
		typing:   cfg.Typing,
	}
	if opts.room != "" {
		c.room = dto.ParseID(opts.room)
	}
	c.subscribe()
	c.debouncer = c.newDebouncer(c.room)

	if err := mgr.AuthenticateUser(ctx, identity); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if m != nil {
		g.Go(func() error {
			return serveMetrics(gctx, logger, cfg.Metrics, m, mgr)
		})
	}
	g.Go(func() error {
		return c.readInput(gctx, cmd.InOrStdin())
	})
	err = g.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func resolveIdentity(user, credential, claim string) (auth.Identity, error) {
	if user != "" {
		return auth.Identity{UserID: dto.ParseID(user), Credential: credential}, nil
	}
	if credential == "" {
		return auth.Identity{}, errors.New("either --user or a credential is required")
	}
	return auth.IdentityFromToken(credential, claim)
}

var errQuit = errors.New("quit")

type chat struct {
	out       io.Writer
	mgr       *realtime.Manager
	debouncer *realtime.TypingDebouncer
	identity  auth.Identity
	email     string
	name      string
	typing    config.TypingConfig

	mu   sync.Mutex
	room dto.ID
}

func (c *chat) currentRoom() dto.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *chat) subscribe() {
	c.mgr.OnConnected(func() {
		fmt.Fprintln(c.out, "* connected")
		if room := c.currentRoom(); !room.IsZero() {
			c.mgr.Join(room)
		}
	})
	c.mgr.OnMessage(func(msg dto.Message) {
		fmt.Fprintf(c.out, "[%s] %s: %s\n", msg.ConversationID, msg.SenderID, msg.Message)
	})
	c.mgr.OnTyping(func(ev dto.TypingToggle) {
		if ev.UserID == c.identity.UserID {
			return
		}
		state := "stopped typing"
		if ev.IsTyping {
			state = "is typing"
		}
		fmt.Fprintf(c.out, "* %s %s in %s\n", displayName(ev.UserName, ev.UserID), state, ev.ConversationID)
	})
	c.mgr.OnConversations(func(page dto.ConversationsPage) {
		fmt.Fprintf(c.out, "* conversations page %d\n", page.Page)
		for _, conv := range page.Conversations {
			fmt.Fprintf(c.out, "  %s (%d unread)\n", conv.ID, conv.UnreadCount)
		}
	})
	c.mgr.OnConversationUpdated(func(upd dto.ConversationUpdate) {
		if upd.TotalUnread != nil {
			fmt.Fprintf(c.out, "* %d unread in total\n", *upd.TotalUnread)
		}
		if upd.LastMessage != nil {
			fmt.Fprintf(c.out, "* %s updated: %s\n", upd.ConversationID, upd.LastMessage.Message)
		}
	})
	c.mgr.OnNotification(func(n dto.Notification) {
		fmt.Fprintf(c.out, "! [%s] %s: %s\n", n.Priority, n.Title, n.Message)
	})
}

func displayName(name string, id dto.ID) string {
	if name != "" {
		return name
	}
	return id.String()
}

// readInput sends stdin lines until the input ends, /quit is read or ctx
// is cancelled. The scanner runs on its own goroutine because a blocked
// read cannot be interrupted.
func (c *chat) readInput(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.debouncer.Stop()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				c.debouncer.Stop()
				return errQuit
			}
			if err := c.handleLine(line); err != nil {
				return err
			}
		}
	}
}

func (c *chat) handleLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		c.debouncer.Keystroke("")
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		room := c.currentRoom()
		if room.IsZero() {
			fmt.Fprintln(c.out, "* no room joined, use /join <conversation>")
			return nil
		}
		c.debouncer.Keystroke(line)
		c.debouncer.Sent()
		c.mgr.SendMessage(room, c.identity.UserID, line, c.identity.Credential, c.email)
		return nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return errQuit
	case "/join":
		if len(fields) < 2 {
			fmt.Fprintln(c.out, "* usage: /join <conversation>")
			return nil
		}
		c.debouncer.Stop()
		id := dto.ParseID(fields[1])
		c.mu.Lock()
		c.room = id
		c.mu.Unlock()
		c.debouncer = c.newDebouncer(id)
		c.mgr.Join(id)
	case "/leave":
		room := c.currentRoom()
		if len(fields) > 1 {
			room = dto.ParseID(fields[1])
		}
		if !room.IsZero() {
			c.mgr.Leave(room)
		}
	case "/conversations":
		page := 1
		if len(fields) > 1 {
			if n, err := strconv.Atoi(fields[1]); err == nil && n > 0 {
				page = n
			}
		}
		c.mgr.RequestConversations(page)
	case "/unread":
		c.mgr.RequestUnreadCount()
	default:
		fmt.Fprintf(c.out, "* unknown command %s\n", fields[0])
	}
	return nil
}

func (c *chat) newDebouncer(room dto.ID) *realtime.TypingDebouncer {
	return realtime.NewTypingDebouncer(c.mgr, dto.TypingToggle{
		ConversationID: room,
		UserID:         c.identity.UserID,
		UserEmail:      c.email,
		UserName:       c.name,
	}, c.typing)
}

// serveMetrics exposes /metrics and /healthz until ctx is done.
func serveMetrics(ctx context.Context, logger *zap.Logger, cfg config.MetricsConfig, m *metrics.Metrics, mgr *realtime.Manager) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), m.Middleware())
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		state := mgr.State()
		status := http.StatusOK
		if state != realtime.StateConnected {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"state": state.String()})
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()

	logger.Info("Serving metrics", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// syncWriter serializes writes from listener goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
