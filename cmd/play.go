package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oxyrun/config"
	"oxyrun/connection"
	"oxyrun/game"
	"oxyrun/model"
	"oxyrun/server"
)

var playOpts struct {
	url        string
	room       string
	local      bool
	withServer bool
	duration   time.Duration
	fps        int
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Run a headless client driven by a scripted bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if playOpts.duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, playOpts.duration)
			defer cancel()
		}
		if cmd.Flags().Changed("fps") {
			cfg.Client.FPS = playOpts.fps
		}
		if cmd.Flags().Changed("url") {
			cfg.Client.URL = playOpts.url
		}

		if playOpts.withServer {
			httpSrv, srv, _, err := startServer(cfg.Server, cfg.Game)
			if err != nil {
				return err
			}
			defer func() {
				_ = httpSrv.Close()
				srv.Rooms().Shutdown()
			}()
			cfg.Client.URL = "ws://" + cfg.Server.Addr + "/ws"
		}
		return play(ctx, cfg)
	},
}

func play(ctx context.Context, c *config.Config) (err error) {
	log := server.Logger()
	conn, welcome, err := connect(ctx, c, log)
	if err != nil {
		return err
	}
	s := game.NewSession(conn, game.WithLogger(log))
	if err := s.Welcome(welcome, nil); err != nil {
		_ = conn.Close()
		return err
	}
	// 会话结束时一定发送告别并关闭连接
	defer func() {
		if derr := s.Disconnect(); err == nil {
			err = derr
		}
		st := s.Stats()
		log.Info("session stats",
			zap.Int64("frames", st.Frames),
			zap.Int64("batches", st.Batches),
			zap.Int64("events", st.Events),
			zap.Int64("sent", st.Sent),
			zap.Int64("corrections", st.Corrections))
	}()

	err = game.Run(ctx, s, &game.BotInput{Leg: 2, Rest: 1}, c.Client.FPS)
	if errors.Is(err, connection.ErrProtocolViolation) {
		log.Fatal("protocol violation", zap.Error(err))
	}
	return err
}

func connect(ctx context.Context, c *config.Config, log *zap.Logger) (connection.Connection, model.WelcomeMessage, error) {
	if playOpts.local {
		m := model.New()
		m.TicksPerSecond = c.Game.TicksPerSecond
		l := connection.NewLocal(m,
			connection.WithMaxCatchUpTicks(c.Game.MaxCatchUpTicks),
			connection.WithLocalLogger(log))
		return l, l.Welcome(), nil
	}

	u, err := url.Parse(c.Client.URL)
	if err != nil {
		return nil, model.WelcomeMessage{}, fmt.Errorf("parse client url: %w", err)
	}
	if playOpts.room != "" {
		q := u.Query()
		q.Set("room", playOpts.room)
		u.RawQuery = q.Encode()
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	r, w, err := dialWithRetry(dialCtx, u.String(), log)
	if err != nil {
		return nil, model.WelcomeMessage{}, err
	}
	return r, w, nil
}

// dialWithRetry --with-server 时服务端可能尚未开始监听，短暂重试
func dialWithRetry(ctx context.Context, u string, log *zap.Logger) (*connection.Remote, model.WelcomeMessage, error) {
	for {
		r, w, err := connection.Dial(ctx, u, connection.WithRemoteLogger(log))
		if err == nil || errors.Is(err, connection.ErrProtocolViolation) {
			return r, w, err
		}
		select {
		case <-ctx.Done():
			return nil, model.WelcomeMessage{}, err
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func init() {
	playCmd.Flags().StringVar(&playOpts.url, "url", "", "server websocket url, overrides CLIENT_URL")
	playCmd.Flags().StringVar(&playOpts.room, "room", "", "room to join")
	playCmd.Flags().BoolVar(&playOpts.local, "local", false, "play offline against an embedded simulation")
	playCmd.Flags().BoolVar(&playOpts.withServer, "with-server", false, "start a server in-process and connect to it")
	playCmd.Flags().DurationVar(&playOpts.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	playCmd.Flags().IntVar(&playOpts.fps, "fps", 60, "client frame rate")
	RootCmd.AddCommand(playCmd)
}
