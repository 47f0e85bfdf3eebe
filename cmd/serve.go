package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"oxyrun/config"
	"oxyrun/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the networked authority",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); cmd.Flags().Changed("addr") {
			cfg.Server.Addr = addr
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, cfg.Server, cfg.Game)
	},
}

// startServer 先同步监听再在后台提供服务，端口占用等错误直接返回；--with-server 与 serve 共用
func startServer(sc config.ServerConfig, gc config.GameConfig) (*http.Server, *server.Server, <-chan error, error) {
	ln, err := net.Listen("tcp", sc.Addr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("listen %s: %w", sc.Addr, err)
	}
	rooms := server.NewRoomManager(server.RoomConfig{
		TicksPerSecond:    gc.TicksPerSecond,
		MessagesPerSecond: sc.MessagesPerSecond,
		MessageBurst:      sc.MessageBurst,
	})
	// 先预创建默认房间，便于快速试跑
	_ = rooms.GetOrCreateRoom(sc.DefaultRoom)
	srv := server.New(sc, rooms)
	httpSrv := &http.Server{Addr: sc.Addr, Handler: srv.Router(), ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		server.Log.Infof("oxyrun listening on %s (ws endpoint: /ws)", ln.Addr())
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	return httpSrv, srv, errc, nil
}

func runServer(ctx context.Context, sc config.ServerConfig, gc config.GameConfig) error {
	httpSrv, srv, errc, err := startServer(sc, gc)
	if err != nil {
		return err
	}
	select {
	case err := <-errc:
		srv.Rooms().Shutdown()
		return err
	case <-ctx.Done():
	}
	server.Log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = httpSrv.Shutdown(shutdownCtx)
	srv.Rooms().Shutdown()
	return err
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address, overrides SERVER_ADDR")
	RootCmd.AddCommand(serveCmd)
}
