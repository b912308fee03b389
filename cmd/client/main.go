package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mberthe/chorus/internal/client"
)

// wsCommander serializes writes to the shared websocket connection.
type wsCommander struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsCommander) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func main() {
	var (
		serverURL = flag.String("server", "ws://localhost:8080/api/ws/signal", "signal endpoint")
		token     = flag.String("token", "", "bearer token")
		deviceID  = flag.String("device", "", "device identifier")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *token == "" || *deviceID == "" {
		log.Fatal().Msg("token and device are required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	url := fmt.Sprintf("%s?token=%s&deviceID=%s", *serverURL, *token, *deviceID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("dial failed")
	}
	defer conn.Close()

	cmd := &wsCommander{conn: conn}
	sup := client.NewSupervisor(cmd)

	go client.NewLocationWorker(cmd, staticPosition{}, 30*time.Second).Run(ctx)

	go func() {
		defer cancel()
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Msg("read failed")
				return
			}
			sup.Dispatch(frame)
		}
	}()

	<-ctx.Done()
	log.Info().Msg("client exited")
}

// staticPosition reports no fix. Real clients plug a platform
// location provider in here.
type staticPosition struct{}

func (staticPosition) Position() (float64, float64, bool) { return 0, 0, false }
