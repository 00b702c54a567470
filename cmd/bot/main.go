// Command bot runs headless clients against a server for load testing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"

	"terrafort/server/internal/net/proto"
)

var directionKeys = []string{"upArrow", "downArrow", "leftArrow", "rightArrow"}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := getEnvDefault("ADDR", "localhost:8080")
	botCountStr := getEnvDefault("BOT_COUNT", "3")
	botCount, err := strconv.Atoi(botCountStr)
	if err != nil || botCount < 1 {
		slog.Error("invalid BOT_COUNT", "value", botCountStr)
		os.Exit(1)
	}
	codec, ok := proto.NewCodec(getEnvDefault("FRAME_CODEC", proto.CodecJSON))
	if !ok {
		slog.Warn("unknown FRAME_CODEC, using json")
	}

	serverURL := fmt.Sprintf("ws://%s/ws", addr)
	slog.Info("starting bots", "count", botCount, "server", serverURL, "codec", codec.Name())

	var wg sync.WaitGroup
	for i := range botCount {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runBot(ctx, serverURL, codec, id)
		}(i)
	}

	wg.Wait()
	slog.Info("all bots stopped")
}

func runBot(ctx context.Context, serverURL string, codec proto.Codec, id int) {
	logger := slog.With("botID", id)
	for {
		if ctx.Err() != nil {
			return
		}
		err := botSession(ctx, serverURL, codec, id, logger)
		if err != nil && ctx.Err() == nil {
			logger.Warn("bot session ended, reconnecting", "err", err)
			time.Sleep(2 * time.Second)
		}
	}
}

type bot struct {
	conn    *websocket.Conn
	codec   proto.Codec
	msgType websocket.MessageType
	held    string
}

func (b *bot) send(ctx context.Context, event string, payload any) error {
	data, err := b.codec.Encode(event, payload)
	if err != nil {
		return err
	}
	return b.conn.Write(ctx, b.msgType, data)
}

func (b *bot) setKey(ctx context.Context, key string, held bool) error {
	return b.send(ctx, proto.EventInput, proto.InputMessage{Keycode: key, State: &held})
}

func botSession(ctx context.Context, serverURL string, codec proto.Codec, id int, logger *slog.Logger) error {
	conn, _, err := websocket.Dial(ctx, serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 22)

	b := &bot{conn: conn, codec: codec, msgType: websocket.MessageText}
	if codec.Binary() {
		b.msgType = websocket.MessageBinary
	}
	logger.Info("connected")

	readErr := make(chan error, 1)
	go func() {
		var frames, entities int
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				readErr <- err
				return
			}
			msg, err := codec.Decode(data)
			if err != nil {
				continue
			}
			frames++
			switch msg.Event {
			case proto.EventRequestUsername:
				if err := b.send(ctx, proto.EventRename, fmt.Sprintf("bot-%d", id)); err != nil {
					readErr <- fmt.Errorf("rename: %w", err)
					return
				}
			case proto.EventReset:
				var frame proto.ResetFrame
				if err := msg.Bind(&frame); err == nil {
					entities = len(frame.Entities)
				}
				if frames%300 == 0 {
					logger.Info("state", "frames", frames, "entities", entities)
				}
			}
		}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "shutdown")
			return nil
		case err := <-readErr:
			return fmt.Errorf("read: %w", err)
		case <-ticker.C:
			if b.held != "" {
				if err := b.setKey(ctx, b.held, false); err != nil {
					return fmt.Errorf("write: %w", err)
				}
			}
			b.held = directionKeys[rand.IntN(len(directionKeys))]
			if err := b.setKey(ctx, b.held, true); err != nil {
				return fmt.Errorf("write: %w", err)
			}
			fire := rand.IntN(4) == 0
			if err := b.setKey(ctx, "space", fire); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}
