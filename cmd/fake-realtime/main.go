// fake-realtime runs a local realtime speech server for development.
// Point the bridge at it with OPENAI_URL=ws://localhost:8090/v1/realtime.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-talk/internal/log"
	"github.com/teslashibe/go-talk/pkg/realtime/realtimetest"
)

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	apiKey := flag.String("api-key", "", "require this bearer token (default: accept any)")
	chunks := flag.Int("chunks", 25, "audio deltas per response")
	chunkMS := flag.Int("chunk-ms", 200, "audio per delta in milliseconds")
	pace := flag.Bool("pace", true, "send deltas in real time")
	tone := flag.Float64("tone", 440, "tone frequency in Hz")
	end := flag.Bool("end", false, "send session.ended after each response")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log.Init(*level)
	logger := log.L()

	srv := realtimetest.New(
		realtimetest.WithAPIKey(*apiKey),
		realtimetest.WithResponse(*chunks, time.Duration(*chunkMS)*time.Millisecond),
		realtimetest.WithPacing(*pace),
		realtimetest.WithTone(*tone, 0.3),
		realtimetest.WithEndAfterResponse(*end),
		realtimetest.WithLogger(logger),
	)

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Error("listen failed", "addr", *addr, "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.Serve(ctx, ln); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
