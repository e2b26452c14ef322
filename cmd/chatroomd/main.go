// Command chatroomd runs the multi-room TCP chat server.
//
// Usage: chatroomd [port]
//
// All state is memory-only: nothing is persisted across a restart, and
// a room exists only for as long as it has members.
package main

import (
	"net/http"
	"os"

	"github.com/ephemeral/chatroom/internal/chatroom"
	"github.com/ephemeral/chatroom/internal/config"
	"github.com/ephemeral/chatroom/internal/logx"
	"github.com/ephemeral/chatroom/internal/metrics"
	"github.com/ephemeral/chatroom/internal/server"
)

// metricsAddr is the loopback-only address the diagnostics HTTP listener
// binds to. Unlike the chat listener, a bind failure here is non-fatal:
// metrics are an ambient concern, not part of the wire protocol.
const metricsAddr = "127.0.0.1:9090"

func main() {
	port, err := config.Parse(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Stderr.WriteString(config.Usage + "\n")
		os.Exit(1)
	}

	logx.Init(os.Getenv("CHATROOMD_ENV") != "production")

	metricsReg := metrics.NewRegistry()
	registry := chatroom.NewRegistry(metricsReg)
	srv := server.New(registry, metricsReg)

	go serveMetrics(metricsReg)

	if err := srv.ListenAndServe(port); err != nil {
		logx.Fatal(err, "listener failed")
	}
}

func serveMetrics(reg *metrics.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())

	if err := http.ListenAndServe(metricsAddr, mux); err != nil {
		logx.Warn("metrics listener did not start", "addr", metricsAddr, "error", err.Error())
	}
}
