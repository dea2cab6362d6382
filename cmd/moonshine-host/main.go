// Command moonshine-host is a thin wiring entrypoint around the session
// manager. Pairing, discovery, configuration file loading, certificate
// provisioning, and the RTSP handshake are handled by an outer program;
// this binary only demonstrates constructing config.SessionParameters from
// flags and driving session.Start/Stop.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/wayland-virtual-input-go/virtual_keyboard"
	"github.com/bnema/wayland-virtual-input-go/virtual_pointer"
	"github.com/codecat/go-enet"
	"go.uber.org/zap"

	"github.com/moonshine-stream/moonshine/internal/config"
	"github.com/moonshine-stream/moonshine/internal/inject"
	"github.com/moonshine-stream/moonshine/internal/moonerr"
	"github.com/moonshine-stream/moonshine/internal/session"
)

func main() {
	clientIP := flag.String("client", "127.0.0.1", "client IP address to stream to")
	videoPort := flag.Int("video-port", 47998, "client video RTP port")
	audioPort := flag.Int("audio-port", 48000, "client audio RTP port")
	controlPort := flag.Int("control-port", 47999, "client control ENet port")
	width := flag.Int("width", 1920, "capture width")
	height := flag.Int("height", 1080, "capture height")
	fps := flag.Int("fps", 60, "target frame rate")
	bitrateKbps := flag.Int("bitrate", 20000, "target video bitrate in kbps")
	sentryDSN := flag.String("sentry-dsn", "", "Sentry DSN for pipeline failure reporting (optional)")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	report, err := moonerr.NewReporter(log, *sentryDSN, "production")
	if err != nil {
		log.Fatal("reporter init failed", zap.Error(err))
	}
	defer report.Flush()

	params := config.SessionParameters{
		Width:       *width,
		Height:      *height,
		FPS:         *fps,
		BitrateKbps: *bitrateKbps,
		Codec:       config.CodecH264,
		PacketSize:  1024,
		FECPercent:  20,

		AudioEnabled: true,
		ChannelCount: 2,
		OpusBitrate:  128000,

		ClientAddr:        net.ParseIP(*clientIP),
		ClientVideoPort:   *videoPort,
		ClientAudioPort:   *audioPort,
		ClientControlPort: *controlPort,
	}
	if err := params.Validate(); err != nil {
		log.Fatal("invalid session parameters", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keyboardMgr, err := virtual_keyboard.NewVirtualKeyboardManager(ctx)
	if err != nil {
		log.Fatal("virtual keyboard manager init failed", zap.Error(err))
	}
	pointerMgr, err := virtual_pointer.NewVirtualPointerManager(ctx)
	if err != nil {
		log.Fatal("virtual pointer manager init failed", zap.Error(err))
	}
	injector, err := inject.New(log, report, keyboardMgr, pointerMgr, *width, *height, newDemoGamepadFactory(log))
	if err != nil {
		log.Fatal("injector init failed", zap.Error(err))
	}

	controlBind := enet.NewListenAddress(uint16(*controlPort))

	handle, err := session.Start(ctx, log, params, config.DefaultTimeouts(), report, session.Sources{
		VideoSource: newDemoVideoSource(*width, *height, *fps),
		VideoEnc:    newPassthroughEncoder(),
		Injector:    injector,
		ControlBind: controlBind,
	})
	if err != nil {
		log.Fatal("session start failed", zap.Error(err))
	}
	log.Info("session started", zap.String("session_id", handle.ID))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	reason := handle.Stop(stopCtx)
	log.Info("session stopped", zap.String("reason", reason.Kind.String()))
}
