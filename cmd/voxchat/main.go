package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"voxchat/internal/audio"
	"voxchat/internal/bus"
	"voxchat/internal/capability"
	"voxchat/internal/clipwatch"
	"voxchat/internal/dictation"
	"voxchat/internal/intent"
	"voxchat/internal/ipc"
	"voxchat/internal/keyio"
	"voxchat/internal/notify"
	"voxchat/internal/orchestrator"
	"voxchat/internal/probe"
	"voxchat/internal/proxy"
	"voxchat/internal/tts"
	"voxchat/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	model := cli.StringP("model", "m", "third_party/whisper.cpp/models/ggml-tiny.bin", "Whisper model path")
	lang := cli.String("lang", "ja", "Intent transcription language")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy for the OpenAI fallback")
	busURL := cli.StringP("bus", "b", "", "Websocket event bus url (optional)")
	chimePath := cli.String("chime", "", "Chime sound file played before each capture")
	voice := cli.String("voice", "", "Synthesis voice name")
	saveClips := cli.String("save-clips", "", "Directory to dump intent clips as wav")
	execRec := cli.Bool("exec-rec", false, "Capture with the external rec command instead of portaudio")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)

	if *busURL == "" {
		*busURL = os.Getenv("BUS_URL")
	}

	reg, cleanup, err := buildRegistry(*model, *proxyAddr, *busURL, *chimePath, *voice, *execRec)
	if err != nil {
		log.Error("Boot failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := reg.Check(); err != nil {
		log.Error("Boot failed", "err", err)
		os.Exit(1)
	}

	log.Info("Boot up - successful")

	icfg := intent.DefaultConfig()
	icfg.Language = *lang
	icfg.SaveDir = *saveClips

	engine := intent.NewEngine(reg.Capture, reg.Transcriber, icfg)
	if reg.Chime != nil {
		engine.SetChime(reg.Chime)
	}
	if reg.Speaker != nil {
		engine.SetPrompter(reg.Speaker)
	}

	// The stop-phrase monitor shares the capture and transcriber but keeps
	// the chime off: its clips run while the user dictates.
	monitor := intent.NewEngine(reg.Capture, reg.Transcriber, icfg)

	ctrl := dictation.NewController(reg.Keys, reg.Probe, dictation.DefaultConfig())
	watcher := clipwatch.NewWatcher(reg.Clipboard)

	orch, err := orchestrator.New(orchestrator.Deps{
		Dictation: ctrl,
		Intent:    engine,
		Monitor:   monitor,
		Watcher:   watcher,
		Keys:      reg.Keys,
		Speaker:   reg.Speaker,
		Events:    reg.Bus,
	}, orchestrator.DefaultConfig())
	if err != nil {
		log.Error("Bad cycle config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trigger := make(chan struct{}, 1)
	if err := ipc.StartServer(func(msg ipc.ControlMessage) ipc.Response {
		switch msg.Cmd {
		case "trigger":
			select {
			case trigger <- struct{}{}:
			default:
			}
			return ipc.Response{OK: true, Phase: orch.Phase().String()}
		case "stop":
			orch.RequestStop()
			return ipc.Response{OK: true, Phase: orch.Phase().String()}
		case "status":
			return ipc.Response{OK: true, Phase: orch.Phase().String()}
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return ipc.Response{Error: fmt.Sprintf("unknown command %q", msg.Cmd)}
		}
	}); err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}

	printBanner()

	if err := orch.Run(ctx); err != nil {
		log.Error("Cycle failed", "err", err)
		os.Exit(1)
	}
	log.Info("Cycle finished, waiting for trigger")

	for {
		select {
		case <-ctx.Done():
			log.Info("Shutting down")
			return
		case <-trigger:
			if err := orch.Run(ctx); err != nil {
				log.Error("Cycle failed", "err", err)
				continue
			}
			log.Info("Cycle finished, waiting for trigger")
		}
	}
}

// buildRegistry wires every capability it can, degrading per capability
// instead of aborting. Only the key emitter is allowed to be fatal, and
// Check decides that.
func buildRegistry(model, proxyAddr, busURL, chimePath, voice string, execRec bool) (*capability.Registry, func(), error) {
	reg := &capability.Registry{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if keys, err := keyio.NewEmitter(); err != nil {
		log.Warn("No key emitter", "err", err)
	} else {
		reg.Keys = keys
	}

	reg.Probe = probe.NewProcessProbe(probe.DictationProcesses...)

	if execRec {
		reg.Capture = audio.NewExecRecorder()
	} else {
		rec := audio.NewRecorder()
		if err := rec.Init(); err != nil {
			log.Warn("Portaudio unavailable, falling back to rec", "err", err)
			reg.Capture = audio.NewExecRecorder()
		} else {
			closers = append(closers, rec.Close)
			reg.Capture = rec
		}
	}

	var transcribers []stt.Transcriber
	if whisper, err := stt.NewWhisper(model); err != nil {
		log.Warn("Local whisper unavailable", "model", model, "err", err)
	} else {
		transcribers = append(transcribers, whisper)
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		httpClient, err := socksClient(proxyAddr)
		if err != nil {
			log.Warn("Socks proxy unavailable, skipping API transcriber", "proxy", proxyAddr, "err", err)
		} else if remote, err := stt.NewOpenAI(apiKey, httpClient); err != nil {
			log.Warn("API transcriber unavailable", "err", err)
		} else {
			transcribers = append(transcribers, remote)
		}
	}
	if chain, err := stt.NewChain(transcribers...); err != nil {
		log.Warn("No transcriber available", "err", err)
	} else {
		reg.Transcriber = chain
		closers = append(closers, func() { chain.Close() })
	}

	reg.Speaker = tts.NewSayCommand(voice)
	reg.Clipboard = clipwatch.SystemClipboard{}

	if chimePath != "" {
		reg.Chime = notify.NewChime(chimePath)
	}

	if busURL != "" {
		if b, err := bus.Dial(busURL); err != nil {
			log.Warn("Event bus unavailable", "url", busURL, "err", err)
		} else {
			reg.Bus = b
			closers = append(closers, func() { b.Close() })
		}
	}

	return reg, cleanup, nil
}

func socksClient(addr string) (*http.Client, error) {
	if addr == "" {
		return nil, nil
	}
	return proxy.NewSocksClient(addr)
}

func printBanner() {
	fmt.Println("============================================================")
	fmt.Println("  voxchat - 音声チャットループ")
	fmt.Println("============================================================")
	fmt.Println("使い方:")
	fmt.Println("  1. チャット画面の入力欄にカーソルを置いてください")
	fmt.Println("  2. 各確認には「はい」または「いいえ」と話してください")
	fmt.Println("  3. 質問の入力を終えるには「終わり」と話してください")
	fmt.Println("  4. 回答が表示されたら、回答をコピーしてください")
	fmt.Println("============================================================")
}
