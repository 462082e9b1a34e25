package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"taskmind/internal/capture"
	"taskmind/internal/copilot"
	"taskmind/internal/detect"
	"taskmind/internal/ipc"
	"taskmind/internal/llm"
	"taskmind/internal/notify"
	"taskmind/internal/overlay"
	"taskmind/internal/proxy"
	"taskmind/internal/transcript"
	"taskmind/pkg/audioconv"
	"taskmind/pkg/stt"
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
	listenAddr := cli.String("listen", "127.0.0.1:8093", "Overlay websocket address")
	proxyAddr := cli.StringP("proxy", "p", "", "SOCKS proxy address (empty = direct)")
	sttBackend := cli.String("stt", "openai", "Transcription backend: openai or whisper")
	whisperModel := cli.String("whisper-model", "third_party/whisper.cpp/models/ggml-base.en.bin", "Local whisper model path")
	chatModel := cli.String("model", "", "Chat model override")
	tasksFile := cli.StringP("tasks", "t", "", "Task board snapshot JSON")
	chime := cli.String("chime", "", "Notification chime mp3 (empty = silent)")
	autoListen := cli.Bool("auto-listen", false, "Start listening immediately")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Error("OPENAI_API_KEY not set")
		os.Exit(1)
	}

	var httpClient *http.Client
	if *proxyAddr != "" {
		var err error
		httpClient, err = proxy.NewSocksClient(*proxyAddr)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
			os.Exit(1)
		}
		log.Debug("Loaded proxy")
	}

	llmCfg := llm.DefaultConfig()
	if *chatModel != "" {
		llmCfg.Model = *chatModel
	}
	api := llm.NewClient(apiKey, llmCfg, httpClient)

	var (
		transcriber capture.Transcriber
		whisper     *stt.Transcriber
	)
	switch *sttBackend {
	case "whisper":
		var err error
		whisper, err = stt.NewTranscriber(*whisperModel, stt.Options{Language: "en"})
		if err != nil {
			log.Error("Failed to init whisper", "err", err)
			os.Exit(1)
		}
		defer whisper.Close()
		transcriber = whisper
		log.Debug("Loaded whisper")
	default:
		transcriber = api
	}

	rec := capture.NewRecorder()
	defer rec.Close()

	buf := transcript.NewBuffer(30 * time.Second)
	pipeline := capture.NewPipeline(
		capture.DefaultConfig(), rec, transcriber, buf, detect.NewDetector(), log.Default(),
	)

	svc := copilot.NewService(api, log.Default())
	hub := overlay.NewHub(log.Default())
	notifier := notify.NewDesktop(*chime, log.Default())

	orch := copilot.NewOrchestrator(
		copilot.DefaultOrchestratorConfig(),
		copilot.Callbacks{
			OnOverlayShow: hub.ShowResponse,
			OnOverlayHide: hub.Hide,
			OnListening:   hub.Listening,
			OnError: func(msg string) {
				log.Error(msg)
				hub.Hide()
			},
			OnStatus: func(msg string) {
				log.Info(msg)
				hub.Thinking(msg)
			},
		},
		pipeline, svc, notifier, log.Default(),
	)
	orch.SetAudioInit(rec.Init)

	pipeline.OnTranscript(orch.HandleTranscript)
	pipeline.OnQuestion(orch.HandleQuestion)
	hub.OnDismiss(func() { log.Debug("overlay dismissed") })

	if err := orch.Initialize(); err != nil {
		log.Error("Failed to initialize", "err", err)
		os.Exit(1)
	}

	if *tasksFile != "" {
		loadTasks(orch, *tasksFile)
	}

	mux := http.NewServeMux()
	mux.Handle("/overlay", hub)
	go func() {
		if err := http.ListenAndServe(*listenAddr, mux); err != nil {
			log.Error("Overlay server failed", "err", err)
			os.Exit(1)
		}
	}()

	ctx := context.Background()

	if err := ipc.StartServer(func(msg ipc.ControlMessage) {
		handleControl(ctx, orch, pipeline, msg, *tasksFile)
	}); err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}

	log.Info("Boot up - successful")
	notifier.Notify("TaskMind Copilot Ready", "Your AI meeting assistant is now active and ready to help!")

	if *autoListen {
		if err := orch.StartListening(ctx); err != nil {
			log.Error("Failed to start listening", "err", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	orch.Destroy()
}

func handleControl(ctx context.Context, orch *copilot.Orchestrator, pipeline *capture.Pipeline, msg ipc.ControlMessage, tasksFile string) {
	switch msg.Cmd {
	case ipc.CmdAsk:
		if msg.Arg == "" {
			log.Warn("ask without a question")
			return
		}
		orch.AskManual(msg.Arg)

	case ipc.CmdRepeat:
		orch.RepeatLast()

	case ipc.CmdToggleListening, ipc.CmdToggleRecording:
		// recorder and listener are one pipeline here
		if err := orch.ToggleListening(ctx); err != nil {
			log.Error("Toggle failed", "err", err)
		}

	case ipc.CmdClearHistory:
		orch.ClearHistory()

	case ipc.CmdReloadContext:
		if tasksFile == "" {
			log.Warn("no tasks file configured")
			return
		}
		loadTasks(orch, tasksFile)

	case ipc.CmdIngest:
		go ingestFile(ctx, pipeline, msg.Arg)

	default:
		log.Warn("Unknown command", "cmd", msg.Cmd)
	}
}

func loadTasks(orch *copilot.Orchestrator, path string) {
	tc, err := copilot.LoadTaskContext(path)
	if err != nil {
		log.Error("Failed to load task context", "path", path, "err", err)
		return
	}
	orch.UpdateTaskContext(tc)
}

func ingestFile(ctx context.Context, pipeline *capture.Pipeline, path string) {
	if path == "" {
		log.Warn("ingest without a file")
		return
	}

	pcm, err := audioconv.DecodeFileTo16k(path, audioconv.Options{})
	if err != nil {
		log.Error("Failed to decode recording", "path", path, "err", err)
		return
	}

	if err := pipeline.IngestPCM(ctx, pcm); err != nil {
		log.Error("Failed to ingest recording", "path", path, "err", err)
		return
	}

	log.Info("Recording ingested", "path", path, "samples", len(pcm))
}
