// Email Assistant CLI
//
// Processes inbound emails through the triage pipeline: classification,
// summarization, history context, reply drafting and an escalation verdict.
//
// Usage:
//
//	go run ./cmd                             # Process the built-in demo email
//	go run ./cmd -file email.json            # Process a single email file
//	go run ./cmd -batch test_emails          # Process a directory of emails
//	go run ./cmd -interactive                # Prompt for email details
//	go run ./cmd -clear-memory a@b.com       # Clear history for one correspondent
//	go run ./cmd -clear-memory all           # Clear the whole ledger
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sonukumar047/email-assistant/triagecore/config"
	"github.com/sonukumar047/email-assistant/triagecore/events"
	"github.com/sonukumar047/email-assistant/triagecore/history"
	"github.com/sonukumar047/email-assistant/triagecore/llm"
	"github.com/sonukumar047/email-assistant/triagecore/logging"
	"github.com/sonukumar047/email-assistant/triagecore/observability"
	"github.com/sonukumar047/email-assistant/triagecore/processor"
	"github.com/sonukumar047/email-assistant/triagecore/state"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	filePath := flag.String("file", "", "path to email JSON file")
	tone := flag.String("tone", "", "reply tone style (professional|friendly|formal|casual)")
	interactive := flag.Bool("interactive", false, "run in interactive mode")
	batchDir := flag.String("batch", "", "batch process a directory of email JSON files")
	outputDir := flag.String("output", "output", "directory for result files")
	clearMemory := flag.String("clear-memory", "", "clear history for an email address, or 'all'")
	noSave := flag.Bool("no-save", false, "do not persist this interaction to memory")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	otlpEndpoint := flag.String("otlp-endpoint", "", "OTLP gRPC endpoint for traces (e.g. localhost:4317)")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	level := cfg.LogLevel
	if *verbose {
		level = "debug"
	}
	logger := logging.New(logging.Options{Level: level, JSONFormat: false, Output: os.Stderr})

	store := history.NewStore(cfg.LedgerPath, cfg.MaxHistory, logger)

	// Clear-memory mode needs no pipeline.
	if *clearMemory != "" {
		if err := runClearMemory(store, *clearMemory); err != nil {
			logger.Error("clear_memory_failed", "target", *clearMemory, "error", err.Error())
			os.Exit(1)
		}
		fmt.Printf("Memory cleared for: %s\n", *clearMemory)
		return
	}

	if *otlpEndpoint != "" {
		shutdown, err := observability.InitTracer("email-assistant", *otlpEndpoint)
		if err != nil {
			logger.Warn("tracing_init_failed", "endpoint", *otlpEndpoint, "error", err.Error())
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Warn("tracing_shutdown_failed", "error", err.Error())
				}
			}()
		}
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics_server_started", "address", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn("metrics_server_stopped", "error", err.Error())
			}
		}()
	}

	apiKey := cfg.APIKey()
	if apiKey == "" {
		fmt.Fprintf(os.Stderr, "API key not set: export %s\n", cfg.APIKeyEnv)
		os.Exit(1)
	}

	gen, err := llm.NewOpenAIGenerator(apiKey, cfg.BaseURL, time.Duration(cfg.LLMTimeoutSeconds)*time.Second, logger)
	if err != nil {
		logger.Error("generator_init_failed", "error", err.Error())
		os.Exit(1)
	}

	bus := events.NewBus(logger)
	proc, err := processor.New(cfg, store, gen, bus, logger)
	if err != nil {
		logger.Error("processor_init_failed", "error", err.Error())
		os.Exit(1)
	}

	opts := processor.Options{SaveToMemory: !*noSave}
	if *tone != "" {
		parsed, err := state.ToneFromString(*tone)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		opts.Tone = parsed
	}

	ctx := context.Background()

	switch {
	case *interactive:
		err = runInteractive(ctx, proc, opts)
	case *batchDir != "":
		err = runBatch(ctx, proc, opts, *batchDir, *outputDir, logger)
	default:
		err = runSingle(ctx, proc, opts, *filePath, *outputDir, logger)
	}

	if err != nil {
		logger.Error("processing_failed", "error", err.Error())
		os.Exit(1)
	}
}

// demoEmail is the default input when no file is given.
func demoEmail() processor.Email {
	return processor.Email{
		From:    "sarah@example.com",
		To:      "support@company.com",
		Subject: "Payment not going through",
		Body:    "Hi, I tried paying for my subscription twice but it keeps failing. This is really frustrating! Can you please fix this ASAP?",
	}
}

func runSingle(ctx context.Context, proc *processor.Processor, opts processor.Options, filePath, outputDir string, logger logging.Logger) error {
	email := demoEmail()
	if filePath != "" {
		loaded, err := loadEmail(filePath)
		if err != nil {
			return err
		}
		email = loaded
	}

	result, err := proc.Process(ctx, email, opts)
	if err != nil {
		return err
	}

	fmt.Println("\n" + formatResult(result))

	resultPath := filepath.Join(outputDir, "result.json")
	if err := saveJSON(result, resultPath); err != nil {
		logger.Warn("result_save_failed", "path", resultPath, "error", err.Error())
	}
	return nil
}

func runInteractive(ctx context.Context, proc *processor.Processor, opts processor.Options) error {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("EMAIL ASSISTANT - INTERACTIVE MODE")
	fmt.Println(strings.Repeat("=", 70))

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("\nEnter email details:")
	from := prompt(reader, "From: ", "customer@example.com")
	subject := prompt(reader, "Subject: ", "Test email")
	body := prompt(reader, "Body: ", "This is a test email")

	if opts.Tone == "" {
		fmt.Println("\nSelect tone style:")
		fmt.Println("1. Professional (default)")
		fmt.Println("2. Friendly")
		fmt.Println("3. Formal")
		fmt.Println("4. Casual")

		choice := prompt(reader, "Choice (1-4): ", "1")
		toneByChoice := map[string]state.Tone{
			"1": state.ToneProfessional,
			"2": state.ToneFriendly,
			"3": state.ToneFormal,
			"4": state.ToneCasual,
		}
		tone, ok := toneByChoice[choice]
		if !ok {
			tone = state.ToneProfessional
		}
		opts.Tone = tone
	}

	email := processor.Email{
		From:    from,
		To:      "support@company.com",
		Subject: subject,
		Body:    body,
	}

	result, err := proc.Process(ctx, email, opts)
	if err != nil {
		return err
	}

	fmt.Println("\n" + formatResult(result))
	return nil
}

// batchSummary is the aggregate report written after a batch run.
type batchSummary struct {
	ProcessedCount int          `json:"processed_count"`
	FailedCount    int          `json:"failed_count"`
	Timestamp      time.Time    `json:"timestamp"`
	Results        []batchEntry `json:"results"`
	Failures       []batchError `json:"failures,omitempty"`
}

type batchEntry struct {
	File   string            `json:"file"`
	Result *processor.Result `json:"result"`
}

type batchError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

func runBatch(ctx context.Context, proc *processor.Processor, opts processor.Options, inputDir, outputDir string, logger logging.Logger) error {
	files, err := filepath.Glob(filepath.Join(inputDir, "*.json"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warn("batch_no_inputs", "dir", inputDir)
		return fmt.Errorf("no JSON files found in %s", inputDir)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	logger.Info("batch_started", "count", len(files), "input_dir", inputDir)

	summary := batchSummary{Timestamp: time.Now().UTC()}
	for _, file := range files {
		name := filepath.Base(file)
		logger.Info("batch_item_started", "file", name)

		email, err := loadEmail(file)
		if err != nil {
			logger.Error("batch_item_failed", "file", name, "error", err.Error())
			summary.Failures = append(summary.Failures, batchError{File: name, Error: err.Error()})
			continue
		}

		result, err := proc.Process(ctx, email, opts)
		if err != nil {
			// Keep going: one bad input must not sink the batch.
			logger.Error("batch_item_failed", "file", name, "error", err.Error())
			summary.Failures = append(summary.Failures, batchError{File: name, Error: err.Error()})
			continue
		}

		summary.Results = append(summary.Results, batchEntry{File: name, Result: result})

		stem := strings.TrimSuffix(name, filepath.Ext(name))
		resultPath := filepath.Join(outputDir, "result_"+stem+".json")
		if err := saveJSON(result, resultPath); err != nil {
			logger.Warn("result_save_failed", "path", resultPath, "error", err.Error())
		}
	}

	summary.ProcessedCount = len(summary.Results)
	summary.FailedCount = len(summary.Failures)

	summaryPath := filepath.Join(outputDir, "batch_summary.json")
	if err := saveJSON(summary, summaryPath); err != nil {
		return err
	}

	logger.Info("batch_completed",
		"processed", summary.ProcessedCount,
		"failed", summary.FailedCount,
		"output_dir", outputDir,
	)
	return nil
}

func runClearMemory(store *history.Store, target string) error {
	if target == "all" {
		return store.ClearAll()
	}
	return store.Clear(target)
}

// loadEmail reads an email JSON file.
func loadEmail(path string) (processor.Email, error) {
	var email processor.Email
	raw, err := os.ReadFile(path)
	if err != nil {
		return email, fmt.Errorf("reading email file: %w", err)
	}
	if err := json.Unmarshal(raw, &email); err != nil {
		return email, fmt.Errorf("parsing email file %s: %w", path, err)
	}
	return email, nil
}

// saveJSON writes v pretty-printed, creating parent directories as needed.
func saveJSON(v any, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}

// formatResult renders a triage result for console display.
func formatResult(result *processor.Result) string {
	lines := []string{
		strings.Repeat("=", 70),
		"EMAIL PROCESSING RESULT",
		strings.Repeat("=", 70),
		fmt.Sprintf("To: %s", result.To),
		fmt.Sprintf("From: %s", result.From),
		fmt.Sprintf("Subject: %s", result.Subject),
		fmt.Sprintf("Intent: %s", strings.ToUpper(result.Intent)),
		fmt.Sprintf("Sentiment: %s", strings.ToUpper(result.Sentiment)),
	}

	verdict := "NO"
	if result.Escalate {
		verdict = "YES"
	}
	lines = append(lines, fmt.Sprintf("Escalate: %s", verdict))
	if result.EscalationReason != "" {
		lines = append(lines, fmt.Sprintf("   Reason: %s", result.EscalationReason))
	}

	lines = append(lines,
		fmt.Sprintf("Reply Body:\n%s", result.Body),
		fmt.Sprintf("Processing Time: %.2fs", result.ProcessingTime),
		strings.Repeat("=", 70),
	)
	return strings.Join(lines, "\n")
}

func prompt(reader *bufio.Reader, label, fallback string) string {
	fmt.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fallback
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback
	}
	return line
}
