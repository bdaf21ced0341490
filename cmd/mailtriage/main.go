// Command mailtriage fetches email from a configured source, normalizes
// it, and runs it through a processing backend. Results, messages, and
// reply drafts are persisted to a local SQLite database.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/nhle/mailtriage/internal/backend"
	"github.com/nhle/mailtriage/internal/credential"
	"github.com/nhle/mailtriage/internal/extract"
	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/pipeline"
	"github.com/nhle/mailtriage/internal/source"
	"github.com/nhle/mailtriage/internal/source/gmail"
	"github.com/nhle/mailtriage/internal/source/imap"
	"github.com/nhle/mailtriage/internal/source/mock"
	"github.com/nhle/mailtriage/internal/store"
)

const apiKeyCredential = "anthropic-api-key"

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	cmd, rest := args[0], args[1:]

	switch cmd {
	case "fetch":
		return runFetch(rest)
	case "process":
		return runProcess(rest)
	case "prompts":
		return runPrompts(rest)
	case "drafts":
		return runDrafts(rest)
	case "authorize":
		return runAuthorize(rest)
	case "validate":
		return runValidate(rest)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `mailtriage - fetch, categorize, and triage email

Usage:
  mailtriage fetch      fetch messages from the source and process them
  mailtriage process    re-process messages already in the local store
  mailtriage prompts    show or set prompt templates
  mailtriage drafts     list stored reply drafts
  mailtriage authorize  run the Gmail OAuth consent flow
  mailtriage validate   check source connectivity and credentials
`)
}

// commonFlags declares the flags shared by fetch and process.
type commonFlags struct {
	configPath string
	mode       string
	drafts     bool
	verbose    bool
}

func addCommonFlags(fs *pflag.FlagSet, f *commonFlags) {
	fs.StringVar(&f.configPath, "config", model.DefaultConfigPath(), "config file path")
	fs.StringVar(&f.mode, "mode", "", "processing backend: capable, heuristic, or noop")
	fs.BoolVar(&f.drafts, "drafts", false, "also generate and store reply drafts")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")
}

func newLogger(verbose bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func runFetch(args []string) error {
	var (
		flags  commonFlags
		srcTyp string
		query  string
		max    int
		mark   bool
	)

	fs := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
	addCommonFlags(fs, &flags)
	fs.StringVar(&srcTyp, "source", "", "source type: gmail, imap, or mock")
	fs.StringVar(&query, "query", "", "provider search query")
	fs.IntVar(&max, "max", 0, "maximum messages to fetch")
	fs.BoolVar(&mark, "mark-processed", false, "label fetched messages as processed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := model.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}
	if srcTyp != "" {
		cfg.Source.Type = srcTyp
	}
	if query != "" {
		cfg.Source.Query = query
	}
	if max > 0 {
		cfg.Source.MaxMessages = max
	}
	if fs.Changed("mark-processed") {
		cfg.Source.MarkProcessed = mark
	}

	logger := newLogger(flags.verbose)
	ctx := context.Background()

	src, err := buildSource(ctx, cfg)
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	logger.Info("fetching messages",
		"source", src.Type(), "query", cfg.Source.Query, "max", cfg.Source.MaxMessages)

	raws, err := src.Fetch(ctx, source.FetchOptions{
		Query: cfg.Source.Query,
		Max:   cfg.Source.MaxMessages,
	})
	if err != nil {
		if source.IsAuthError(err) {
			return fmt.Errorf("%w\nrun 'mailtriage authorize' or check stored credentials", err)
		}
		return err
	}
	logger.Info("fetched messages", "count", len(raws))

	msgs := make([]model.Message, len(raws))
	for i, raw := range raws {
		bodyText, bodyHTML := extract.Extract(raw)
		msgs[i] = extract.Normalize(raw, bodyText, bodyHTML, nil)
	}

	if err := st.UpsertMessages(ctx, msgs); err != nil {
		return err
	}

	results, err := processMessages(ctx, cfg, flags, st, logger, msgs)
	if err != nil {
		return err
	}

	if cfg.Source.MarkProcessed {
		for _, r := range results {
			if r.Error != "" {
				continue
			}
			if err := src.MarkProcessed(ctx, r.MessageID); err != nil {
				logger.Warn("marking processed failed", "id", r.MessageID, "error", err)
			}
		}
	}

	printResults(results)
	return nil
}

func runProcess(args []string) error {
	var (
		flags commonFlags
		limit int
	)

	fs := pflag.NewFlagSet("process", pflag.ContinueOnError)
	addCommonFlags(fs, &flags)
	fs.IntVar(&limit, "limit", 0, "maximum stored messages to process")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := model.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}

	logger := newLogger(flags.verbose)
	ctx := context.Background()

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	msgs, err := st.GetMessages(ctx, limit)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Println("no stored messages; run 'mailtriage fetch' first")
		return nil
	}

	results, err := processMessages(ctx, cfg, flags, st, logger, msgs)
	if err != nil {
		return err
	}

	printResults(results)
	return nil
}

// processMessages builds the configured backend and runs the batch.
// Results are persisted per message by the pipeline; drafts only when
// requested.
func processMessages(
	ctx context.Context,
	cfg *model.AppConfig,
	flags commonFlags,
	st store.Store,
	logger *log.Logger,
	msgs []model.Message,
) ([]model.ProcessingResult, error) {
	mode := cfg.Backend.Mode
	if flags.mode != "" {
		mode = flags.mode
	}

	primary, err := buildBackend(mode, cfg)
	if err != nil {
		return nil, err
	}

	prompts, err := st.GetPrompts(ctx)
	if err != nil {
		return nil, err
	}

	opts := pipeline.Options{
		Tasks:   []model.Task{model.TaskCategorize, model.TaskExtractActions},
		Logger:  logger,
		Results: st,
	}
	if flags.drafts {
		opts.Tasks = model.AllTasks()
		opts.Drafts = st
	}
	if cfg.Backend.FallbackHeuristic && primary.Kind() == model.BackendCapable {
		opts.Fallback = backend.NewHeuristic()
	}

	return pipeline.New(primary, prompts, opts).Run(ctx, msgs), nil
}

func buildBackend(mode string, cfg *model.AppConfig) (backend.Backend, error) {
	switch model.BackendKind(mode) {
	case model.BackendHeuristic:
		return backend.NewHeuristic(), nil
	case model.BackendNoOp:
		return backend.NewNoOp(), nil
	case model.BackendCapable:
		apiKey, err := credential.Get(apiKeyCredential)
		if err != nil {
			return nil, fmt.Errorf(
				"no API key found; store one with 'mailtriage authorize anthropic': %w", err)
		}
		svc := backend.NewAnthropicClient(apiKey, cfg.Backend.Model, cfg.Backend.MaxTokens, "")
		return backend.NewCapable(svc), nil
	default:
		return nil, fmt.Errorf("unknown backend mode %q", mode)
	}
}

func buildSource(ctx context.Context, cfg *model.AppConfig) (source.Source, error) {
	sc := cfg.Source.Config
	if sc == nil {
		sc = map[string]string{}
	}

	switch source.SourceType(cfg.Source.Type) {
	case source.SourceTypeGmail:
		return gmail.New(ctx,
			orDefault(sc["credentials_file"], "credentials.json"),
			orDefault(sc["token_file"], "token.json"))

	case source.SourceTypeIMAP:
		password := sc["password"]
		if password == "" {
			var err error
			password, err = credential.Get("imap-password")
			if err != nil {
				return nil, fmt.Errorf("no IMAP password configured: %w", err)
			}
		}
		return imap.New(
			sc["host"],
			orDefault(sc["port"], "993"),
			sc["username"],
			password,
			sc["tls"] != "false",
		), nil

	case source.SourceTypeMock:
		return mock.New(orDefault(sc["snapshot"], "snapshot.json"), nil), nil

	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func printResults(results []model.ProcessingResult) {
	for _, r := range results {
		status := r.Category
		if r.Error != "" {
			status = "error: " + r.Error
		}
		fmt.Printf("%s  [%s]  %s\n", r.MessageID, r.BackendUsed, status)
		for _, item := range r.ActionItems {
			fmt.Printf("    - %s\n", item)
		}
	}
	fmt.Printf("%d messages processed\n", len(results))
}

func runPrompts(args []string) error {
	var flags commonFlags
	fs := pflag.NewFlagSet("prompts", pflag.ContinueOnError)
	addCommonFlags(fs, &flags)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()

	cfg, err := model.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	if len(rest) >= 3 && rest[0] == "set" {
		task := model.Task(rest[1])
		if !validTask(task) {
			return fmt.Errorf("unknown task %q; valid tasks: %s", rest[1], taskNames())
		}
		template := strings.Join(rest[2:], " ")
		if err := st.SetPrompt(ctx, task, template); err != nil {
			return err
		}
		fmt.Printf("prompt for %s updated\n", task)
		return nil
	}

	stored, err := st.GetPrompts(ctx)
	if err != nil {
		return err
	}

	defaults := model.DefaultPrompts()
	for _, task := range model.AllTasks() {
		origin := "default"
		template := defaults[task]
		if t, ok := stored[task]; ok {
			origin = "custom"
			template = t
		}
		fmt.Printf("--- %s (%s) ---\n%s\n\n", task, origin, template)
	}
	return nil
}

func validTask(task model.Task) bool {
	for _, t := range model.AllTasks() {
		if t == task {
			return true
		}
	}
	return false
}

func taskNames() string {
	names := make([]string, 0, len(model.AllTasks()))
	for _, t := range model.AllTasks() {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func runDrafts(args []string) error {
	var flags commonFlags
	fs := pflag.NewFlagSet("drafts", pflag.ContinueOnError)
	addCommonFlags(fs, &flags)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := model.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	drafts, err := st.GetDrafts(context.Background())
	if err != nil {
		return err
	}
	if len(drafts) == 0 {
		fmt.Println("no drafts stored")
		return nil
	}

	for _, d := range drafts {
		fmt.Printf("--- %s (message %s, %s) ---\n%s\n\n",
			d.Subject, d.MessageID, d.CreatedAt.Format("2006-01-02 15:04"), d.Body)
	}
	return nil
}

func runAuthorize(args []string) error {
	var flags commonFlags
	fs := pflag.NewFlagSet("authorize", pflag.ContinueOnError)
	addCommonFlags(fs, &flags)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()

	if len(rest) == 0 {
		return fmt.Errorf("usage: mailtriage authorize <gmail|anthropic|imap>")
	}

	cfg, err := model.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}

	switch rest[0] {
	case "gmail":
		sc := cfg.Source.Config
		return gmail.Authorize(context.Background(),
			orDefault(sc["credentials_file"], "credentials.json"),
			orDefault(sc["token_file"], "token.json"))

	case "anthropic":
		fmt.Print("Anthropic API key: ")
		var key string
		if _, err := fmt.Scanln(&key); err != nil {
			return fmt.Errorf("reading API key: %w", err)
		}
		if err := credential.Set(apiKeyCredential, key); err != nil {
			return err
		}
		fmt.Println("API key stored")
		return nil

	case "imap":
		fmt.Print("IMAP password: ")
		var password string
		if _, err := fmt.Scanln(&password); err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		if err := credential.Set("imap-password", password); err != nil {
			return err
		}
		fmt.Println("password stored")
		return nil

	default:
		return fmt.Errorf("unknown provider %q", rest[0])
	}
}

func runValidate(args []string) error {
	var flags commonFlags
	fs := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	addCommonFlags(fs, &flags)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := model.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	src, err := buildSource(ctx, cfg)
	if err != nil {
		return err
	}

	status, err := src.ValidateConnection(ctx)
	if err != nil {
		return err
	}
	fmt.Println(status)
	return nil
}
