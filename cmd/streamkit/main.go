package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gofiber/fiber/v2"
	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-streamkit/components/streamkit"
	"github.com/goliatone/go-streamkit/components/streamkit/gorouter"
	"github.com/goliatone/go-streamkit/components/streamkit/httpapi"
	"github.com/goliatone/go-streamkit/pkg/config"
	"github.com/goliatone/go-streamkit/pkg/logging"
	"github.com/goliatone/go-streamkit/pkg/statsapi"
)

type cli struct {
	Config  string   `type:"path" help:"Optional YAML configuration file."`
	EnvFile []string `name:"env-file" default:".env" help:"Candidate .env files; the first readable one is used."`
	Mock    bool     `help:"Serve canned demo data instead of calling the stats API."`

	Serve      serveCmd      `cmd:"" help:"Serve widget pages, the builder API and live events."`
	CommandURL commandURLCmd `cmd:"" name:"command-url" help:"Build a chat command URL with chat bot snippets."`
	Preview    previewCmd    `cmd:"" help:"Build a chat command URL and resolve it once."`
	Compose    composeCmd    `cmd:"" help:"Read template edits from stdin and print debounced previews."`
	WidgetURL  widgetURLCmd  `cmd:"" name:"widget-url" help:"Build an overlay widget URL."`
	Watch      watchCmd      `cmd:"" help:"Poll stats for a widget and print every snapshot as JSON."`
}

// runtime bundles what every subcommand needs.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	client  streamkit.Client
	service *streamkit.Service
	out     io.Writer
}

func main() {
	var app cli
	kctx := kong.Parse(&app,
		kong.Name("streamkit"),
		kong.Description("Stats overlays and chat commands for streamers."),
		kong.UsageOnError(),
	)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.runtime()
	kctx.FatalIfErrorf(err)
	defer rt.service.Close()

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.FatalIfErrorf(kctx.Run(rt))
}

func (c *cli) runtime() (*runtime, error) {
	cfg, err := config.Load(c.Config, config.EnvWithDotEnv(os.Getenv, c.EnvFile...))
	if err != nil {
		return nil, err
	}
	if c.Mock {
		cfg.API.Mock = true
	}
	logger, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: "streamkit",
	})
	if err != nil {
		return nil, err
	}

	var (
		client      streamkit.Client
		commandsURL string
	)
	if cfg.API.Mock {
		client = statsapi.NewMockClient(nil)
		commandsURL = streamkit.DefaultCommandsBaseURL
	} else {
		httpClient, err := statsapi.NewHTTPClient(statsapi.HTTPConfig{
			BaseURL:   cfg.API.BaseURL,
			AssetsURL: cfg.API.AssetsURL,
			Retry: &statsapi.RetryPolicy{
				Retries: cfg.API.Retries,
				Delay:   cfg.API.RetryDelay,
				Timeout: cfg.API.Timeout,
			},
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		client = httpClient
		commandsURL = httpClient.CommandsBaseURL()
	}

	service := streamkit.NewService(streamkit.Options{
		Client:          client,
		CommandsBaseURL: commandsURL,
		PublicURL:       cfg.Server.PublicURL,
		RefreshInterval: cfg.Widgets.RefreshInterval,
		Validator:       streamkit.NewJSONSchemaValidator(),
		Telemetry:       streamkit.NewLogTelemetry(logger),
		Logger:          logger,
	})
	return &runtime{cfg: cfg, logger: logger, client: client, service: service, out: os.Stdout}, nil
}

type serveCmd struct {
	Addr string `help:"Listen address (overrides configuration)."`
}

func (cmd *serveCmd) Run(ctx context.Context, rt *runtime) error {
	addr := rt.cfg.Server.Addr
	if cmd.Addr != "" {
		addr = cmd.Addr
	}
	renderer, err := streamkit.NewTemplateRenderer()
	if err != nil {
		return fmt.Errorf("streamkit: templates: %w", err)
	}
	controller := streamkit.NewController(streamkit.ControllerOptions{
		Service:    rt.service,
		Renderer:   renderer,
		EventsPath: "/widgets/ws",
		Logger:     rt.logger,
	})
	watcher := streamkit.NewVersionWatcher(streamkit.VersionWatcherOptions{
		Client:    rt.client,
		Hook:      rt.service.Broadcast(),
		Interval:  rt.cfg.Widgets.VersionCheckInterval,
		Logger:    rt.logger,
		Telemetry: streamkit.NewLogTelemetry(rt.logger),
	})

	server := router.NewFiberAdapter()
	if err := gorouter.Register(gorouter.Config[*fiber.App]{
		Router:     server.Router(),
		Controller: controller,
		API:        httpapi.NewHandlers(rt.service, watcher, streamkit.NewLogTelemetry(rt.logger)),
		Live:       rt.service,
	}); err != nil {
		return fmt.Errorf("streamkit: register routes: %w", err)
	}

	go watcher.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			rt.logger.Error("streamkit: shutdown failed", "error", err)
		}
	}()

	rt.logger.Info("streamkit: serving", "addr", addr, "public_url", rt.cfg.Server.PublicURL, "mock", rt.cfg.API.Mock)
	if err := server.Serve(addr); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

type commandFlags struct {
	Region   string            `required:"" enum:"Europe,Asia,NAmerica,SAmerica,Oceania" help:"Leaderboard region."`
	Account  string            `required:"" help:"Steam account id (SteamID3, SteamID64 or account number)."`
	Template string            `help:"Command template using {variable} placeholders."`
	Arg      map[string]string `help:"Extra argument values as key=value."`
}

func (f commandFlags) request() streamkit.CommandRequest {
	return streamkit.CommandRequest{
		AccountID: f.Account,
		Region:    f.Region,
		Template:  f.Template,
		ExtraArgs: streamkit.ExtraArgs(f.Arg),
	}
}

type commandURLCmd struct {
	commandFlags `embed:""`
}

func (cmd *commandURLCmd) Run(ctx context.Context, rt *runtime) error {
	result := rt.service.CommandURL(ctx, cmd.request())
	if result.URL == "" {
		return streamkit.ErrMissingAccount
	}
	fmt.Fprintln(rt.out, result.URL)
	if len(result.ExtraArgs) > 0 {
		fmt.Fprintf(rt.out, "\nextra arguments: %s\n", strings.Join(result.ExtraArgs, ", "))
	}
	fmt.Fprintln(rt.out)
	for _, bot := range result.ChatBots {
		fmt.Fprintf(rt.out, "%-15s %s\n", bot.Bot+":", bot.Command)
	}
	return nil
}

type previewCmd struct {
	commandFlags `embed:""`
}

func (cmd *previewCmd) Run(ctx context.Context, rt *runtime) error {
	status := rt.service.Preview(ctx, cmd.request())
	switch status.State {
	case streamkit.PreviewResolved:
		fmt.Fprintln(rt.out, status.Text)
		return nil
	case streamkit.PreviewFailed:
		return errors.New(status.Message)
	default:
		return streamkit.ErrMissingAccount
	}
}

type composeCmd struct {
	Region   string            `required:"" enum:"Europe,Asia,NAmerica,SAmerica,Oceania" help:"Leaderboard region."`
	Account  string            `required:"" help:"Steam account id."`
	Arg      map[string]string `help:"Extra argument values as key=value."`
	Debounce time.Duration     `help:"Debounce between edits and the preview fetch (overrides configuration)."`
}

// Run treats every stdin line as the full template text and prints preview
// states as they change.
func (cmd *composeCmd) Run(ctx context.Context, rt *runtime) error {
	debounce := rt.cfg.Widgets.PreviewDebounce
	if cmd.Debounce > 0 {
		debounce = cmd.Debounce
	}
	updates := make(chan streamkit.PreviewStatus, 16)
	preview := rt.service.NewCommandPreview(ctx, debounce, func(status streamkit.PreviewStatus) {
		select {
		case updates <- status:
		default:
		}
	})
	defer preview.Close()
	preview.SetTarget(cmd.Region, cmd.Account)
	for name, value := range cmd.Arg {
		preview.SetExtraArg(name, value)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// Let the last debounced fetch land before exiting.
				time.Sleep(debounce + rt.cfg.API.Timeout)
				drain(rt.out, updates)
				return nil
			}
			preview.SetTemplate(line)
			fmt.Fprintf(rt.out, "url: %s\n", preview.GeneratedURL())
			if args := preview.UsedExtraArgs(); len(args) > 0 {
				fmt.Fprintf(rt.out, "extra arguments: %s\n", strings.Join(args, ", "))
			}
		case status := <-updates:
			printStatus(rt.out, status)
		}
	}
}

func drain(out io.Writer, updates <-chan streamkit.PreviewStatus) {
	for {
		select {
		case status := <-updates:
			printStatus(out, status)
		default:
			return
		}
	}
}

func printStatus(out io.Writer, status streamkit.PreviewStatus) {
	switch status.State {
	case streamkit.PreviewResolved:
		fmt.Fprintf(out, "preview: %s\n", status.Text)
	case streamkit.PreviewFailed:
		fmt.Fprintf(out, "preview failed: %s\n", status.Message)
	case streamkit.PreviewLoading:
		fmt.Fprintln(out, "preview: loading...")
	}
}

type widgetFlags struct {
	Type    string   `default:"box" enum:"box,raw" help:"Widget type."`
	Region  string   `required:"" enum:"Europe,Asia,NAmerica,SAmerica,Oceania" help:"Leaderboard region."`
	Account string   `required:"" help:"Steam account id."`
	Query   []string `help:"Widget options as key=value (e.g. vars=total_kd,leaderboard_place)."`
}

func (f widgetFlags) config() (streamkit.WidgetConfig, error) {
	q := url.Values{}
	for _, pair := range f.Query {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return streamkit.WidgetConfig{}, fmt.Errorf("streamkit: query %q must be key=value", pair)
		}
		q.Set(key, value)
	}
	return streamkit.ParseWidgetRequest(f.Region, f.Account, f.Type, q)
}

type widgetURLCmd struct {
	widgetFlags `embed:""`
}

func (cmd *widgetURLCmd) Run(_ context.Context, rt *runtime) error {
	cfg, err := cmd.config()
	if err != nil {
		return err
	}
	u, err := rt.service.WidgetURL(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.out, u)
	return nil
}

type watchCmd struct {
	widgetFlags `embed:""`
	Interval    time.Duration `help:"Refresh interval (overrides configuration)."`
}

func (cmd *watchCmd) Run(ctx context.Context, rt *runtime) error {
	cfg, err := cmd.config()
	if err != nil {
		return err
	}
	interval := rt.cfg.Widgets.RefreshInterval
	if cmd.Interval > 0 {
		interval = cmd.Interval
	}
	enc := json.NewEncoder(rt.out)
	poller := streamkit.NewPoller(streamkit.PollerOptions{
		Fetcher:  rt.client,
		Request:  streamkit.NewStatsRequest(cfg),
		Interval: interval,
		Logger:   rt.logger,
		OnSnapshot: func(snap streamkit.Snapshot) {
			if snap.Loading {
				return
			}
			_ = enc.Encode(snap)
		},
	})
	poller.Start(ctx)
	<-ctx.Done()
	poller.Stop()
	return nil
}
