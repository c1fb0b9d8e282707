package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"docchat/internal/config"
	"docchat/internal/domain"
	"docchat/internal/logger"
	"docchat/internal/service"
	"docchat/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:      "docchat",
		Usage:     "chat with your documents",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to YAML config file (defaults to ./config.yaml or ~/.config/docchat/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "environment file with API keys",
				Value: ".env",
			},
		},
		Action: chatAction,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "ingest files, answer one question and exit",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "question",
						Aliases:  []string{"q"},
						Usage:    "question to ask",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "passages to retrieve (overrides retrieval.top_k)",
					},
				},
				Action: askAction,
			},
		},
	}
}

func loadConfig(cmd *cli.Command) (*config.AppConfig, error) {
	if err := godotenv.Load(cmd.String("env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	var (
		cfg *config.AppConfig
		err error
	)
	if path := cmd.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logger.New(logger.Config{Level: level, Format: cfg.Format}, w), nil
}

func ingest(ctx context.Context, session *service.SessionState, files []string, out io.Writer) (*domain.IngestReport, error) {
	report, err := session.IngestFiles(ctx, files)
	if report != nil {
		for _, s := range report.Skipped {
			fmt.Fprintf(out, "skipped %s: %s\n", s.Name, s.Reason)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("ingest failed: %w", err)
	}
	return report, nil
}

func chatAction(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return errors.New("usage: docchat [--config=config.yaml] file1.pdf [file2.txt ...]")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logFile, err := tea.LogToFile(cfg.Log.File, "docchat")
	if err != nil {
		return err
	}
	defer logFile.Close()
	l, err := newLogger(cfg.Log, logFile)
	if err != nil {
		return err
	}

	session, err := newSession(cfg, l)
	if err != nil {
		return err
	}
	defer session.Reset()

	report, err := ingest(ctx, session, files, os.Stderr)
	if err != nil {
		return err
	}
	reload := func(ctx context.Context) (*domain.IngestReport, error) {
		return ingest(ctx, session, files, io.Discard)
	}
	model := tui.New(ctx, session, tui.Summary(report), tui.WithReload(reload))

	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func askAction(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return errors.New("usage: docchat ask --question Q file1.pdf [file2.txt ...]")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if k := cmd.Int("top-k"); k > 0 {
		cfg.Retrieval.TopK = k
	}
	l, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	session, err := newSession(cfg, l)
	if err != nil {
		return err
	}
	defer session.Reset()

	if _, err := ingest(ctx, session, files, os.Stderr); err != nil {
		return err
	}
	answer, err := session.Ask(ctx, cmd.String("question"))
	if err != nil {
		return err
	}
	printAnswer(os.Stdout, answer)
	return nil
}

func printAnswer(w io.Writer, a *domain.Answer) {
	fmt.Fprintln(w, a.Text)
	if len(a.Sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for i, s := range a.Sources {
		text := []rune(s.Segment.Text)
		if len(text) > 120 {
			text = append(text[:117], []rune("...")...)
		}
		fmt.Fprintf(w, "  [%d] segment %d (score %.3f): %s\n", i+1, s.Segment.Index, s.Score, string(text))
	}
}
