package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zawasasa/note-blog-generator/config"
	"github.com/zawasasa/note-blog-generator/generator"
	"github.com/zawasasa/note-blog-generator/publisher"
	"github.com/zawasasa/note-blog-generator/server"
	"github.com/zawasasa/note-blog-generator/transcript"
	"github.com/zawasasa/note-blog-generator/tui"
	"github.com/zawasasa/note-blog-generator/workflow"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the web server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFiles...)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			agent, err := buildLLM(ctx, cfg)
			if err != nil {
				return err
			}
			pub, err := buildPublisher(cfg)
			if err != nil {
				return err
			}
			srv, err := server.New(agent, pub, server.Options{
				MaxSessions: cfg.MaxSessions,
				SessionTTL:  cfg.SessionTTL,
				UploadLimit: cfg.UploadLimit,
				Logger:      log.Default(),
			})
			if err != nil {
				return err
			}
			listen := cfg.ServerAddr
			if addr != "" {
				listen = addr
			}
			httpSrv := &http.Server{Addr: listen, Handler: srv.Routes(), ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			}()
			log.Printf("Starting web server on %s (provider=%s model=%s mode=%s)", listen, cfg.LLM.Provider, cfg.LLM.Model, cfg.Mode)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "http listen address (overrides NOTEGEN_ADDR)")
	return cmd
}

func newTUICmd() *cobra.Command {
	var file, saveDir string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "run the interactive terminal UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFiles...)
			if err != nil {
				return err
			}
			// 全屏界面下日志写到文件，否则会把画面打乱。
			if verbose {
				f, err := tea.LogToFile("notegen-debug.log", "notegen")
				if err != nil {
					return err
				}
				defer f.Close()
			} else {
				log.SetOutput(io.Discard)
			}

			ctx := cmd.Context()
			agent, err := buildLLM(ctx, cfg)
			if err != nil {
				return err
			}
			pub, err := buildPublisher(cfg)
			if err != nil {
				return err
			}
			var text string
			if file != "" {
				if text, err = readTranscriptFile(file, cmd.InOrStdin(), cfg.UploadLimit); err != nil {
					return errors.New(generator.UserMessage(err))
				}
			}
			m := workflow.New(agent, agent.NewChat(), workflow.WithCompletionHook(archiveHook(pub, "tui")))
			return tui.Run(ctx, m, tui.Options{Transcript: text, SaveDir: saveDir})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "pre-load a .txt/.md transcript")
	cmd.Flags().StringVar(&saveDir, "save-dir", ".", "directory for saved Markdown files")
	return cmd
}

type generateOptions struct {
	file         string
	titleIndex   int
	length       int
	referenceURL string
	out          string
}

func newGenerateCmd() *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "generate an article non-interactively and stream it to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFiles...)
			if err != nil {
				return err
			}
			return runGenerate(cmd.Context(), cfg, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "transcript file (.txt/.md), - for stdin")
	cmd.Flags().IntVar(&opts.titleIndex, "title-index", 0, "index of the suggested title to use")
	cmd.Flags().IntVar(&opts.length, "length", 0, "target length in characters (default: first suggestion)")
	cmd.Flags().StringVar(&opts.referenceURL, "reference-url", "", "optional reference article URL")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "also write the Markdown document to this file or directory")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

var (
	statusLine = color.New(color.FgCyan).FprintfFunc()
	okLine     = color.New(color.FgGreen).FprintfFunc()
	failLine   = color.New(color.FgRed).FprintfFunc()
)

func runGenerate(ctx context.Context, cfg *config.Config, opts generateOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	text, err := readTranscriptFile(opts.file, stdin, cfg.UploadLimit)
	if err != nil {
		failLine(stderr, "%s\n", generator.UserMessage(err))
		return err
	}
	agent, err := buildLLM(ctx, cfg)
	if err != nil {
		return err
	}
	pub, err := buildPublisher(cfg)
	if err != nil {
		return err
	}
	m := workflow.New(agent, agent.NewChat(), workflow.WithCompletionHook(archiveHook(pub, "cli")))

	statusLine(stderr, "テープ起こしを分析し、提案を生成しています...\n")
	if err := m.SubmitTranscript(ctx, text); err != nil {
		failLine(stderr, "%s\n", m.Snapshot().Banner)
		return err
	}
	snap := m.Snapshot()
	for i, t := range snap.Titles {
		statusLine(stderr, "  [%d] %s\n", i, t)
	}
	if err := m.SelectTitle(opts.titleIndex); err != nil {
		failLine(stderr, "タイトル番号が範囲外です: %d\n", opts.titleIndex)
		return err
	}
	length := opts.length
	if length == 0 && len(snap.Lengths) > 0 {
		length = snap.Lengths[0].Length
	}
	if err := m.SelectLength(length); err != nil {
		failLine(stderr, "%s\n", generator.UserMessage(err))
		return err
	}
	if err := m.SetReferenceURL(opts.referenceURL); err != nil {
		failLine(stderr, "%s\n", generator.UserMessage(err))
		return err
	}
	snap = m.Snapshot()
	statusLine(stderr, "「%s」／約%s字 で記事全体を生成しています...\n", snap.SelectedTitle, generator.FormatLength(snap.SelectedLength))

	genErr := streamArticle(ctx, m, stdout)
	_, _ = io.WriteString(stdout, "\n")
	if genErr != nil {
		failLine(stderr, "%s\n", m.Snapshot().Banner)
		return genErr
	}

	snap = m.Snapshot()
	okLine(stderr, "記事の生成が完了しました！\n")
	if opts.out != "" {
		path := outputPath(opts.out, snap.SelectedTitle)
		if err := os.WriteFile(path, []byte(publisher.Document(snap.SelectedTitle, snap.Article)), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		okLine(stderr, "保存しました: %s\n", path)
	}
	return nil
}

// streamArticle runs Generate and copies fragments to w as they arrive. A subscriber
// that falls behind is dropped by the machine, so whatever the stream missed is written
// from the final snapshot; w always ends up with the whole buffer in order.
func streamArticle(ctx context.Context, m *workflow.Machine, w io.Writer) error {
	_, events, unsubscribe := m.Subscribe()
	defer unsubscribe()
	var written int
	streamed := make(chan struct{})
	go func() {
		defer close(streamed)
		for ev := range events {
			if ev.Kind == workflow.EventFragment {
				_, _ = io.WriteString(w, ev.Fragment)
				written += len(ev.Fragment)
			}
		}
	}()
	genErr := m.Generate(ctx)
	// 关闭订阅后，缓冲里剩下的片段仍会按顺序写完。
	unsubscribe()
	<-streamed
	if article := m.Snapshot().Article; written < len(article) {
		_, _ = io.WriteString(w, article[written:])
	}
	return genErr
}

func readTranscriptFile(path string, stdin io.Reader, limit int64) (string, error) {
	if path == "-" {
		return transcript.Read("stdin.txt", "text/plain", stdin, limit)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return transcript.Read(filepath.Base(path), "", f, limit)
}

// outputPath treats an existing directory (or a trailing separator) as a place to put
// Filename(title).
func outputPath(out, title string) string {
	if strings.HasSuffix(out, string(os.PathSeparator)) {
		return filepath.Join(out, publisher.Filename(title))
	}
	if fi, err := os.Stat(out); err == nil && fi.IsDir() {
		return filepath.Join(out, publisher.Filename(title))
	}
	return out
}

func archiveHook(pub *publisher.Publisher, prefix string) func(workflow.Snapshot) {
	return func(snap workflow.Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		id := prefix + "-" + time.Now().Format("20060102T150405")
		if _, err := pub.Publish(ctx, id, snap.SelectedTitle, snap.Article); err != nil {
			log.Printf("[cli] archive failed: %v", err)
		}
	}
}
