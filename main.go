package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/zawasasa/note-blog-generator/config"
	"github.com/zawasasa/note-blog-generator/generator"
	"github.com/zawasasa/note-blog-generator/publisher"
)

var (
	verbose  bool
	envFiles []string
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "notegen",
		Short:         "テープ起こしからnote記事を生成する",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, ".env files to load before reading the environment")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable info logs")
	root.AddCommand(newServeCmd(), newTUICmd(), newGenerateCmd())
	return root
}

// buildLLM picks the provider client. Without an API key in permissive mode it falls back
// to the deterministic stub. Both halves share one rate limiter.
func buildLLM(ctx context.Context, cfg *config.Config) (*generator.Agent, error) {
	var (
		suggester generator.Suggester
		chats     generator.ChatFactory
	)
	settings := cfg.LLM.Settings()
	switch {
	case settings.APIKey == "" && !cfg.Strict():
		log.Printf("[cli] no api key for %s, using stub model", settings.Provider)
		stub := generator.MockLLM{Delay: cfg.StubDelay}
		suggester, chats = stub, stub.NewChat
	case settings.Provider == "gemini":
		llm, err := generator.NewGeminiLLMFromConfig(ctx, settings)
		if err != nil {
			return nil, err
		}
		suggester, chats = llm, llm.NewChat
	case settings.Provider == "openai", settings.Provider == "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，base_url 已在配置阶段校验。
		llm, err := generator.NewOpenAILLMFromConfig(settings)
		if err != nil {
			return nil, err
		}
		suggester, chats = llm, llm.NewChat
	default:
		return nil, fmt.Errorf("llm provider %s not supported", settings.Provider)
	}

	limiter := generator.NewLimiter(cfg.RatePerMinute)
	return generator.NewAgent(generator.RateLimited(suggester, limiter), generator.RateLimitedChats(chats, limiter))
}

// buildPublisher archives to S3 when configured; otherwise documents are only composed.
func buildPublisher(cfg *config.Config) (*publisher.Publisher, error) {
	if !cfg.Archive.Enabled() {
		return publisher.New(nil, verbose, log.Default()), nil
	}
	archive, err := publisher.NewS3Archive(cfg.Archive.S3())
	if err != nil {
		return nil, err
	}
	log.Printf("[cli] archiving completed articles to s3://%s", cfg.Archive.Bucket)
	return publisher.New(archive, verbose, log.Default()), nil
}
