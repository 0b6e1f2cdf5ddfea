package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/MatusOllah/slogcolor"
	"github.com/modfin/ashle/internal/db/vec"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := run(); err != nil {
		slog.Default().Error("got error running ashle", "err", err)
		os.Exit(1)
	}
}

func run() error {
	defer vec.Statistics()
	return newApp().Run(context.Background(), os.Args)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "ashle",
		Usage: "an SRHR and health chatbot that sanitizes model answers before showing them",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   "./ashle.db",
				Sources: cli.EnvVars("ASHLE_DB"),
			},

			&cli.StringFlag{
				Name:    "bellman-url",
				Sources: cli.EnvVars("ASHLE_BELLMAN_URL"),
			},
			&cli.StringFlag{
				Name:    "bellman-key",
				Sources: cli.EnvVars("ASHLE_BELLMAN_KEY"),
			},
			&cli.StringFlag{
				Name:    "bellman-key-name",
				Value:   "ashle",
				Sources: cli.EnvVars("ASHLE_BELLMAN_KEY_NAME"),
			},

			&cli.StringFlag{
				Name:    "vertexai-credential",
				Sources: cli.EnvVars("ASHLE_VERTEXAI_CREDENTIAL"),
			},
			&cli.StringFlag{
				Name:    "vertexai-project",
				Sources: cli.EnvVars("ASHLE_VERTEXAI_PROJECT"),
			},
			&cli.StringFlag{
				Name:    "vertexai-region",
				Sources: cli.EnvVars("ASHLE_VERTEXAI_REGION"),
			},

			&cli.StringFlag{
				Name:    "openai-key",
				Sources: cli.EnvVars("ASHLE_OPENAI_KEY"),
			},
			&cli.StringFlag{
				Name:    "anthropic-key",
				Sources: cli.EnvVars("ASHLE_ANTHROPIC_KEY"),
			},
			&cli.StringFlag{
				Name:    "voyageai-key",
				Sources: cli.EnvVars("ASHLE_VOYAGEAI_KEY"),
			},

			&cli.StringFlag{
				Name:    "embed-model",
				Value:   "OpenAI/text-embedding-3-small",
				Sources: cli.EnvVars("ASHLE_EMBED_MODEL"),
			},
			&cli.StringFlag{
				Name:    "llm-model",
				Value:   "OpenAI/gpt-4o-mini",
				Sources: cli.EnvVars("ASHLE_LLM_MODEL"),
			},

			&cli.FloatFlag{
				Name:    "temperature",
				Value:   0.7,
				Sources: cli.EnvVars("ASHLE_TEMPERATURE"),
			},
			&cli.FloatFlag{
				Name:    "top-p",
				Value:   0.95,
				Sources: cli.EnvVars("ASHLE_TOP_P"),
			},
			&cli.FloatFlag{
				Name:    "frequency-penalty",
				Usage:   "penalize tokens already generated, keeps answers from repeating themselves",
				Value:   0.3,
				Sources: cli.EnvVars("ASHLE_FREQUENCY_PENALTY"),
			},
			&cli.IntFlag{
				Name:    "max-tokens",
				Value:   150,
				Sources: cli.EnvVars("ASHLE_MAX_TOKENS"),
			},
			&cli.IntFlag{
				Name:    "history-turns",
				Usage:   "how many earlier turns of the conversation are sent with a question",
				Value:   4,
				Sources: cli.EnvVars("ASHLE_HISTORY_TURNS"),
			},
			&cli.StringSliceFlag{
				Name:    "limit",
				Usage:   "ground answers on at most n knowledge base passages per label, as label:n or n",
				Sources: cli.EnvVars("ASHLE_LIMIT"),
			},

			&cli.StringFlag{
				Name:    "policy",
				Usage:   "yaml file with separator, keywords, threshold and fallback",
				Sources: cli.EnvVars("ASHLE_POLICY"),
			},
			&cli.StringFlag{
				Name:    "separator",
				Usage:   "token marking where the answer starts in generated text",
				Sources: cli.EnvVars("ASHLE_SEPARATOR"),
			},
			&cli.IntFlag{
				Name:    "threshold",
				Usage:   "answers with more distinct keywords than this are replaced by the fallback",
				Sources: cli.EnvVars("ASHLE_THRESHOLD"),
			},
			&cli.StringSliceFlag{
				Name:    "keyword",
				Usage:   "off topic keyword, replaces the default set",
				Sources: cli.EnvVars("ASHLE_KEYWORDS"),
			},
			&cli.StringFlag{
				Name:    "fallback",
				Usage:   "message shown instead of an off topic answer",
				Sources: cli.EnvVars("ASHLE_FALLBACK"),
			},

			&cli.BoolFlag{
				Name:    "verbose",
				Sources: cli.EnvVars("ASHLE_VERBOSE"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			opts := *slogcolor.DefaultOptions
			opts.Level = slog.LevelInfo
			if cmd.Bool("verbose") {
				opts.Level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slogcolor.NewHandler(os.Stderr, &opts)))

			return ctx, nil
		},

		Commands: []*cli.Command{
			addCommand,
			searchCommand,
			askCommand,
			chatCommand,
			historyCommand,
			batchCommand,
			sanitizeCommand,
		},
	}
}
