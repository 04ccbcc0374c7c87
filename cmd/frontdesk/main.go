// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/frontdesk"
	"github.com/poiesic/frontdesk/ai"
	"github.com/poiesic/frontdesk/triage"
	"github.com/urfave/cli/v2"
)

func main() {
	loadEnv(".env.local", ".env")
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadEnv loads each file that exists. Earlier files and the real
// environment take precedence.
func loadEnv(files ...string) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			slog.Warn("could not load env file", "file", f, "err", err)
		}
	}
}

// app carries what the commands share. Tests add desk options, such as a
// fake embedder, through extra.
type app struct {
	out   io.Writer
	extra []frontdesk.DeskOption
}

func newApp(out io.Writer, extra ...frontdesk.DeskOption) *cli.App {
	a := &app{out: out, extra: extra}
	return &cli.App{
		Name:   "frontdesk",
		Usage:  "Triage questions against previously given answers",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "submit",
				Usage:     "Submit a new query",
				ArgsUsage: "<question>",
				Action:    a.submitCommand,
				Flags: append(deskFlags(),
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Requester ID", Required: true},
					&cli.StringFlag{Name: "room", Usage: "Originating room name", Required: true},
					&cli.StringFlag{Name: "job", Usage: "Originating job ID", Required: true},
				),
			},
			{
				Name:      "answer",
				Usage:     "Answer a query",
				ArgsUsage: "<answer text>",
				Action:    a.answerCommand,
				Flags: append(deskFlags(),
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Query ID", Required: true},
					&cli.StringFlag{Name: "by", Usage: "Operator answering the query", Required: true},
				),
			},
			{
				Name:   "list",
				Usage:  "List queries, newest first",
				Action: a.listCommand,
				Flags: append(deskFlags(),
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Only list queries in this state (pending, resolved, unresolved)"},
				),
			},
			{
				Name:      "show",
				Usage:     "Show a query and its answer",
				ArgsUsage: "<query id>",
				Action:    a.showCommand,
				Flags:     deskFlags(),
			},
			{
				Name:      "search",
				Usage:     "Find past answers similar to text",
				ArgsUsage: "<text>",
				Action:    a.searchCommand,
				Flags: append(deskFlags(),
					&cli.IntFlag{Name: "top-k", Aliases: []string{"k"}, Usage: "Number of matches (0 selects the default)"},
				),
			},
			{
				Name:   "sweep",
				Usage:  "Expire overdue pending queries",
				Action: a.sweepCommand,
				Flags: append(deskFlags(),
					&cli.DurationFlag{Name: "watch", Usage: "Keep sweeping at this interval until interrupted"},
				),
			},
			{
				Name:   "followups",
				Usage:  "List answers not yet relayed to their requester",
				Action: a.followupsCommand,
				Flags: append(deskFlags(),
					&cli.StringFlag{Name: "room", Usage: "Only list follow-ups for this room"},
					&cli.StringFlag{Name: "mark", Usage: "Mark this answer ID as delivered instead of listing"},
				),
			},
			{
				Name:   "reconcile",
				Usage:  "Delete answers left unbound by failed submissions",
				Action: a.reconcileCommand,
				Flags: append(deskFlags(),
					&cli.DurationFlag{Name: "grace", Usage: "Leave answers younger than this alone", Value: 10 * time.Minute},
				),
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all answers with the configured embedding model",
				Action: a.reembedCommand,
				Flags: append(deskFlags(),
					&cli.IntFlag{Name: "batch-size", Usage: "Number of answers to process in each batch", Value: 100},
					&cli.IntFlag{Name: "concurrency", Usage: "Number of batches processed in parallel", Value: 2},
					&cli.IntFlag{Name: "report-interval", Usage: "Report progress every N answers", Value: 100},
					&cli.IntFlag{Name: "max-retries", Usage: "Maximum retry attempts for failed operations", Value: 3},
					&cli.DurationFlag{Name: "retry-delay", Usage: "Base delay for exponential backoff", Value: 1 * time.Second},
				),
			},
			{
				Name:   "seed",
				Usage:  "Load question and answer pairs from a JSON lines file",
				Action: a.seedCommand,
				Flags: append(deskFlags(),
					&cli.StringFlag{Name: "src", Usage: "File of seed data", Required: true},
					&cli.StringFlag{Name: "by", Usage: "Operator recorded on seeded answers", Value: "seed"},
				),
			},
		},
	}
}

// deskFlags are the flags every command needs to open the desk.
func deskFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
			EnvVars: []string{"FRONTDESK_DB"},
			Value:   "./frontdesk_db",
		},
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL",
			EnvVars: []string{"FRONTDESK_EMBEDDING_HOST"},
			Value:   "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			EnvVars: []string{"FRONTDESK_EMBEDDING_MODEL"},
			Value:   "nomic-embed-text",
		},
		&cli.StringFlag{
			Name:    "embedding-token",
			Usage:   "Embedding service API token",
			EnvVars: []string{"OPENAI_API_KEY"},
		},
		&cli.IntFlag{
			Name:    "dimensions",
			Usage:   "Embedding dimensionality",
			EnvVars: []string{"FRONTDESK_DIMENSIONS"},
			Value:   768,
		},
		&cli.DurationFlag{
			Name:    "sla",
			Usage:   "How long a query stays pending before it lapses",
			EnvVars: []string{"FRONTDESK_SLA"},
			Value:   24 * time.Hour,
		},
		&cli.Float64Flag{
			Name:    "threshold",
			Usage:   "Similarity a past answer must exceed to resolve a new query",
			EnvVars: []string{"FRONTDESK_THRESHOLD"},
			Value:   triage.DefaultAutoResolveThreshold,
		},
		&cli.StringFlag{
			Name:    "policy",
			Usage:   "What to do with a strong match (bind, suggest)",
			EnvVars: []string{"FRONTDESK_POLICY"},
			Value:   string(triage.DefaultAutoResolvePolicy),
		},
	}
}

func (a *app) openDesk(ctx context.Context, c *cli.Context) (*frontdesk.Desk, error) {
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithToken(c.String("embedding-token")),
		ai.WithDimensions(c.Int("dimensions")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	triageConfig := triage.DefaultConfig(aiConfig.Dimensions)
	triageConfig.AutoResolveThreshold = float32(c.Float64("threshold"))
	triageConfig.Policy = triage.AutoResolvePolicy(c.String("policy"))
	if err := triageConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid triage configuration: %w", err)
	}

	opts := append([]frontdesk.DeskOption{
		frontdesk.WithAIConfig(aiConfig),
		frontdesk.WithTriageConfig(triageConfig),
		frontdesk.WithSLA(c.Duration("sla")),
	}, a.extra...)

	desk, err := frontdesk.OpenDesk(ctx, c.String("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return desk, nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
