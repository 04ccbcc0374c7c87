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
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/poiesic/frontdesk"
	"github.com/poiesic/frontdesk/reembed"
	"github.com/urfave/cli/v2"
)

func (a *app) submitCommand(c *cli.Context) error {
	body := strings.Join(c.Args().Slice(), " ")
	return a.withService(c, func(ctx context.Context, _ *frontdesk.Desk, svc *frontdesk.Service) error {
		resp, err := svc.SubmitQuery(ctx, frontdesk.CreateQueryRequest{
			Query:    body,
			UserID:   c.String("user"),
			JobID:    c.String("job"),
			RoomName: c.String("room"),
		})
		if err != nil {
			return err
		}
		return a.printJSON(resp)
	})
}

func (a *app) answerCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	return a.withService(c, func(ctx context.Context, _ *frontdesk.Desk, svc *frontdesk.Service) error {
		answer, err := svc.SubmitAnswer(ctx, frontdesk.CreateAnswerRequest{
			QueryID:    c.String("query"),
			AnswerText: text,
			ResolvedBy: c.String("by"),
		})
		if err != nil {
			return err
		}
		return a.printJSON(answer)
	})
}

func (a *app) listCommand(c *cli.Context) error {
	return a.withService(c, func(ctx context.Context, desk *frontdesk.Desk, svc *frontdesk.Service) error {
		queries, err := svc.ListQueries(ctx, c.String("status"))
		if err != nil {
			return err
		}

		now := desk.Engine().Now()
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tROOM\tCREATED\tDEADLINE\tQUERY")
		for _, q := range queries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				q.ID, q.Status, q.RoomName,
				humanize.RelTime(q.CreatedAt, now, "ago", "from now"),
				humanize.RelTime(q.Deadline, now, "ago", "from now"),
				q.Query)
		}
		return w.Flush()
	})
}

func (a *app) showCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("show takes exactly one query id")
	}
	return a.withService(c, func(ctx context.Context, _ *frontdesk.Desk, svc *frontdesk.Service) error {
		query, err := svc.GetQuery(ctx, c.Args().First())
		if err != nil {
			return err
		}
		out := struct {
			Query  *frontdesk.QueryView  `json:"query"`
			Answer *frontdesk.AnswerView `json:"answer,omitempty"`
		}{Query: query}
		if query.AnswerID != nil {
			out.Answer, err = svc.GetAnswer(ctx, *query.AnswerID)
			if err != nil {
				return err
			}
		}
		return a.printJSON(out)
	})
}

func (a *app) searchCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	return a.withService(c, func(ctx context.Context, _ *frontdesk.Desk, svc *frontdesk.Service) error {
		results, err := svc.SearchText(ctx, frontdesk.TextSearchRequest{Query: text, TopK: c.Int("top-k")})
		if err != nil {
			return err
		}
		return a.printJSON(results)
	})
}

func (a *app) sweepCommand(c *cli.Context) error {
	return a.withService(c, func(ctx context.Context, desk *frontdesk.Desk, _ *frontdesk.Service) error {
		if interval := c.Duration("watch"); interval > 0 {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return desk.NewSweeper(interval).Run(ctx)
		}

		engine := desk.Engine()
		n, err := engine.SweepExpired(ctx, engine.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Expired %d queries\n", n)
		return nil
	})
}

func (a *app) followupsCommand(c *cli.Context) error {
	return a.withService(c, func(ctx context.Context, _ *frontdesk.Desk, svc *frontdesk.Service) error {
		if id := c.String("mark"); id != "" {
			if err := svc.MarkDelivered(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Marked answer %s delivered\n", id)
			return nil
		}

		followUps, err := svc.PendingFollowUps(ctx, c.String("room"))
		if err != nil {
			return err
		}
		return a.printJSON(followUps)
	})
}

func (a *app) reconcileCommand(c *cli.Context) error {
	return a.withService(c, func(ctx context.Context, desk *frontdesk.Desk, _ *frontdesk.Service) error {
		removed, err := desk.Engine().ReconcileOrphans(ctx, c.Duration("grace"))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Removed %d orphaned answers\n", len(removed))
		for _, id := range removed {
			fmt.Fprintln(a.out, frontdesk.FormatID(id))
		}
		return nil
	})
}

func (a *app) reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		Concurrency:    c.Int("concurrency"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	return a.withService(c, func(ctx context.Context, desk *frontdesk.Desk, _ *frontdesk.Service) error {
		fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
		fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
		fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
		fmt.Fprintln(os.Stderr)

		p, err := desk.NewReembedder(reembedConfig, os.Stderr).Run(ctx)
		if err != nil {
			return fmt.Errorf("reembedding failed after %d answers: %w", p.Processed, err)
		}
		fmt.Fprintf(a.out, "Reembedded %d answers (%d reindexed, %d not indexed)\n", p.Processed, p.Reindexed, p.Unindexed)
		return nil
	})
}

// withService opens the desk for the duration of fn.
func (a *app) withService(c *cli.Context, fn func(context.Context, *frontdesk.Desk, *frontdesk.Service) error) error {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	desk, err := a.openDesk(ctx, c)
	if err != nil {
		return err
	}
	defer desk.Close()

	return fn(ctx, desk, desk.NewService())
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
