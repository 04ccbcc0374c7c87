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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/poiesic/frontdesk"
	"github.com/urfave/cli/v2"
)

// seedPair is one line of a seed file.
type seedPair struct {
	Query    string `json:"query"`
	Answer   string `json:"answer"`
	UserID   string `json:"user_id"`
	RoomName string `json:"room_name"`
	JobID    string `json:"job_id"`
}

// maxSeedLine bounds a single seed line. Longer lines fail the import.
const maxSeedLine = 1 << 20

// linesFromFile returns an iterator over non-blank lines in a file. The
// file is opened when iteration starts and closed when it ends. A failure
// to open or read the file is yielded as the final error.
func linesFromFile(filename string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f, err := os.Open(filename)
		if err != nil {
			yield("", err)
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), maxSeedLine)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !yield(line, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("reading %s: %w", filename, err))
		}
	}
}

// seedPairs submits each pair as a query followed by its answer. Queries
// the engine resolves on its own from an earlier pair are not answered
// again. Returns the number of answers stored.
func seedPairs(ctx context.Context, svc *frontdesk.Service, source iter.Seq2[string, error], author string) (int, error) {
	answered := 0
	lineNo := 0
	for line, err := range source {
		lineNo++
		if err != nil {
			return answered, fmt.Errorf("line %d: %w", lineNo, err)
		}
		var pair seedPair
		if err := json.Unmarshal([]byte(line), &pair); err != nil {
			return answered, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if pair.UserID == "" {
			pair.UserID = author
		}

		resp, err := svc.SubmitQuery(ctx, frontdesk.CreateQueryRequest{
			Query:    pair.Query,
			UserID:   pair.UserID,
			JobID:    pair.JobID,
			RoomName: pair.RoomName,
		})
		if err != nil {
			return answered, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if resp.Query.AnswerID != nil {
			continue
		}

		if _, err := svc.SubmitAnswer(ctx, frontdesk.CreateAnswerRequest{
			QueryID:    resp.Query.ID,
			AnswerText: pair.Answer,
			ResolvedBy: author,
		}); err != nil {
			return answered, fmt.Errorf("line %d: %w", lineNo, err)
		}
		answered++
	}
	return answered, nil
}

func (a *app) seedCommand(c *cli.Context) error {
	return a.withService(c, func(ctx context.Context, _ *frontdesk.Desk, svc *frontdesk.Service) error {
		n, err := seedPairs(ctx, svc, linesFromFile(c.String("src")), c.String("by"))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Seeded %d answers\n", n)
		return nil
	})
}
