package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecmatch/internal/domain/candidate"
	"github.com/kailas-cloud/vecmatch/internal/domain/ranking"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/query"
	matchuc "github.com/kailas-cloud/vecmatch/internal/usecase/match"
)

// rawCandidate is one entry of the rank input file.
type rawCandidate struct {
	ID         string         `json:"id"`
	Partition  string         `json:"partition,omitempty"`
	Score      float64        `json:"score"`
	Content    string         `json:"content"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func newRankCmd() *cobra.Command {
	var (
		file    string
		page    int
		perPage int
	)
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank a JSON array of scored candidates offline",
		Long: `Reads [{"id", "score", "content", ...}] from --file (or stdin with "-")
and prints the requested page and batch statistics as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := openInput(cmd, file)
			if err != nil {
				return err
			}
			defer in.Close()
			return runRank(in, cmd.OutOrStdout(), page, perPage)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", `candidates file, "-" for stdin`)
	cmd.Flags().IntVar(&page, "page", 1, fmt.Sprintf("page number (1-%d)", query.MaxPage))
	cmd.Flags().IntVar(&perPage, "per-page", query.DefaultPerPage, "results per page")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func openInput(cmd *cobra.Command, file string) (io.ReadCloser, error) {
	if file == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(filepath.Clean(file))
	if err != nil {
		return nil, fmt.Errorf("open candidates: %w", err)
	}
	return f, nil
}

func runRank(in io.Reader, out io.Writer, page, perPage int) error {
	if page < 1 || page > query.MaxPage {
		return fmt.Errorf("page must be between 1 and %d", query.MaxPage)
	}
	if perPage < 1 || perPage > query.MaxPerPage {
		return fmt.Errorf("per-page must be between 1 and %d", query.MaxPerPage)
	}

	var raw []rawCandidate
	if err := json.NewDecoder(in).Decode(&raw); err != nil {
		return fmt.Errorf("decode candidates: %w", err)
	}
	batch := make([]candidate.Candidate, len(raw))
	for i, c := range raw {
		batch[i] = candidate.New(c.ID, c.Partition, c.Score, c.Content, c.Attributes)
	}

	p, stats := ranking.Rank(batch, page, perPage)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(matchuc.NewResponse(p, stats)); err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	return nil
}
