package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	matchuc "github.com/kailas-cloud/vecmatch/internal/usecase/match"
)

const candidatesJSON = `[
  {"id": "a", "score": 0.92, "content": "go engineer"},
  {"id": "b", "score": 0.88, "content": "rust engineer"},
  {"id": "c", "score": 0.05, "content": "pastry chef"}
]`

func TestRunRank(t *testing.T) {
	var out bytes.Buffer
	if err := runRank(strings.NewReader(candidatesJSON), &out, 1, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp matchuc.Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("output is not a response: %v\n%s", err, out.String())
	}
	if len(resp.Items) != 2 || resp.Items[0].ID != "a" || resp.Items[1].ID != "b" {
		t.Errorf("items = %+v, want [a b]", resp.Items)
	}
	if resp.Stats.TotalCandidates != 3 || resp.Stats.FilteredCount != 2 {
		t.Errorf("stats = %+v", resp.Stats)
	}
}

func TestRunRank_Errors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		page    int
		perPage int
		wantErr string
	}{
		{"page zero", candidatesJSON, 0, 10, "page must be"},
		{"page past window", candidatesJSON, 5, 10, "page must be"},
		{"per page", candidatesJSON, 1, 0, "per-page must be"},
		{"bad json", "{", 1, 10, "decode candidates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runRank(strings.NewReader(tt.in), &bytes.Buffer{}, tt.page, tt.perPage)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestRankCmd_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.json")
	if err := os.WriteFile(path, []byte(candidatesJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"rank", "--file", path, "--per-page", "1", "--page", "2"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var resp matchuc.Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Page != 2 || len(resp.Items) != 1 || resp.Items[0].ID != "b" || resp.Items[0].Rank != 2 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "vecmatch ") {
		t.Errorf("version output = %q", out.String())
	}
}
