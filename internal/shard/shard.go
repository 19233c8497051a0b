// Package shard defines the file-based interface between the partitioner,
// the shard workers, and the result importer. Shard and result files are the
// only coupling between the phases: workers never touch the shared store,
// which is what lets many of them run without coordination.
package shard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scorelines/matchpipe/internal/model"
)

// Entry is one unit of work inside a shard. Deliberately minimal: workers
// re-derive everything else from the match id.
type Entry struct {
	ScrapeID int64  `json:"scrapeId"`
	MatchID  string `json:"matchId"`
}

// Result is the per-match outcome a worker emits: exactly one of Details or
// Error is present.
type Result struct {
	MatchID  string              `json:"matchId"`
	ScrapeID int64               `json:"scrapeId"`
	Details  *model.MatchDetails `json:"details,omitempty"`
	DateInfo *model.DateInfo     `json:"dateInfo,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Success reports whether the entry carries a scraped payload.
func (r Result) Success() bool {
	return r.Error == "" && r.Details != nil
}

// FileName returns the zero-padded shard file name for seq (1-based).
// Padding keeps lexical and numeric ordering aligned.
func FileName(seq int) string {
	return fmt.Sprintf("shard_%04d.json", seq)
}

// ResultFileName maps a shard file name to its result file name.
func ResultFileName(shardFile string) string {
	base := strings.TrimSuffix(filepath.Base(shardFile), filepath.Ext(shardFile))
	return "result_" + base + ".json"
}

// WriteShard persists one shard atomically: temp file then rename, so a
// half-written shard is never observable under its final name.
func WriteShard(dir string, seq int, entries []Entry) (string, error) {
	path := filepath.Join(dir, FileName(seq))
	if err := writeJSON(path, entries); err != nil {
		return "", fmt.Errorf("write shard %d: %w", seq, err)
	}
	return path, nil
}

// ReadShard loads one shard file.
func ReadShard(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shard %s: %w", path, err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode shard %s: %w", path, err)
	}
	return entries, nil
}

// WriteResults persists a worker's full ordered result list, atomically.
func WriteResults(dir, shardFile string, results []Result) (string, error) {
	path := filepath.Join(dir, ResultFileName(shardFile))
	if err := writeJSON(path, results); err != nil {
		return "", fmt.Errorf("write results for %s: %w", shardFile, err)
	}
	return path, nil
}

// ReadResults loads one result file.
func ReadResults(path string) ([]Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results %s: %w", path, err)
	}
	var results []Result
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decode results %s: %w", path, err)
	}
	return results, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	return nil
}
