// Package universe supplies the tickers scraped in a cycle.
package universe

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Universe reads tickers from a tab-delimited file (first column) and/or a
// static list. The result is upper-cased, deduplicated and keeps the order
// of first appearance, file entries first.
type Universe struct {
	path    string
	symbols []string
}

func New(path string, symbols []string) *Universe {
	return &Universe{path: path, symbols: symbols}
}

func (u *Universe) Tickers(ctx context.Context) ([]string, error) {
	var raw []string
	if u.path != "" {
		fromFile, err := readFile(u.path)
		if err != nil {
			return nil, err
		}
		raw = append(raw, fromFile...)
	}
	raw = append(raw, u.symbols...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, errors.New("universe is empty")
	}
	return out, nil
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe: %w", err)
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var out []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse universe: %w", err)
		}
		if len(rec) > 0 {
			out = append(out, rec[0])
		}
	}
}
