// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search ranks the symbols of an analysis against a name query.
//
// # Scoring
//
// Each symbol gets a composite score, lower is better:
//
//	score = tier*10000 + position*100 + length*10 + kind
//
// Tiers, best first: exact (0), prefix (1), camel-case word (2),
// substring (3), fuzzy within the edit-distance budget (4). Symbols that
// reach no tier are dropped.
package search

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

// DefaultLimit caps results when Query.Limit is not positive.
const DefaultLimit = 50

// checkInterval is how often Search polls for cancellation.
const checkInterval = 1000

// Match types.
const (
	MatchExact     = "exact"
	MatchPrefix    = "prefix"
	MatchCamelCase = "camel_case"
	MatchSubstring = "substring"
	MatchFuzzy     = "fuzzy"
)

// Query selects and ranks symbols.
type Query struct {
	// Text is matched against the simple name. Empty matches nothing.
	Text string

	// NodeType restricts results to one node type when set.
	NodeType model.NodeType

	// Limit caps the result count. Defaults to DefaultLimit.
	Limit int
}

// Match is one ranked result.
type Match struct {
	Symbol    *model.Symbol `json:"symbol"`
	Score     int           `json:"score"`
	MatchType string        `json:"match_type"`
}

// Index holds the symbols of one analysis.
//
// Thread Safety: Immutable after NewIndex; safe for concurrent use.
type Index struct {
	symbols []*model.Symbol
}

// NewIndex indexes nodes. Nil entries are skipped.
func NewIndex(nodes []*model.Symbol) *Index {
	idx := &Index{symbols: make([]*model.Symbol, 0, len(nodes))}
	for _, n := range nodes {
		if n != nil {
			idx.symbols = append(idx.symbols, n)
		}
	}
	return idx
}

// Len returns the number of indexed symbols.
func (idx *Index) Len() int {
	return len(idx.symbols)
}

// Search returns the best matches for q, ties broken by FQN.
//
// Outputs:
//
//	[]Match - Ranked matches; nil for an empty query.
//	error - ctx.Err() if cancelled.
func (idx *Index) Search(ctx context.Context, q Query) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Text == "" {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	lower := strings.ToLower(q.Text)

	var matches []Match
	for i, sym := range idx.symbols {
		if i%checkInterval == checkInterval-1 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if q.NodeType != "" && sym.NodeType != q.NodeType {
			continue
		}
		if score, kind := Score(q.Text, lower, sym.Name, sym.NodeType); score >= 0 {
			matches = append(matches, Match{Symbol: sym, Score: score, MatchType: kind})
		}
	}

	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(a.Score, b.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Symbol.FQN, b.Symbol.FQN)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Score rates name against query. queryLower must be strings.ToLower(query).
// A negative score means no match.
func Score(query, queryLower, name string, nodeType model.NodeType) (int, string) {
	nameLower := strings.ToLower(name)
	if nameLower == queryLower {
		return 0, MatchExact
	}

	var tier, pos int
	var kind string
	switch {
	case strings.HasPrefix(nameLower, queryLower):
		tier, kind = 1, MatchPrefix
	case wordMatch(name, queryLower) >= 0:
		tier, kind, pos = 2, MatchCamelCase, wordMatch(name, queryLower)
	case strings.Contains(nameLower, queryLower):
		tier, kind, pos = 3, MatchSubstring, strings.Index(nameLower, queryLower)
	default:
		budget := max(2, len(queryLower)/3)
		if editDistance(nameLower, queryLower) > budget {
			return -1, ""
		}
		tier, kind = 4, MatchFuzzy
	}

	position := 0
	if pos > 0 {
		position = min(99, pos*100/len(name))
	}
	length := min(99, absInt(len(name)-len(query)))
	return tier*10000 + position*100 + length*10 + kindPenalty(nodeType), kind
}

// wordMatch returns the offset of a camel-case word in name that equals
// queryLower, or -1. "Repository" matches "OrderRepository" at 5;
// "order" does not match "Reorder".
func wordMatch(name, queryLower string) int {
	n := len(queryLower)
	for i := 0; i+n <= len(name); i++ {
		boundary := i == 0 || (isUpper(name[i]) && !isUpper(name[i-1])) || name[i-1] == '$' || name[i-1] == '_'
		if !boundary || strings.ToLower(name[i:i+n]) != queryLower {
			continue
		}
		if end := i + n; end == len(name) || isUpper(name[end]) || !isLetter(name[end]) {
			return i
		}
	}
	return -1
}

// kindPenalty ranks types ahead of methods.
func kindPenalty(t model.NodeType) int {
	switch t {
	case model.NodeTypeClass:
		return 0
	case model.NodeTypeInterface, model.NodeTypeEnum:
		return 1
	case model.NodeTypeMethod:
		return 2
	}
	return 5
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func isLetter(c byte) bool {
	return isUpper(c) || (c >= 'a' && c <= 'z')
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// editDistance is the Levenshtein distance, computed over two rows.
func editDistance(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
