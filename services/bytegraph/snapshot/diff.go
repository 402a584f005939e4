// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
	"github.com/AleutianAI/bytegraph/services/bytegraph/reshape"
)

// Node change types, checked in this order; a node reports the first that
// applies.
const (
	ChangeSignature  = "signature_changed"
	ChangeHierarchy  = "hierarchy_changed"
	ChangeModifiers  = "modifiers_changed"
	ChangeAttributes = "attributes_changed"
	ChangeEdges      = "edges_changed"
	ChangeLine       = "line_moved"
)

// Diff describes how a target analysis differs from a base analysis.
// Nodes are identified by FQN; edges by type, kind and endpoints.
type Diff struct {
	BaseID   string `json:"base_id,omitempty"`
	TargetID string `json:"target_id,omitempty"`

	NodesAdded    []string   `json:"nodes_added"`
	NodesRemoved  []string   `json:"nodes_removed"`
	NodesModified []NodeDiff `json:"nodes_modified"`

	EdgesAdded   int `json:"edges_added"`
	EdgesRemoved int `json:"edges_removed"`

	Summary DiffSummary `json:"summary"`
}

// NodeDiff is one symbol present in both analyses that changed.
type NodeDiff struct {
	FQN        string         `json:"fqn"`
	NodeType   model.NodeType `json:"node_type"`
	ChangeType string         `json:"change_type"`
}

// DiffSummary aggregates a Diff.
type DiffSummary struct {
	TotalChanges int `json:"total_changes"`

	// ClassesAffected counts distinct classes that were added, removed,
	// changed, or own a method that was.
	ClassesAffected int `json:"classes_affected"`

	// ChangeRatio is changed nodes over the larger node count.
	ChangeRatio float64 `json:"change_ratio"`
}

// Empty reports whether the analyses are identical.
func (d *Diff) Empty() bool {
	return d.Summary.TotalChanges == 0
}

// DiffAnalyses compares two analyses.
//
// Outputs:
//
//	*Diff - Sorted added, removed and modified node lists and edge counts.
//	error - Non-nil if either analysis is nil.
func DiffAnalyses(base, target *Analysis, baseID, targetID string) (*Diff, error) {
	if base == nil || target == nil {
		return nil, errors.New("DiffAnalyses: base and target must not be nil")
	}

	baseNodes := nodesByFQN(base.Nodes)
	targetNodes := nodesByFQN(target.Nodes)
	baseOut := outgoing(base.Edges)
	targetOut := outgoing(target.Edges)

	d := &Diff{
		BaseID:        baseID,
		TargetID:      targetID,
		NodesAdded:    []string{},
		NodesRemoved:  []string{},
		NodesModified: []NodeDiff{},
	}
	affected := make(map[string]bool)

	for fqn, t := range targetNodes {
		b, ok := baseNodes[fqn]
		if !ok {
			d.NodesAdded = append(d.NodesAdded, fqn)
			affected[classOf(t)] = true
			continue
		}
		if change := classifyChange(b, t, baseOut[fqn], targetOut[fqn]); change != "" {
			d.NodesModified = append(d.NodesModified, NodeDiff{FQN: fqn, NodeType: t.NodeType, ChangeType: change})
			affected[classOf(t)] = true
		}
	}
	for fqn, b := range baseNodes {
		if _, ok := targetNodes[fqn]; !ok {
			d.NodesRemoved = append(d.NodesRemoved, fqn)
			affected[classOf(b)] = true
		}
	}

	slices.Sort(d.NodesAdded)
	slices.Sort(d.NodesRemoved)
	slices.SortFunc(d.NodesModified, func(a, b NodeDiff) int {
		return strings.Compare(a.FQN, b.FQN)
	})

	baseEdges := edgeSet(base.Edges)
	targetEdges := edgeSet(target.Edges)
	for key := range targetEdges {
		if !baseEdges[key] {
			d.EdgesAdded++
		}
	}
	for key := range baseEdges {
		if !targetEdges[key] {
			d.EdgesRemoved++
		}
	}

	changed := len(d.NodesAdded) + len(d.NodesRemoved) + len(d.NodesModified)
	total := max(len(baseNodes), len(targetNodes))
	ratio := 0.0
	if total > 0 {
		ratio = float64(changed) / float64(total)
	}
	d.Summary = DiffSummary{
		TotalChanges:    changed + d.EdgesAdded + d.EdgesRemoved,
		ClassesAffected: len(affected),
		ChangeRatio:     ratio,
	}
	return d, nil
}

// Diff loads two snapshots and compares them.
func (s *Store) Diff(ctx context.Context, baseID, targetID string) (*Diff, error) {
	base, _, err := s.Load(ctx, baseID)
	if err != nil {
		return nil, fmt.Errorf("loading base %s: %w", baseID, err)
	}
	target, _, err := s.Load(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("loading target %s: %w", targetID, err)
	}
	return DiffAnalyses(base, target, baseID, targetID)
}

func classifyChange(b, t *model.Symbol, bOut, tOut map[string]bool) string {
	switch {
	case b.NodeType != t.NodeType || b.Descriptor != t.Descriptor || b.ReturnType != t.ReturnType:
		return ChangeSignature
	case b.SuperClass != t.SuperClass || !slices.Equal(b.Interfaces, t.Interfaces):
		return ChangeHierarchy
	case !slices.Equal(b.Modifiers, t.Modifiers) || b.IsAbstract != t.IsAbstract || b.IsFinal != t.IsFinal:
		return ChangeModifiers
	case b.IsEntity != t.IsEntity || !attributesEqual(b.Attributes, t.Attributes):
		return ChangeAttributes
	case !setsEqual(bOut, tOut):
		return ChangeEdges
	case b.LineNumber != t.LineNumber:
		return ChangeLine
	}
	return ""
}

// attributesEqual compares attribute maps through their JSON encoding, so
// a freshly extracted map equals its decoded snapshot copy.
func attributesEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

func nodesByFQN(nodes []*model.Symbol) map[string]*model.Symbol {
	m := make(map[string]*model.Symbol, len(nodes))
	for _, n := range nodes {
		if n != nil {
			m[n.FQN] = n
		}
	}
	return m
}

func edgeKey(e *model.Edge) string {
	return string(e.EdgeType) + "|" + e.Kind + "|" + e.FromFQN + "|" + e.ToFQN
}

func edgeSet(edges []*model.Edge) map[string]bool {
	set := make(map[string]bool, len(edges))
	for _, e := range edges {
		if e != nil {
			set[edgeKey(e)] = true
		}
	}
	return set
}

func outgoing(edges []*model.Edge) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, e := range edges {
		if e == nil {
			continue
		}
		set := out[e.FromFQN]
		if set == nil {
			set = make(map[string]bool)
			out[e.FromFQN] = set
		}
		set[edgeKey(e)] = true
	}
	return out
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// classOf returns the class a node belongs to.
func classOf(n *model.Symbol) string {
	if n.NodeType == model.NodeTypeMethod {
		if owner, ok := reshape.OwnerOf(n.FQN); ok {
			return owner
		}
	}
	return n.FQN
}
