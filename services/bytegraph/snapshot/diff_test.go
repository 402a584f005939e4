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
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

func TestDiffAnalyses_Identical(t *testing.T) {
	d, err := DiffAnalyses(testAnalysis("/r"), testAnalysis("/r"), "a", "b")
	require.NoError(t, err)
	assert.True(t, d.Empty())
	assert.Empty(t, d.NodesAdded)
	assert.Empty(t, d.NodesModified)
	assert.Zero(t, d.Summary.ChangeRatio)
}

func TestDiffAnalyses_Changes(t *testing.T) {
	base := testAnalysis("/r")
	base.Nodes = append(base.Nodes, &model.Symbol{NodeType: model.NodeTypeClass, FQN: "com.x.Gone", Name: "Gone"})

	target := testAnalysis("/r")
	target.Nodes[0].Attributes[model.AttrSpringBeanType] = "component"
	target.Nodes[1].LineNumber = 20
	target.Nodes = append(target.Nodes, &model.Symbol{NodeType: model.NodeTypeMethod, FQN: "com.x.Foo.stop()", Name: "stop", LineNumber: 30})
	target.Edges = append(target.Edges, &model.Edge{
		EdgeType: model.EdgeTypeMemberOf, Kind: model.KindMethod, FromFQN: "com.x.Foo.stop()", ToFQN: "com.x.Foo",
	})

	d, err := DiffAnalyses(base, target, "base", "target")
	require.NoError(t, err)

	assert.Equal(t, []string{"com.x.Foo.stop()"}, d.NodesAdded)
	assert.Equal(t, []string{"com.x.Gone"}, d.NodesRemoved)
	assert.Equal(t, []NodeDiff{
		{FQN: "com.x.Foo", NodeType: model.NodeTypeClass, ChangeType: ChangeAttributes},
		{FQN: "com.x.Foo.run()", NodeType: model.NodeTypeMethod, ChangeType: ChangeLine},
	}, d.NodesModified)
	assert.Equal(t, 1, d.EdgesAdded)
	assert.Zero(t, d.EdgesRemoved)

	assert.Equal(t, 5, d.Summary.TotalChanges)
	assert.Equal(t, 2, d.Summary.ClassesAffected)
	assert.InDelta(t, 4.0/3.0, d.Summary.ChangeRatio, 1e-9)
}

func TestDiffAnalyses_EdgeAndSignatureChanges(t *testing.T) {
	base := testAnalysis("/r")
	target := testAnalysis("/r")
	target.Edges[1].ToFQN = "com.x.Util.other()"
	target.Nodes[1].Descriptor = "(I)V"

	d, err := DiffAnalyses(base, target, "", "")
	require.NoError(t, err)
	require.Len(t, d.NodesModified, 1)
	assert.Equal(t, ChangeSignature, d.NodesModified[0].ChangeType)
	assert.Equal(t, 1, d.EdgesAdded)
	assert.Equal(t, 1, d.EdgesRemoved)

	target.Nodes[1].Descriptor = ""
	d, err = DiffAnalyses(base, target, "", "")
	require.NoError(t, err)
	require.Len(t, d.NodesModified, 1)
	assert.Equal(t, ChangeEdges, d.NodesModified[0].ChangeType)
}

func TestDiffAnalyses_Nil(t *testing.T) {
	_, err := DiffAnalyses(nil, testAnalysis("/r"), "", "")
	assert.Error(t, err)
}

func TestAttributesEqual_DecodedCopy(t *testing.T) {
	fresh := map[string]any{"aspect_order": 3, "spring_depends_on": []string{"a", "b"}}
	data, err := json.Marshal(fresh)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, attributesEqual(fresh, decoded))
	assert.True(t, attributesEqual(nil, map[string]any{}))
	assert.False(t, attributesEqual(fresh, map[string]any{"aspect_order": 4, "spring_depends_on": []string{"a", "b"}}))
}

func TestStore_Diff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m1, err := s.Save(ctx, testAnalysis("/r"), "")
	require.NoError(t, err)
	next := testAnalysis("/r")
	next.Nodes[1].LineNumber = 99
	m2, err := s.Save(ctx, next, "")
	require.NoError(t, err)

	d, err := s.Diff(ctx, m1.AnalysisID, m2.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, m1.AnalysisID, d.BaseID)
	require.Len(t, d.NodesModified, 1)
	assert.Equal(t, ChangeLine, d.NodesModified[0].ChangeType)

	_, err = s.Diff(ctx, m1.AnalysisID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
