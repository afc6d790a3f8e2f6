package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveParents(t *testing.T) {
	nodes := []HierarchyNode{
		{Level: 0, RankName: "family", RankValue: "Araucariaceae", FullPath: "Araucariaceae"},
		{Level: 1, RankName: "genus", RankValue: "Araucaria", FullPath: "Araucariaceae|Araucaria"},
		{Level: 2, RankName: "species", RankValue: "columnaris", FullPath: "Araucariaceae|Araucaria|columnaris"},
	}

	ResolveParents(nodes)

	require.Nil(t, nodes[0].ParentPath)
	require.NotNil(t, nodes[1].ParentPath)
	require.Equal(t, "Araucariaceae", *nodes[1].ParentPath)
	require.NotNil(t, nodes[2].ParentPath)
	require.Equal(t, "Araucariaceae|Araucaria", *nodes[2].ParentPath)
}

func TestResolveParents_MissingParentStaysUnmatched(t *testing.T) {
	// The resolver never invents a parent; a dangling parent path is the
	// validator's problem.
	nodes := []HierarchyNode{
		{Level: 1, RankName: "genus", RankValue: "Araucaria", FullPath: "Araucariaceae|Araucaria"},
	}

	ResolveParents(nodes)

	require.NotNil(t, nodes[0].ParentPath)
	require.Equal(t, "Araucariaceae", *nodes[0].ParentPath)
}
