package codegen

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quillc/depm"
	"quillc/mir"
)

func testFuncDefn(name, owner string, retVal int64) *depm.Defn {
	return &depm.Defn{
		Name:  name,
		Owner: owner,
		Kind:  depm.DKFunc,
		Def: &mir.FuncDef{
			Name:       name,
			ReturnType: mir.Word,
			Pub:        true,
			RetValue:   &retVal,
		},
	}
}

func testGraph() depm.DefGraph {
	return depm.DefGraph{
		testFuncDefn("a.X.one", "a.X", 1),
		testFuncDefn("a.X.two", "a.X", 2),
		testFuncDefn("a.Y.one", "a.Y", 3),
		testFuncDefn("b.Z.one", "b.Z", 4),
		testFuncDefn("b.Z.two", "b.Z", 5),
		testFuncDefn("Main.main", "Main", 6),
	}
}

func TestPartitionByOwnerTotality(t *testing.T) {
	graph := testGraph()
	partitions := partitionByOwner(graph, 3)

	assert.LessOrEqual(t, len(partitions), 3)

	var names []string
	for _, bucket := range partitions {
		require.NotEmpty(t, bucket)

		for _, defn := range bucket {
			names = append(names, defn.Name)
		}
	}

	// every definition lands in exactly one bucket
	require.Len(t, names, len(graph))
	sort.Strings(names)
	for i, defn := range graph.Sorted() {
		assert.Equal(t, defn.Name, names[i])
	}
}

func TestPartitionByOwnerAtomicity(t *testing.T) {
	partitions := partitionByOwner(testGraph(), 3)

	ownerBuckets := make(map[string]int)
	for i, bucket := range partitions {
		for _, defn := range bucket {
			if prev, ok := ownerBuckets[defn.Owner]; ok {
				assert.Equal(t, prev, i, "owner %s split across buckets", defn.Owner)
			} else {
				ownerBuckets[defn.Owner] = i
			}
		}
	}
}

func TestPartitionByOwnerBucketsAreSorted(t *testing.T) {
	for _, bucket := range partitionByOwner(testGraph(), 2) {
		assert.True(t, sort.SliceIsSorted(bucket, func(i, j int) bool {
			return bucket[i].Name < bucket[j].Name
		}))
	}
}

func TestPartitionByOwnerIgnoresInputOrder(t *testing.T) {
	graph := testGraph()

	reversed := make(depm.DefGraph, len(graph))
	for i, defn := range graph {
		reversed[len(graph)-1-i] = defn
	}

	first := partitionByOwner(graph, 3)
	second := partitionByOwner(reversed, 3)

	require.Len(t, second, len(first))
	for i, bucket := range first {
		require.Len(t, second[i], len(bucket))

		for j, defn := range bucket {
			assert.Equal(t, defn.Name, second[i][j].Name)
		}
	}
}

func TestGroupByPackage(t *testing.T) {
	groups := groupByPackage(testGraph())

	require.Len(t, groups, 3)
	assert.Len(t, groups["a"], 3)
	assert.Len(t, groups["b"], 2)
	assert.Len(t, groups[depm.RootPackageID], 1)

	// groups come back sorted by canonical name
	assert.Equal(t, "a.X.one", groups["a"][0].Name)
	assert.Equal(t, "a.X.two", groups["a"][1].Name)
	assert.Equal(t, "a.Y.one", groups["a"][2].Name)
}
