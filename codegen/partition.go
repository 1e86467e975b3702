package codegen

import (
	"hash/fnv"

	"quillc/depm"
)

// groupByOwner groups a definition graph by the name of each definition's
// top-level owner.  Owner groups are the units of parallel lowering: they are
// mutually independent and may be processed in any order.
func groupByOwner(graph depm.DefGraph) map[string]depm.DefGraph {
	groups := make(map[string]depm.DefGraph)

	for _, defn := range graph {
		groups[defn.Owner] = append(groups[defn.Owner], defn)
	}

	return groups
}

// groupByPackage groups a definition graph by package identifier.  Each group
// is returned sorted by canonical definition name so that both fingerprinting
// and emission observe the same normalized ordering.
func groupByPackage(graph depm.DefGraph) map[string]depm.DefGraph {
	groups := make(map[string]depm.DefGraph)

	for _, defn := range graph {
		pkgID := defn.PackageID()
		groups[pkgID] = append(groups[pkgID], defn)
	}

	for pkgID, group := range groups {
		groups[pkgID] = group.Sorted()
	}

	return groups
}

// partitionByOwner partitions a definition graph into at most n buckets,
// bucketing by the hash of each definition's owner name so that all members of
// one owner always land in the same bucket.  Every returned bucket is sorted
// by canonical definition name and non-empty: buckets that received no
// definitions are dropped.  The assignment depends only on owner names and n,
// never on input order or scheduling.
func partitionByOwner(graph depm.DefGraph, n int) []depm.DefGraph {
	buckets := make([]depm.DefGraph, n)

	for _, defn := range graph {
		ndx := ownerBucket(defn.Owner, n)
		buckets[ndx] = append(buckets[ndx], defn)
	}

	var partitions []depm.DefGraph
	for _, bucket := range buckets {
		if len(bucket) > 0 {
			partitions = append(partitions, bucket.Sorted())
		}
	}

	return partitions
}

// ownerBucket returns the bucket index an owner name maps to.
func ownerBucket(owner string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(owner))

	return int(h.Sum32() % uint32(n))
}
