package services

// CleanExternalIDs attributes each distinct external id to the deepest node
// it was observed at, nulling it on all shallower occurrences. Denormalized
// source tables repeat the row id across every hierarchy column, which would
// otherwise leak a child's identifier onto its ancestors.
func CleanExternalIDs(nodes []HierarchyNode) {
	deepest := make(map[int64]int)
	for _, n := range nodes {
		if n.ExternalID == nil {
			continue
		}
		if level, ok := deepest[*n.ExternalID]; !ok || n.Level > level {
			deepest[*n.ExternalID] = n.Level
		}
	}

	for i := range nodes {
		if nodes[i].ExternalID == nil {
			continue
		}
		if nodes[i].Level != deepest[*nodes[i].ExternalID] {
			nodes[i].ExternalID = nil
		}
	}
}
