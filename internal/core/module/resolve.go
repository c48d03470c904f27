package module

// Resolve orders mods so that every module follows all of its dependencies
// (Kahn's algorithm over dependency -> dependent edges).
//
// Every dependency id is checked before sorting; the first one that matches
// no module yields an *UnknownDependencyError. Edges left over after the sort
// yield a *CyclicDependencyError and no partial order.
//
// Ties are broken deterministically: modules without dependencies are taken
// in input order, and a module that becomes eligible is queued in the order
// its last dependency was processed.
func Resolve(mods []*Registration) ([]*Registration, error) {
	byID := make(map[string]*Registration, len(mods))
	for _, m := range mods {
		byID[m.ID] = m
	}

	indegree := make(map[string]int, len(mods))
	dependents := make(map[string][]string, len(mods))
	for _, m := range mods {
		seen := make(map[string]bool, len(m.DependsOn))
		for _, dep := range m.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, &UnknownDependencyError{Module: m.ID, Dependency: dep}
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			indegree[m.ID]++
			dependents[dep] = append(dependents[dep], m.ID)
		}
	}

	queue := make([]string, 0, len(mods))
	for _, m := range mods {
		if indegree[m.ID] == 0 {
			queue = append(queue, m.ID)
		}
	}

	sorted := make([]*Registration, 0, len(mods))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, byID[id])

		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(mods) {
		var stuck []string
		for _, m := range mods {
			if indegree[m.ID] > 0 {
				stuck = append(stuck, m.ID)
			}
		}
		return nil, &CyclicDependencyError{Modules: stuck}
	}
	return sorted, nil
}
