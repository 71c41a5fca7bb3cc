package workflow

// DepIndex answers producer/consumer questions for a task sequence.
// It is built in a single pass and never mutates the tasks.
type DepIndex struct {
	// producer maps a file name to the id of the task that declares it as
	// an output. If several tasks declare the same output the last one
	// wins; the validator flags that case, the index does not.
	producer map[string]int
	// consumers maps a file name to the ids of tasks that declare it as
	// an input, in task order.
	consumers map[string][]int
}

// Index builds a dependency index over the given task sequence.
func Index(tasks []*Task) *DepIndex {
	idx := &DepIndex{
		producer:  make(map[string]int),
		consumers: make(map[string][]int),
	}
	for _, t := range tasks {
		for _, name := range t.Outputs {
			idx.producer[name] = t.ID
		}
		for _, name := range t.Inputs {
			idx.consumers[name] = append(idx.consumers[name], t.ID)
		}
	}
	return idx
}

// Producer returns the id of the task producing the named file, if any.
func (idx *DepIndex) Producer(name string) (int, bool) {
	id, ok := idx.producer[name]
	return id, ok
}

// Consumers returns the ids of tasks consuming the named file, in task order.
func (idx *DepIndex) Consumers(name string) []int {
	return idx.consumers[name]
}

// Parents returns the ids of tasks producing t's inputs. The list is
// deduplicated, excludes t itself, and preserves first-seen order over
// t's own input declaration order. A pair of tasks sharing several files
// still yields a single entry.
func (idx *DepIndex) Parents(t *Task) []int {
	var parents []int
	seen := make(map[int]bool)
	for _, name := range t.Inputs {
		p, ok := idx.producer[name]
		if !ok || p == t.ID || seen[p] {
			continue
		}
		seen[p] = true
		parents = append(parents, p)
	}
	return parents
}

// Children returns the ids of tasks consuming t's outputs, with the same
// deduplication and ordering rules as Parents.
func (idx *DepIndex) Children(t *Task) []int {
	var children []int
	seen := make(map[int]bool)
	for _, name := range t.Outputs {
		for _, c := range idx.consumers[name] {
			if c == t.ID || seen[c] {
				continue
			}
			seen[c] = true
			children = append(children, c)
		}
	}
	return children
}
