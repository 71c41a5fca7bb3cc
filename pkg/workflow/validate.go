package workflow

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Result holds the accumulated findings of a validation run. Errors make
// the document unusable; warnings are hygiene issues that never block.
type Result struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the document passed (warnings allowed).
func (r *Result) OK() bool { return len(r.Errors) == 0 }

// Err returns nil when the result has no errors, or a single combined
// error listing every finding.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("workflow validation failed:\n  %s", strings.Join(r.Errors, "\n  "))
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateFile validates the abstract workflow document at path. It never
// panics or returns early on malformed input: unreadable or unparsable
// files become a single error entry in the result.
func ValidateFile(path string) *Result {
	raw, err := os.ReadFile(path)
	if err != nil {
		r := &Result{}
		r.errorf("File not found: %s", path)
		return r
	}
	return Validate(raw)
}

// Validate runs every structural check over a raw YAML document and
// returns the full batch of findings. Checks never stop at the first
// problem.
func Validate(raw []byte) *Result {
	r := &Result{}

	var root any
	if err := yaml.UnmarshalWithOptions(raw, &root, yaml.UseOrderedMap()); err != nil {
		r.errorf("YAML syntax error: %v", err)
		return r
	}
	doc, ok := asMapping(root)
	if !ok {
		r.errorf("Workflow document is not a mapping")
		return r
	}

	r.checkStructure(doc)
	files := r.checkFiles(doc)
	tasks := r.checkTasks(doc)
	r.checkReferences(files, tasks)
	return r
}

// ValidateDocument validates an already-parsed document by serializing it
// back through the same checks.
func ValidateDocument(doc *Document) *Result {
	raw, err := yaml.Marshal(doc)
	if err != nil {
		r := &Result{}
		r.errorf("marshal workflow document: %v", err)
		return r
	}
	return Validate(raw)
}

// fileEntry carries what the reference checks need from one file record.
type fileEntry struct {
	name string
}

// taskEntry carries what the reference checks need from one task record.
type taskEntry struct {
	index   int
	name    string
	inputs  []string
	outputs []string
}

func (r *Result) checkStructure(doc yaml.MapSlice) {
	for _, field := range []string{"name", "files", "tasks"} {
		if _, ok := get(doc, field); !ok {
			r.errorf("Missing required field: %s", field)
		}
	}
	if v, ok := get(doc, "name"); ok && asString(v) == "" {
		r.errorf("Workflow name is empty")
	}
}

func (r *Result) checkFiles(doc yaml.MapSlice) []fileEntry {
	v, ok := get(doc, "files")
	if !ok {
		return nil
	}
	files, ok := asMapping(v)
	if !ok {
		r.errorf("'files' should be a mapping")
		return nil
	}
	if len(files) == 0 {
		r.warnf("No files defined in workflow")
		return nil
	}

	entries := make([]fileEntry, 0, len(files))
	for _, item := range files {
		fname := asString(item.Key)
		entries = append(entries, fileEntry{name: fname})

		info, ok := asMapping(item.Value)
		if !ok {
			r.errorf("File '%s': should be a mapping", fname)
			continue
		}
		nameVal, hasName := get(info, "name")
		if !hasName {
			r.errorf("File '%s': missing 'name' field", fname)
		} else if asString(nameVal) != fname {
			r.warnf("File '%s': name field '%s' doesn't match key", fname, asString(nameVal))
		}
		if isInput, _ := get(info, "is_input"); asBool(isInput) {
			if src, _ := get(info, "source"); asString(src) == "" {
				r.warnf("File '%s': marked as input but has no source URL", fname)
			}
		}
	}
	return entries
}

func (r *Result) checkTasks(doc yaml.MapSlice) []taskEntry {
	v, ok := get(doc, "tasks")
	if !ok {
		return nil
	}
	tasks, ok := v.([]any)
	if !ok {
		r.errorf("'tasks' should be a list")
		return nil
	}
	if len(tasks) == 0 {
		r.errorf("No tasks defined in workflow")
		return nil
	}

	entries := make([]taskEntry, 0, len(tasks))
	seenIDs := make(map[string]bool)
	for i, raw := range tasks {
		task, ok := asMapping(raw)
		if !ok {
			r.errorf("Task %d: should be a mapping", i)
			continue
		}
		entry := taskEntry{index: i, name: "unknown"}
		if nameVal, ok := get(task, "name"); ok {
			entry.name = asString(nameVal)
		}

		for _, field := range []string{"name", "executable", "inputs", "outputs"} {
			if _, ok := get(task, field); !ok {
				r.errorf("Task %d (%s): missing '%s' field", i, entry.name, field)
			}
		}

		if idVal, ok := get(task, "id"); ok {
			id := asString(idVal)
			if id != "" {
				if seenIDs[id] {
					r.errorf("Duplicate task ID: %s", id)
				}
				seenIDs[id] = true
			}
		}

		if inputs, ok := get(task, "inputs"); ok {
			names, listOK := asStringList(inputs)
			if !listOK {
				r.errorf("Task %d: 'inputs' should be a list", i)
			}
			entry.inputs = names
		}
		if outputs, ok := get(task, "outputs"); ok {
			names, listOK := asStringList(outputs)
			if !listOK {
				r.errorf("Task %d: 'outputs' should be a list", i)
			}
			entry.outputs = names
		}
		if len(entry.outputs) == 0 {
			r.warnf("Task %d (%s): has no outputs", i, entry.name)
		}
		entries = append(entries, entry)
	}
	return entries
}

func (r *Result) checkReferences(files []fileEntry, tasks []taskEntry) {
	registered := make(map[string]bool, len(files))
	for _, f := range files {
		registered[f.name] = true
	}

	used := make(map[string]bool)
	producers := make(map[string]int)
	for _, t := range tasks {
		for _, name := range t.inputs {
			if !registered[name] {
				r.errorf("Task %d (%s): references undefined input file '%s'", t.index, t.name, name)
			}
			used[name] = true
		}
		for _, name := range t.outputs {
			if !registered[name] {
				r.errorf("Task %d (%s): references undefined output file '%s'", t.index, t.name, name)
			}
			used[name] = true
			producers[name]++
		}
	}

	for _, f := range files {
		if !used[f.name] {
			r.warnf("File '%s' is defined but never used", f.name)
		}
	}
	// Several producers for one file is a data-integrity smell: the
	// dependency index silently keeps the last writer.
	for _, f := range files {
		if producers[f.name] > 1 {
			r.warnf("File '%s' is produced by %d tasks", f.name, producers[f.name])
		}
	}
}

// ─── generic YAML helpers ─────────────────────────────────────────────────────

func asMapping(v any) (yaml.MapSlice, bool) {
	switch m := v.(type) {
	case yaml.MapSlice:
		return m, true
	case map[string]any:
		ms := make(yaml.MapSlice, 0, len(m))
		for k, val := range m {
			ms = append(ms, yaml.MapItem{Key: k, Value: val})
		}
		return ms, true
	default:
		return nil, false
	}
}

func get(ms yaml.MapSlice, key string) (any, bool) {
	for _, item := range ms {
		if asString(item.Key) == key {
			return item.Value, true
		}
	}
	return nil, false
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func asBool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func asStringList(v any) ([]string, bool) {
	if v == nil {
		return nil, true
	}
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(list))
	for _, item := range list {
		names = append(names, asString(item))
	}
	return names, true
}
