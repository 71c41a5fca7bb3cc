package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Document is the serialized, WMS-agnostic form of a Workflow. It is the
// input of both downstream compilers and of the structural validator.
type Document struct {
	Name    string    `yaml:"name"`
	Files   FileList  `yaml:"files"`
	Tasks   []TaskDoc `yaml:"tasks"`
	Inputs  []string  `yaml:"inputs"`
	Outputs []string  `yaml:"outputs"`
}

// FileDoc is one file entry of a Document.
type FileDoc struct {
	Name     string `yaml:"name"`
	Source   string `yaml:"source,omitempty"`
	IsInput  bool   `yaml:"is_input"`
	IsOutput bool   `yaml:"is_output"`
}

// TaskDoc is one task entry of a Document.
type TaskDoc struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name"`
	Executable string         `yaml:"executable"`
	Arguments  []string       `yaml:"arguments"`
	Inputs     []string       `yaml:"inputs"`
	Outputs    []string       `yaml:"outputs"`
	Config     map[string]any `yaml:"config,omitempty"`
}

// FileList serializes as a name-keyed YAML mapping while preserving
// registration order, which the dataflow compiler depends on for stable
// signal-id assignment.
type FileList []FileDoc

// MarshalYAML renders the list as an ordered mapping keyed by file name.
func (l FileList) MarshalYAML() ([]byte, error) {
	ms := make(yaml.MapSlice, 0, len(l))
	for _, f := range l {
		ms = append(ms, yaml.MapItem{Key: f.Name, Value: f})
	}
	return yaml.Marshal(ms)
}

// UnmarshalYAML reads a name-keyed mapping, keeping document order.
func (l *FileList) UnmarshalYAML(b []byte) error {
	var ms yaml.MapSlice
	if err := yaml.Unmarshal(b, &ms); err != nil {
		return err
	}
	out := make(FileList, 0, len(ms))
	for _, item := range ms {
		key := fmt.Sprintf("%v", item.Key)
		raw, err := yaml.Marshal(item.Value)
		if err != nil {
			return err
		}
		var f FileDoc
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("file %q: %w", key, err)
		}
		if f.Name == "" {
			f.Name = key
		}
		out = append(out, f)
	}
	*l = out
	return nil
}

// Get returns the entry with the given name, or nil.
func (l FileList) Get(name string) *FileDoc {
	for i := range l {
		if l[i].Name == name {
			return &l[i]
		}
	}
	return nil
}

// Document converts the in-memory graph to its serialized form.
func (w *Workflow) Document() *Document {
	doc := &Document{
		Name:    w.Name,
		Files:   make(FileList, 0, len(w.order)),
		Tasks:   make([]TaskDoc, 0, len(w.Tasks)),
		Inputs:  append([]string{}, w.Inputs()...),
		Outputs: append([]string{}, w.Outputs()...),
	}
	for _, f := range w.Files() {
		doc.Files = append(doc.Files, FileDoc{
			Name:     f.Name,
			Source:   f.Source,
			IsInput:  f.IsInput,
			IsOutput: f.IsOutput,
		})
	}
	for _, t := range w.Tasks {
		doc.Tasks = append(doc.Tasks, TaskDoc{
			ID:         taskDocID(t.ID),
			Name:       t.Name,
			Executable: t.Executable,
			Arguments:  emptyIfNil(t.Args),
			Inputs:     emptyIfNil(t.Inputs),
			Outputs:    emptyIfNil(t.Outputs),
			Config:     t.Config,
		})
	}
	return doc
}

// Workflow rebuilds an in-memory graph from a serialized document.
// Task ids of the form "task_<n>" keep their sequence number; anything
// else is renumbered in document order.
func (d *Document) Workflow() *Workflow {
	w := New(d.Name)
	for _, f := range d.Files {
		w.AddFile(f.Name, f.Source, f.IsInput, f.IsOutput)
	}
	for i, t := range d.Tasks {
		id := i
		if n, ok := parseTaskDocID(t.ID); ok {
			id = n
		}
		for _, name := range t.Inputs {
			w.AddFile(name, "", false, false)
		}
		for _, name := range t.Outputs {
			w.AddFile(name, "", false, false)
		}
		w.Tasks = append(w.Tasks, &Task{
			ID:         id,
			Name:       t.Name,
			Executable: t.Executable,
			Args:       t.Arguments,
			Inputs:     t.Inputs,
			Outputs:    t.Outputs,
			Config:     t.Config,
		})
		if id >= w.taskSeq {
			w.taskSeq = id + 1
		}
	}
	for _, name := range d.Outputs {
		w.MarkOutput(name)
	}
	return w
}

// LoadDocument reads and parses an abstract workflow YAML file.
func LoadDocument(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow document: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse workflow document: %w", err)
	}
	return &doc, nil
}

// Write serializes the document to path. The write is atomic: either the
// complete document lands at path or the previous content survives.
func (d *Document) Write(path string) error {
	raw, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal workflow document: %w", err)
	}
	return writeAtomic(path, raw)
}

func taskDocID(n int) string { return fmt.Sprintf("task_%d", n) }

func parseTaskDocID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, "task_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// writeAtomic writes data to a temp file in path's directory and renames
// it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
