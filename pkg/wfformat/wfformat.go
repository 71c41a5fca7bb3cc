// Package wfformat compiles the abstract workflow graph into WfCommons
// WfFormat (schema v1.5): a self-contained JSON specification where every
// task enumerates its parent and child task ids.
package wfformat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperflow-wms/mosaic/pkg/workflow"
)

// SchemaVersion is the WfFormat schema this package emits.
const SchemaVersion = "1.5"

// Document is a complete WfFormat workflow description.
type Document struct {
	Name          string   `json:"name"`
	SchemaVersion string   `json:"schemaVersion"`
	CreatedAt     string   `json:"createdAt"`
	Workflow      Workflow `json:"workflow"`
}

// Workflow groups the specification and execution sections.
type Workflow struct {
	Specification Specification `json:"specification"`
	Execution     Execution     `json:"execution"`
}

// Specification holds the task graph and the flat file list.
type Specification struct {
	Tasks []Task `json:"tasks"`
	Files []File `json:"files"`
}

// Task is one specification entry. Parents and Children carry explicit
// dependency edges derived from shared files.
type Task struct {
	Name        string   `json:"name"`
	ID          string   `json:"id"`
	Parents     []string `json:"parents"`
	Children    []string `json:"children"`
	InputFiles  []string `json:"inputFiles"`
	OutputFiles []string `json:"outputFiles"`
}

// File is one flat file entry. Sizes are unknown at compile time.
type File struct {
	ID          string `json:"id"`
	SizeInBytes int64  `json:"sizeInBytes"`
}

// Execution is the placeholder execution section: the generator records
// zero runtimes and a single machine entry.
type Execution struct {
	MakespanInSeconds float64         `json:"makespanInSeconds"`
	ExecutedAt        string          `json:"executedAt"`
	Tasks             []ExecutionTask `json:"tasks"`
	Machines          []Machine       `json:"machines"`
}

// ExecutionTask is one per-task execution record.
type ExecutionTask struct {
	ID               string  `json:"id"`
	RuntimeInSeconds float64 `json:"runtimeInSeconds"`
}

// Machine describes the node the workflow was generated on.
type Machine struct {
	NodeName string     `json:"nodeName"`
	CPU      MachineCPU `json:"cpu"`
}

// MachineCPU is the cpu stanza of a Machine.
type MachineCPU struct {
	Count int `json:"count"`
	Speed int `json:"speed"`
}

// TaskID formats the zero-padded spec id for the n-th task (creation order).
func TaskID(n int) string { return fmt.Sprintf("ID%06d", n) }

// Compile lowers an abstract workflow into a WfFormat document. It runs
// the dependency indexer to fill per-task parent/child id lists. Workflow
// outputs under this format are the literal set difference — every file
// produced by some task and consumed by none — independent of any
// explicit output marks on the graph.
func Compile(wf *workflow.Workflow) *Document {
	now := time.Now().UTC().Format(time.RFC3339)
	idx := workflow.Index(wf.Tasks)

	// Graph task ids map to positional spec ids.
	specID := make(map[int]string, len(wf.Tasks))
	for i, t := range wf.Tasks {
		specID[t.ID] = TaskID(i)
	}

	spec := Specification{
		Tasks: make([]Task, 0, len(wf.Tasks)),
		Files: make([]File, 0, len(wf.Files())),
	}
	execTasks := make([]ExecutionTask, 0, len(wf.Tasks))

	for i, t := range wf.Tasks {
		parents := make([]string, 0)
		for _, p := range idx.Parents(t) {
			parents = append(parents, specID[p])
		}
		children := make([]string, 0)
		for _, c := range idx.Children(t) {
			children = append(children, specID[c])
		}
		spec.Tasks = append(spec.Tasks, Task{
			Name:        fmt.Sprintf("%s_%d", t.Executable, i+1),
			ID:          specID[t.ID],
			Parents:     parents,
			Children:    children,
			InputFiles:  emptyIfNil(t.Inputs),
			OutputFiles: emptyIfNil(t.Outputs),
		})
		execTasks = append(execTasks, ExecutionTask{ID: specID[t.ID]})
	}

	for _, f := range wf.Files() {
		spec.Files = append(spec.Files, File{ID: f.Name, SizeInBytes: f.Size})
	}

	return &Document{
		Name:          wf.Name,
		SchemaVersion: SchemaVersion,
		CreatedAt:     now,
		Workflow: Workflow{
			Specification: spec,
			Execution: Execution{
				ExecutedAt: now,
				Tasks:      execTasks,
				Machines: []Machine{
					{NodeName: "mosaic-generator", CPU: MachineCPU{Count: 1}},
				},
			},
		},
	}
}

// Outputs returns the document's workflow-level outputs under the
// set-difference policy: union of task outputs minus union of task
// inputs, in first-production order.
func (d *Document) Outputs() []string {
	consumed := make(map[string]bool)
	for _, t := range d.Workflow.Specification.Tasks {
		for _, name := range t.InputFiles {
			consumed[name] = true
		}
	}
	var out []string
	seen := make(map[string]bool)
	for _, t := range d.Workflow.Specification.Tasks {
		for _, name := range t.OutputFiles {
			if consumed[name] || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Load reads and parses a WfFormat JSON file.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wfformat document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse wfformat document: %w", err)
	}
	return &doc, nil
}

// Write serializes the document to path atomically.
func (d *Document) Write(path string) error {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wfformat document: %w", err)
	}
	return writeAtomic(path, raw)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

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
