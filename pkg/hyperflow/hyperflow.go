// Package hyperflow compiles workflow descriptions into the HyperFlow
// signal-based dataflow IR. Every file becomes an integer-identified
// signal; every task becomes a process referencing signals by id.
package hyperflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperflow-wms/mosaic/pkg/wfformat"
	"github.com/hyperflow-wms/mosaic/pkg/workflow"
)

// Program is a complete HyperFlow dataflow program.
type Program struct {
	Name      string    `json:"name"`
	Processes []Process `json:"processes"`
	Signals   []Signal  `json:"signals"`
	Ins       []int     `json:"ins"`
	Outs      []int     `json:"outs"`
}

// Process is one dataflow node. Ins and Outs reference signals by id, in
// the order the task declared its input/output files.
type Process struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Function    string `json:"function"`
	FiringLimit int    `json:"firingLimit"`
	Config      Config `json:"config"`
	Ins         []int  `json:"ins"`
	Outs        []int  `json:"outs"`
}

// Config carries the executor stanza consumed by the execution engine.
type Config struct {
	Executor Executor `json:"executor"`
}

// Executor names the command a process runs.
type Executor struct {
	Executable string   `json:"executable"`
	Args       []string `json:"args"`
}

// Signal is one data channel, corresponding one-to-one with a file.
// Program-level inputs carry one pre-seeded opaque token.
type Signal struct {
	Name string           `json:"name"`
	Data []map[string]any `json:"data,omitempty"`
}

const (
	processType     = "dataflow"
	processFunction = "{{function}}"
)

// CompileWorkflow lowers an abstract workflow document. Signal ids are
// assigned zero-based in file-registration order, so recompiling an
// unchanged document yields identical ids. A file is a program input iff
// its is_input flag is set; a file is a program output iff some task
// produces it and its is_output flag is set (explicit-mark policy).
func CompileWorkflow(doc *workflow.Document) *Program {
	p := newProgram(doc.Name)

	fileSignal := make(map[string]int, len(doc.Files))
	for i, f := range doc.Files {
		fileSignal[f.Name] = i
		sig := Signal{Name: f.Name}
		if f.IsInput {
			sig.Data = []map[string]any{{}}
			p.Ins = append(p.Ins, i)
		}
		p.Signals = append(p.Signals, sig)
	}

	outSeen := make(map[int]bool)
	for _, t := range doc.Tasks {
		exe := t.Executable
		if exe == "" {
			exe = t.Name
		}
		p.Processes = append(p.Processes, Process{
			Name:        exe,
			Type:        processType,
			Function:    processFunction,
			FiringLimit: 1,
			Config:      Config{Executor: Executor{Executable: exe, Args: emptyIfNil(t.Arguments)}},
			Ins:         signalIDs(t.Inputs, fileSignal),
			Outs:        signalIDs(t.Outputs, fileSignal),
		})
		for _, name := range t.Outputs {
			f := doc.Files.Get(name)
			if f == nil || !f.IsOutput {
				continue
			}
			id, ok := fileSignal[name]
			if ok && !outSeen[id] {
				outSeen[id] = true
				p.Outs = append(p.Outs, id)
			}
		}
	}
	return p
}

// CompileSpec lowers a WfFormat specification document. The format keeps
// no argument lists, so the executable is reconstructed from the task's
// short name and args stay empty. A file is a program input iff no task
// produces it and some task consumes it; program outputs follow the
// set-difference policy (produced, never consumed).
func CompileSpec(doc *wfformat.Document) *Program {
	p := newProgram(doc.Name)
	spec := doc.Workflow.Specification

	produced := make(map[string]bool)
	consumed := make(map[string]bool)
	for _, t := range spec.Tasks {
		for _, name := range t.OutputFiles {
			produced[name] = true
		}
		for _, name := range t.InputFiles {
			consumed[name] = true
		}
	}

	fileSignal := make(map[string]int, len(spec.Files))
	for i, f := range spec.Files {
		fileSignal[f.ID] = i
		sig := Signal{Name: f.ID}
		if !produced[f.ID] && consumed[f.ID] {
			sig.Data = []map[string]any{{}}
			p.Ins = append(p.Ins, i)
		}
		p.Signals = append(p.Signals, sig)
	}

	outSeen := make(map[int]bool)
	for _, t := range spec.Tasks {
		exe, _, _ := strings.Cut(t.Name, "_")
		if exe == "" {
			exe = "unknown"
		}
		p.Processes = append(p.Processes, Process{
			Name:        exe,
			Type:        processType,
			Function:    processFunction,
			FiringLimit: 1,
			Config:      Config{Executor: Executor{Executable: exe, Args: []string{}}},
			Ins:         signalIDs(t.InputFiles, fileSignal),
			Outs:        signalIDs(t.OutputFiles, fileSignal),
		})
		for _, name := range t.OutputFiles {
			if consumed[name] {
				continue
			}
			id, ok := fileSignal[name]
			if ok && !outSeen[id] {
				outSeen[id] = true
				p.Outs = append(p.Outs, id)
			}
		}
	}
	return p
}

// Load reads and parses a HyperFlow program JSON file.
func Load(path string) (*Program, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hyperflow program: %w", err)
	}
	var p Program
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse hyperflow program: %w", err)
	}
	return &p, nil
}

// Write serializes the program to path atomically.
func (p *Program) Write(path string) error {
	raw, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal hyperflow program: %w", err)
	}
	return writeAtomic(path, raw)
}

func newProgram(name string) *Program {
	if name == "" {
		name = "workflow"
	}
	return &Program{
		Name:      name,
		Processes: make([]Process, 0),
		Signals:   make([]Signal, 0),
		Ins:       make([]int, 0),
		Outs:      make([]int, 0),
	}
}

// signalIDs maps file names to signal ids, preserving declaration order
// and skipping names with no signal.
func signalIDs(names []string, fileSignal map[string]int) []int {
	ids := make([]int, 0, len(names))
	for _, name := range names {
		if id, ok := fileSignal[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids
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
