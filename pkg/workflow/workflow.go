// Package workflow holds the abstract task/file graph model for
// astronomical-mosaicking workflows, plus the dependency indexer, the
// YAML document codec and the structural validator.
package workflow

// File is a named artifact in the workflow graph. Names are unique and
// stable across the whole graph.
type File struct {
	Name     string
	Source   string // source locator; empty for derived files
	IsInput  bool
	IsOutput bool
	Size     int64 // unknown at generation time
}

// Task is one invocation of an external executable. Dependencies between
// tasks are never stored; they are derived from shared file names.
type Task struct {
	ID         int
	Name       string
	Executable string
	Args       []string
	Inputs     []string
	Outputs    []string
	Config     map[string]any
}

// Workflow owns the file registry (registration order preserved) and the
// task sequence (creation order preserved). The task id counter lives on
// the instance so independent constructions never interfere.
type Workflow struct {
	Name  string
	Tasks []*Task

	files   map[string]*File
	order   []string // file names in registration order
	outputs []string // explicitly marked outputs, in marking order
	taskSeq int
}

// New creates an empty workflow with the given label.
func New(name string) *Workflow {
	return &Workflow{
		Name:  name,
		files: make(map[string]*File),
	}
}

// AddFile registers a file and returns its name. Registration is
// idempotent: a second call for the same name never blanks previously
// recorded metadata. An explicit output=true on a later call still
// promotes the flag.
func (w *Workflow) AddFile(name, source string, input, output bool) string {
	if f, ok := w.files[name]; ok {
		if output {
			w.MarkOutput(f.Name)
		}
		return name
	}
	w.files[name] = &File{
		Name:     name,
		Source:   source,
		IsInput:  input,
		IsOutput: output,
	}
	w.order = append(w.order, name)
	return name
}

// AddTask appends a task, assigning the next strictly increasing id.
// Input/output names not seen before are registered as a side effect;
// declaring a file as an output does not promote its IsOutput flag (use
// MarkOutput for terminal artifacts).
func (w *Workflow) AddTask(executable string, args, inputs, outputs []string, config map[string]any) int {
	id := w.taskSeq
	w.taskSeq++

	for _, name := range inputs {
		w.AddFile(name, "", false, false)
	}
	for _, name := range outputs {
		w.AddFile(name, "", false, false)
	}

	w.Tasks = append(w.Tasks, &Task{
		ID:         id,
		Name:       executable,
		Executable: executable,
		Args:       args,
		Inputs:     inputs,
		Outputs:    outputs,
		Config:     config,
	})
	return id
}

// MarkOutput flags a registered file as a terminal workflow artifact.
func (w *Workflow) MarkOutput(name string) {
	f, ok := w.files[name]
	if !ok {
		return
	}
	f.IsOutput = true
	for _, existing := range w.outputs {
		if existing == name {
			return
		}
	}
	w.outputs = append(w.outputs, name)
}

// File returns the registered file with the given name, or nil.
func (w *Workflow) File(name string) *File {
	return w.files[name]
}

// Files returns all registered files in registration order.
func (w *Workflow) Files() []*File {
	out := make([]*File, len(w.order))
	for i, name := range w.order {
		out[i] = w.files[name]
	}
	return out
}

// Inputs returns the names of workflow-level input files (flagged as
// inputs with a known source), in registration order.
func (w *Workflow) Inputs() []string {
	var names []string
	for _, name := range w.order {
		f := w.files[name]
		if f.IsInput && f.Source != "" {
			names = append(names, name)
		}
	}
	return names
}

// Outputs returns terminal artifact names: output-flagged files that no
// task consumes, plus everything explicitly marked via MarkOutput.
// Registration order is preserved.
func (w *Workflow) Outputs() []string {
	consumed := make(map[string]bool)
	for _, t := range w.Tasks {
		for _, name := range t.Inputs {
			consumed[name] = true
		}
	}
	marked := make(map[string]bool, len(w.outputs))
	for _, name := range w.outputs {
		marked[name] = true
	}

	var names []string
	for _, name := range w.order {
		f := w.files[name]
		if !f.IsOutput {
			continue
		}
		if !consumed[name] || marked[name] {
			names = append(names, name)
		}
	}
	return names
}
