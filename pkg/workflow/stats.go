package workflow

import (
	"fmt"
	"sort"
	"strings"
)

const statsPreviewLimit = 10

// RenderStats produces a human-readable statistics report for a workflow
// document: file and task counts, workflow inputs/outputs, and the most
// consumed files.
func RenderStats(doc *Document) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Workflow: %s\n", doc.Name)
	fmt.Fprintf(&sb, "%s\n\n", strings.Repeat("=", 60))

	var inputs, outputs int
	for _, f := range doc.Files {
		if f.IsInput {
			inputs++
		}
		if f.IsOutput {
			outputs++
		}
	}
	fmt.Fprintf(&sb, "Files:\n")
	fmt.Fprintf(&sb, "  Total: %d\n", len(doc.Files))
	fmt.Fprintf(&sb, "  Inputs: %d\n", inputs)
	fmt.Fprintf(&sb, "  Outputs: %d\n", outputs)
	fmt.Fprintf(&sb, "  Intermediate: %d\n\n", len(doc.Files)-inputs-outputs)

	fmt.Fprintf(&sb, "Tasks:\n")
	fmt.Fprintf(&sb, "  Total: %d\n", len(doc.Tasks))
	byExe := make(map[string]int)
	for _, t := range doc.Tasks {
		exe := t.Executable
		if exe == "" {
			exe = "unknown"
		}
		byExe[exe]++
	}
	exes := make([]string, 0, len(byExe))
	for exe := range byExe {
		exes = append(exes, exe)
	}
	sort.Strings(exes)
	fmt.Fprintf(&sb, "  By executable:\n")
	for _, exe := range exes {
		fmt.Fprintf(&sb, "    %s: %d\n", exe, byExe[exe])
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Workflow Inputs (%d):\n", len(doc.Inputs))
	for i, name := range doc.Inputs {
		if i == statsPreviewLimit {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(doc.Inputs)-statsPreviewLimit)
			break
		}
		fmt.Fprintf(&sb, "  - %s\n", name)
		if f := doc.Files.Get(name); f != nil && f.Source != "" {
			fmt.Fprintf(&sb, "    Source: %s\n", f.Source)
		}
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Workflow Outputs (%d):\n", len(doc.Outputs))
	for _, name := range doc.Outputs {
		fmt.Fprintf(&sb, "  - %s\n", name)
	}
	sb.WriteString("\n")

	// Consumption counts, most used first; ties break by name so the
	// report is stable across runs.
	usage := make(map[string]int)
	for _, t := range doc.Tasks {
		for _, name := range t.Inputs {
			usage[name]++
		}
	}
	type fileUse struct {
		name  string
		count int
	}
	uses := make([]fileUse, 0, len(usage))
	for name, count := range usage {
		uses = append(uses, fileUse{name, count})
	}
	sort.Slice(uses, func(i, j int) bool {
		if uses[i].count != uses[j].count {
			return uses[i].count > uses[j].count
		}
		return uses[i].name < uses[j].name
	})
	fmt.Fprintf(&sb, "File Usage:\n")
	fmt.Fprintf(&sb, "  Most used files:\n")
	for i, u := range uses {
		if i == 5 {
			break
		}
		fmt.Fprintf(&sb, "    %s: used by %d tasks\n", u.name, u.count)
	}

	return sb.String()
}
