// Package montage drives the Montage native toolkit to build the
// abstract mosaicking workflow graph, one imaging band at a time.
package montage

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Toolkit is the narrow collaborator interface over the native Montage
// executables. The graph builder only ever talks to the toolkit through
// it, so construction logic is testable without the toolkit installed.
type Toolkit interface {
	// ArchiveList queries the image archive for survey/band coverage of
	// the region and writes an image list table to outTbl.
	ArchiveList(ctx context.Context, survey, band, center string, width, height float64, outTbl string) error
	// DAGTables derives the raw/projected/corrected image tables from an
	// image list and the oversized region header.
	DAGTables(ctx context.Context, imagesTbl, regionHdr, rawTbl, projectedTbl, correctedTbl string) error
	// Overlaps computes the pairwise overlap table for a raw image table.
	Overlaps(ctx context.Context, rawTbl, diffsTbl string) error
}

// ToolError reports a failed toolkit invocation. Any nonzero exit is
// fatal to graph construction; there is no retry.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if firstLine := strings.SplitN(strings.TrimSpace(e.Stderr), "\n", 2)[0]; firstLine != "" {
		msg += ": " + firstLine
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// ExecToolkit invokes the real Montage executables found on PATH. Every
// call is a synchronous call-and-wait with no timeout; callers may still
// cancel through the context.
type ExecToolkit struct {
	// Dir is the working directory for tool invocations (the data
	// directory). Tables are referenced by bare filename inside it.
	Dir string
}

func (t *ExecToolkit) ArchiveList(ctx context.Context, survey, band, center string, width, height float64, outTbl string) error {
	return t.run(ctx, "mArchiveList",
		survey, band, center, formatDegrees(width), formatDegrees(height), outTbl)
}

func (t *ExecToolkit) DAGTables(ctx context.Context, imagesTbl, regionHdr, rawTbl, projectedTbl, correctedTbl string) error {
	return t.run(ctx, "mDAGTbls", imagesTbl, regionHdr, rawTbl, projectedTbl, correctedTbl)
}

func (t *ExecToolkit) Overlaps(ctx context.Context, rawTbl, diffsTbl string) error {
	return t.run(ctx, "mOverlaps", rawTbl, diffsTbl)
}

func (t *ExecToolkit) run(ctx context.Context, tool string, args ...string) error {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = t.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return &ToolError{
			Tool:     tool,
			Args:     args,
			ExitCode: exitCode,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	return nil
}

// formatDegrees renders a size argument without trailing zero noise.
func formatDegrees(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}
