package workflow_test

import (
	"strings"
	"testing"

	"github.com/hyperflow-wms/mosaic/pkg/workflow"
)

func TestRenderStats(t *testing.T) {
	doc := buildSampleWorkflow().Document()
	out := workflow.RenderStats(doc)

	for _, want := range []string{
		"Workflow: sample",
		"Total: 5",
		"mProject: 1",
		"mAdd: 1",
		"Workflow Inputs (2):",
		"Source: http://irsa.ipac.caltech.edu/img.fits",
		"Workflow Outputs (1):",
		"- mosaic.fits",
		"Most used files:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stats report missing %q\n%s", want, out)
		}
	}
}

func TestRenderStats_InputPreviewTruncated(t *testing.T) {
	wf := workflow.New("many")
	for i := 0; i < 15; i++ {
		wf.AddFile(string(rune('a'+i))+".fits", "file:///x", true, false)
	}
	wf.AddTask("t", nil, []string{"a.fits"}, []string{"out.fits"}, nil)
	out := workflow.RenderStats(wf.Document())

	if !strings.Contains(out, "... and 5 more") {
		t.Errorf("long input list not truncated:\n%s", out)
	}
}
