package montage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperflow-wms/mosaic/pkg/montage"
	"github.com/hyperflow-wms/mosaic/pkg/workflow"
)

// fakeToolkit stands in for the native Montage executables: it writes
// the same tables they would, from canned rows covering two archive
// images with one pairwise overlap.
type fakeToolkit struct {
	dir  string
	fail string // tool name to fail on, empty for none
}

func (f *fakeToolkit) err(tool string) error {
	if f.fail == tool {
		return &montage.ToolError{Tool: tool, ExitCode: 1, Stderr: "simulated failure"}
	}
	return nil
}

func (f *fakeToolkit) ArchiveList(_ context.Context, survey, band, center string, width, height float64, outTbl string) error {
	if err := f.err("mArchiveList"); err != nil {
		return err
	}
	tbl := &montage.Table{
		Columns: []string{"cntr", "file", "URL"},
		Rows: []map[string]string{
			{"cntr": "1", "file": "img1.fits.gz", "URL": "http://archive/img1.fits.gz"},
			{"cntr": "2", "file": "img2.fits.gz", "URL": "http://archive/img2.fits.gz"},
		},
	}
	return tbl.WriteIPAC(filepath.Join(f.dir, outTbl))
}

func (f *fakeToolkit) DAGTables(_ context.Context, imagesTbl, regionHdr, rawTbl, projectedTbl, correctedTbl string) error {
	if err := f.err("mDAGTbls"); err != nil {
		return err
	}
	raw := &montage.Table{
		Columns: []string{"file"},
		Rows: []map[string]string{
			{"file": "img1.fits"},
			{"file": "img2.fits"},
		},
	}
	if err := raw.WriteIPAC(filepath.Join(f.dir, rawTbl)); err != nil {
		return err
	}
	projected := &montage.Table{
		Columns: []string{"file"},
		Rows: []map[string]string{
			{"file": "pimg1.fits"},
			{"file": "pimg2.fits"},
		},
	}
	if err := projected.WriteIPAC(filepath.Join(f.dir, projectedTbl)); err != nil {
		return err
	}
	corrected := &montage.Table{
		Columns: []string{"file"},
		Rows: []map[string]string{
			{"file": "cimg1.fits"},
			{"file": "cimg2.fits"},
		},
	}
	return corrected.WriteIPAC(filepath.Join(f.dir, correctedTbl))
}

func (f *fakeToolkit) Overlaps(_ context.Context, rawTbl, diffsTbl string) error {
	if err := f.err("mOverlaps"); err != nil {
		return err
	}
	diffs := &montage.Table{
		Columns: []string{"plus", "minus", "diff"},
		Rows: []map[string]string{
			{"plus": "img1.fits", "minus": "img2.fits", "diff": "diff.000001.000002.fits"},
		},
	}
	return diffs.WriteIPAC(filepath.Join(f.dir, diffsTbl))
}

func buildRequest(bands ...montage.Band) montage.Request {
	return montage.Request{
		Name:    "test-mosaic",
		RA:      210.8,
		Dec:     54.3,
		Degrees: 0.5,
		Bands:   bands,
	}
}

func newBuilder(t *testing.T) (*montage.Builder, *fakeToolkit) {
	t.Helper()
	dir := t.TempDir()
	fake := &fakeToolkit{dir: dir}
	return &montage.Builder{Toolkit: fake, Dir: dir}, fake
}

func TestBuild_SingleBandChain(t *testing.T) {
	b, _ := newBuilder(t)
	wf, err := b.Build(context.Background(), buildRequest(
		montage.Band{Survey: "dss", Band: "DSS2B", Color: "blue"},
	))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// 2 images and 1 overlap yield: 2 mProject, 1 mDiffFit, mConcatFit,
	// mBgModel, 2 mBackground, mImgtbl, mAdd, mViewer.
	if got := len(wf.Tasks); got != 10 {
		t.Fatalf("tasks = %d, want 10", got)
	}

	counts := make(map[string]int)
	for _, task := range wf.Tasks {
		counts[task.Executable]++
	}
	want := map[string]int{
		"mProject": 2, "mDiffFit": 1, "mConcatFit": 1, "mBgModel": 1,
		"mBackground": 2, "mImgtbl": 1, "mAdd": 1, "mViewer": 1,
	}
	for exe, n := range want {
		if counts[exe] != n {
			t.Errorf("%s tasks = %d, want %d", exe, counts[exe], n)
		}
	}

	outputs := wf.Outputs()
	wantOut := map[string]bool{"1-mosaic.fits": true, "1-mosaic.png": true}
	if len(outputs) != len(wantOut) {
		t.Fatalf("outputs = %v", outputs)
	}
	for _, name := range outputs {
		if !wantOut[name] {
			t.Errorf("unexpected output %q", name)
		}
	}
}

func TestBuild_ArchiveImagesBecomeInputs(t *testing.T) {
	b, _ := newBuilder(t)
	wf, err := b.Build(context.Background(), buildRequest(
		montage.Band{Survey: "dss", Band: "DSS2B", Color: "blue"},
	))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Archive rows list compressed names; the graph strips the suffix and
	// keeps the archive URL as the file's source.
	f := wf.File("img1.fits")
	if f == nil {
		t.Fatal("img1.fits not registered")
	}
	if f.Source != "http://archive/img1.fits.gz" {
		t.Errorf("source = %q", f.Source)
	}
	if !f.IsInput {
		t.Error("archive image not flagged as input")
	}

	inputs := wf.Inputs()
	found := make(map[string]bool, len(inputs))
	for _, name := range inputs {
		found[name] = true
	}
	for _, name := range []string{montage.RegionHeader, montage.OversizedHeader, "img1.fits", "img2.fits"} {
		if !found[name] {
			t.Errorf("input %q missing from %v", name, inputs)
		}
	}
}

func TestBuild_ChainIsConnected(t *testing.T) {
	b, _ := newBuilder(t)
	wf, err := b.Build(context.Background(), buildRequest(
		montage.Band{Survey: "dss", Band: "DSS2B", Color: "blue"},
	))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	idx := workflow.Index(wf.Tasks)
	// Every task except the initial reprojections has at least one parent.
	for _, task := range wf.Tasks {
		if task.Executable == "mProject" {
			continue
		}
		if len(idx.Parents(task)) == 0 {
			t.Errorf("task %d (%s) has no parents", task.ID, task.Executable)
		}
	}
	// The preview depends on the mosaic.
	viewer := wf.Tasks[len(wf.Tasks)-1]
	if viewer.Executable != "mViewer" {
		t.Fatalf("last task = %s, want mViewer", viewer.Executable)
	}
	parents := idx.Parents(viewer)
	if len(parents) != 1 {
		t.Fatalf("viewer parents = %v", parents)
	}
}

func TestBuild_RGBComposite(t *testing.T) {
	b, _ := newBuilder(t)
	wf, err := b.Build(context.Background(), buildRequest(
		montage.Band{Survey: "dss", Band: "DSS2IR", Color: "red"},
		montage.Band{Survey: "dss", Band: "DSS2R", Color: "green"},
		montage.Band{Survey: "dss", Band: "DSS2B", Color: "blue"},
	))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := len(wf.Tasks); got != 31 { // 3 bands × 10 + composite
		t.Fatalf("tasks = %d, want 31", got)
	}

	composite := wf.Tasks[len(wf.Tasks)-1]
	if composite.Executable != "mViewer" || len(composite.Inputs) != 3 {
		t.Fatalf("composite = %+v", composite)
	}
	f := wf.File("mosaic-color.png")
	if f == nil || !f.IsOutput {
		t.Error("mosaic-color.png not a workflow output")
	}
}

func TestBuild_TwoBandsNoComposite(t *testing.T) {
	b, _ := newBuilder(t)
	wf, err := b.Build(context.Background(), buildRequest(
		montage.Band{Survey: "dss", Band: "DSS2IR", Color: "red"},
		montage.Band{Survey: "dss", Band: "DSS2B", Color: "blue"},
	))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := len(wf.Tasks); got != 20 {
		t.Errorf("tasks = %d, want 20 (no composite without green)", got)
	}
	if wf.File("mosaic-color.png") != nil {
		t.Error("composite emitted without all three colors")
	}
}

func TestBuild_ToolFailureAborts(t *testing.T) {
	b, fake := newBuilder(t)
	fake.fail = "mOverlaps"

	_, err := b.Build(context.Background(), buildRequest(
		montage.Band{Survey: "dss", Band: "DSS2B", Color: "blue"},
	))
	if err == nil {
		t.Fatal("Build must fail when a tool fails")
	}
	var toolErr *montage.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("err = %v, want a wrapped ToolError", err)
	}
	if toolErr.Tool != "mOverlaps" {
		t.Errorf("tool = %q", toolErr.Tool)
	}
}

func TestToolError_Message(t *testing.T) {
	err := &montage.ToolError{
		Tool:     "mArchiveList",
		ExitCode: 2,
		Stderr:   "ERROR: no such survey\nmore detail\n",
	}
	want := "mArchiveList exited with code 2: ERROR: no such survey"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestParseBand(t *testing.T) {
	band, err := montage.ParseBand("dss:DSS2B:red")
	if err != nil {
		t.Fatalf("ParseBand: %v", err)
	}
	if band.Survey != "dss" || band.Band != "DSS2B" || band.Color != "red" {
		t.Errorf("band = %+v", band)
	}

	for _, bad := range []string{"", "dss", "dss:DSS2B", "dss::red", "a:b:c:d"} {
		if _, err := montage.ParseBand(bad); err == nil {
			t.Errorf("ParseBand(%q) accepted", bad)
		}
	}
}
