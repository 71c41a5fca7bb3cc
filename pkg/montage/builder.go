package montage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/hyperflow-wms/mosaic/pkg/workflow"
)

// Band is one survey/filter acquisition mapped to a display color.
type Band struct {
	Survey string
	Band   string
	Color  string
}

// ParseBand parses a "survey:band:color" definition, e.g. "dss:DSS2B:red".
func ParseBand(spec string) (Band, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Band{}, fmt.Errorf("invalid band definition %q: want survey:band:color", spec)
	}
	return Band{Survey: parts[0], Band: parts[1], Color: parts[2]}, nil
}

// Request describes one mosaic build: the region center in decimal
// degrees, the square side length, and the bands to process.
type Request struct {
	Name    string
	RA      float64
	Dec     float64
	Degrees float64
	Bands   []Band
}

// Builder constructs the abstract workflow graph by driving the toolkit.
// A failed toolkit invocation aborts construction with no partial graph.
type Builder struct {
	Toolkit Toolkit
	Dir     string // data directory for headers and tables
	Log     *log.Logger
}

// datafindFactor widens the archive query a little beyond the region so
// edge mosaicking has full coverage.
const datafindFactor = 1.42

var (
	fitsSuffixRe = regexp.MustCompile(`\.fits.*`)
	diffNameRe   = regexp.MustCompile(`(diff\.|\.fits.*)`)
)

// Build runs the whole pipeline: region headers, one processing chain
// per band, and the false-color composite when red, green and blue bands
// are all present.
func (b *Builder) Build(ctx context.Context, req Request) (*workflow.Workflow, error) {
	logger := b.Log
	if logger == nil {
		logger = log.New(io.Discard)
	}

	name := req.Name
	if name == "" {
		name = "montage"
	}
	wf := workflow.New(name)

	if err := WriteRegionHeaders(b.Dir, req.RA, req.Dec, req.Degrees); err != nil {
		return nil, err
	}
	wf.AddFile(RegionHeader, b.fileURL(RegionHeader), true, false)
	wf.AddFile(OversizedHeader, b.fileURL(OversizedHeader), true, false)

	colorBand := make(map[string]int)
	for i, band := range req.Bands {
		id := i + 1
		if err := b.addBand(ctx, wf, logger, id, req, band); err != nil {
			return nil, err
		}
		colorBand[band.Color] = id
	}

	red, hasRed := colorBand["red"]
	green, hasGreen := colorBand["green"]
	blue, hasBlue := colorBand["blue"]
	if hasRed && hasGreen && hasBlue {
		logger.Info("adding false-color composite", "red", red, "green", green, "blue", blue)
		b.colorPreview(wf, red, green, blue)
	}

	logger.Info("workflow graph built", "files", len(wf.Files()), "tasks", len(wf.Tasks))
	return wf, nil
}

// addBand wires one band's chain: data discovery, per-image reprojection,
// pairwise difference fitting, background modeling and correction, mosaic
// assembly and preview rendering.
func (b *Builder) addBand(ctx context.Context, wf *workflow.Workflow, logger *log.Logger, id int, req Request, band Band) error {
	bandID := strconv.Itoa(id)
	logger.Info("adding band", "band", bandID, "survey", band.Survey, "filter", band.Band, "color", band.Color)

	center := formatDegrees(req.RA) + " " + formatDegrees(req.Dec)

	// Data discovery, slightly outside the region.
	imagesTbl := bandID + "-images.tbl"
	size := req.Degrees * datafindFactor
	if err := b.Toolkit.ArchiveList(ctx, band.Survey, band.Band, center, size, size, imagesTbl); err != nil {
		return fmt.Errorf("band %s: archive query: %w", bandID, err)
	}
	wf.AddFile(imagesTbl, b.fileURL(imagesTbl), true, false)

	rawTbl := bandID + "-raw.tbl"
	projectedTbl := bandID + "-projected.tbl"
	correctedTbl := bandID + "-corrected.tbl"
	for _, tbl := range []string{rawTbl, projectedTbl, correctedTbl} {
		if err := os.WriteFile(filepath.Join(b.Dir, tbl), nil, 0o644); err != nil {
			return fmt.Errorf("band %s: seed table %s: %w", bandID, tbl, err)
		}
		wf.AddFile(tbl, b.fileURL(tbl), true, false)
	}
	if err := b.Toolkit.DAGTables(ctx, imagesTbl, OversizedHeader, rawTbl, projectedTbl, correctedTbl); err != nil {
		return fmt.Errorf("band %s: image table planning: %w", bandID, err)
	}

	diffsTbl := bandID + "-diffs.tbl"
	if err := b.Toolkit.Overlaps(ctx, rawTbl, diffsTbl); err != nil {
		return fmt.Errorf("band %s: overlap finding: %w", bandID, err)
	}

	// Statistics table: one fit-output filename per overlap row.
	diffs, err := ReadTable(filepath.Join(b.Dir, diffsTbl))
	if err != nil {
		return fmt.Errorf("band %s: %w", bandID, err)
	}
	statTbl := bandID + "-stat.tbl"
	stat := &Table{Columns: append(append([]string{}, diffs.Columns...), "stat")}
	for _, row := range diffs.Rows {
		statRow := make(map[string]string, len(row)+1)
		for k, v := range row {
			statRow[k] = v
		}
		statRow["stat"] = fitName(bandID, row["diff"])
		stat.Rows = append(stat.Rows, statRow)
	}
	if err := stat.WriteIPAC(filepath.Join(b.Dir, statTbl)); err != nil {
		return fmt.Errorf("band %s: %w", bandID, err)
	}
	wf.AddFile(statTbl, b.fileURL(statTbl), true, false)

	// Reprojection, one task per archive image.
	images, err := ReadTable(filepath.Join(b.Dir, imagesTbl))
	if err != nil {
		return fmt.Errorf("band %s: %w", bandID, err)
	}
	for _, row := range images.Rows {
		base := fitsSuffixRe.ReplaceAllString(row["file"], "")
		inFits := base + ".fits"
		wf.AddFile(inFits, row["URL"], true, false)

		projectedFits := "p" + base + ".fits"
		areaFits := "p" + base + "_area.fits"
		wf.AddFile(projectedFits, "", false, false)
		wf.AddFile(areaFits, "", false, false)

		wf.AddTask("mProject",
			[]string{"-X", inFits, projectedFits, OversizedHeader},
			[]string{OversizedHeader, inFits},
			[]string{projectedFits, areaFits}, nil)
	}

	// Pairwise difference fitting, one task per overlap.
	var fitTxts []string
	for _, row := range diffs.Rows {
		base := diffNameRe.ReplaceAllString(row["diff"], "")
		plus := "p" + row["plus"]
		plusArea := areaName(plus)
		minus := "p" + row["minus"]
		minusArea := areaName(minus)
		fitTxt := fitName(bandID, row["diff"])
		diffFits := fmt.Sprintf("%s-diff.%s.fits", bandID, base)

		wf.AddFile(fitTxt, "", false, false)
		wf.AddFile(diffFits, "", false, false)

		wf.AddTask("mDiffFit",
			[]string{"-d", "-s", fitTxt, plus, minus, diffFits, OversizedHeader},
			[]string{plus, plusArea, minus, minusArea, OversizedHeader},
			[]string{fitTxt}, nil)
		fitTxts = append(fitTxts, fitTxt)
	}

	// Model fitting over all pairwise fits.
	fitsTbl := bandID + "-fits.tbl"
	wf.AddFile(fitsTbl, "", false, false)
	wf.AddTask("mConcatFit",
		[]string{statTbl, fitsTbl, "."},
		append([]string{statTbl}, fitTxts...),
		[]string{fitsTbl}, nil)

	// Background modeling.
	correctionsTbl := bandID + "-corrections.tbl"
	wf.AddFile(correctionsTbl, "", false, false)
	wf.AddTask("mBgModel",
		[]string{"-i", "100000", imagesTbl, fitsTbl, correctionsTbl},
		[]string{imagesTbl, fitsTbl},
		[]string{correctionsTbl}, nil)

	// Background correction, one task per raw image.
	raw, err := ReadTable(filepath.Join(b.Dir, rawTbl))
	if err != nil {
		return fmt.Errorf("band %s: %w", bandID, err)
	}
	for _, row := range raw.Rows {
		base := diffNameRe.ReplaceAllString(row["file"], "")
		projectedFits := "p" + base + ".fits"
		projectedArea := "p" + base + "_area.fits"
		correctedFits := "c" + base + ".fits"
		correctedArea := "c" + base + "_area.fits"

		wf.AddFile(correctedFits, "", false, false)
		wf.AddFile(correctedArea, "", false, false)

		wf.AddTask("mBackground",
			[]string{"-t", projectedFits, correctedFits, projectedTbl, correctionsTbl},
			[]string{projectedFits, projectedArea, projectedTbl, correctionsTbl},
			[]string{correctedFits, correctedArea}, nil)
	}

	// Rebuild the corrected image table.
	corrected, err := ReadTable(filepath.Join(b.Dir, correctedTbl))
	if err != nil {
		return fmt.Errorf("band %s: %w", bandID, err)
	}
	updatedTbl := bandID + "-updated-corrected.tbl"
	wf.AddFile(updatedTbl, "", false, false)

	var correctedFiles []string
	var correctedWithArea []string
	for _, row := range corrected.Rows {
		base := diffNameRe.ReplaceAllString(row["file"], "")
		correctedFiles = append(correctedFiles, base+".fits")
		correctedWithArea = append(correctedWithArea, base+".fits", base+"_area.fits")
	}
	wf.AddTask("mImgtbl",
		[]string{".", "-t", correctedTbl, updatedTbl},
		append([]string{correctedTbl}, correctedFiles...),
		[]string{updatedTbl}, nil)

	// Mosaic assembly; the band mosaic is a workflow output.
	mosaicFits := bandID + "-mosaic.fits"
	mosaicArea := bandID + "-mosaic_area.fits"
	wf.AddFile(mosaicFits, "", false, false)
	wf.AddFile(mosaicArea, "", false, false)
	wf.AddTask("mAdd",
		[]string{"-e", updatedTbl, RegionHeader, mosaicFits},
		append([]string{updatedTbl, RegionHeader}, correctedWithArea...),
		[]string{mosaicFits, mosaicArea}, nil)
	wf.MarkOutput(mosaicFits)

	// Preview rendering.
	mosaicPNG := bandID + "-mosaic.png"
	wf.AddFile(mosaicPNG, "", false, false)
	wf.AddTask("mViewer",
		[]string{"-ct", "1", "-gray", mosaicFits, "-1s", "max", "gaussian", "-png", mosaicPNG},
		[]string{mosaicFits},
		[]string{mosaicPNG}, nil)
	wf.MarkOutput(mosaicPNG)

	return nil
}

// colorPreview combines three band mosaics into a false-color composite.
func (b *Builder) colorPreview(wf *workflow.Workflow, redID, greenID, blueID int) {
	mosaicPNG := "mosaic-color.png"
	redFits := fmt.Sprintf("%d-mosaic.fits", redID)
	greenFits := fmt.Sprintf("%d-mosaic.fits", greenID)
	blueFits := fmt.Sprintf("%d-mosaic.fits", blueID)

	wf.AddFile(mosaicPNG, "", false, false)
	wf.AddTask("mViewer",
		[]string{
			"-red", redFits, "-0.5s", "max", "gaussian-log",
			"-green", greenFits, "-0.5s", "max", "gaussian-log",
			"-blue", blueFits, "-0.5s", "max", "gaussian-log",
			"-png", mosaicPNG,
		},
		[]string{redFits, greenFits, blueFits},
		[]string{mosaicPNG}, nil)
	wf.MarkOutput(mosaicPNG)
}

// fileURL returns the file-scheme source locator for a name in the data
// directory.
func (b *Builder) fileURL(name string) string {
	abs, err := filepath.Abs(filepath.Join(b.Dir, name))
	if err != nil {
		abs = filepath.Join(b.Dir, name)
	}
	return "file://" + abs
}

// fitName derives the fit-output filename for an overlap row's diff name.
func fitName(bandID, diff string) string {
	return fmt.Sprintf("%s-fit.%s.txt", bandID, diffNameRe.ReplaceAllString(diff, ""))
}

// areaName maps an image name to its coverage-area companion.
func areaName(fits string) string {
	return strings.Replace(fits, ".fits", "_area.fits", 1)
}
