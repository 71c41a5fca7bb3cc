// Package replica reads and writes plain-text replica catalogs mapping
// logical file names to source URLs and site labels, and batch-downloads
// the remote entries.
package replica

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/hyperflow-wms/mosaic/pkg/workflow"
)

// Pool labels.
const (
	PoolLocal  = "local"
	PoolIPAC   = "ipac"
	PoolRemote = "remote"
)

// Entry is one catalog line: a logical file name, its source URL and the
// site label of the hosting pool.
type Entry struct {
	Name string
	URL  string
	Pool string
}

var lineRe = regexp.MustCompile(`^(\S+)\s+"([^"]+)"\s+pool="([^"]+)"`)

// ParseCatalog reads catalog entries from r. Blank lines, comments and
// lines that do not match the format are skipped.
func ParseCatalog(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		entries = append(entries, Entry{Name: m[1], URL: m[2], Pool: m[3]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read replica catalog: %w", err)
	}
	return entries, nil
}

// ParseCatalogFile reads catalog entries from the file at path.
func ParseCatalogFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replica catalog: %w", err)
	}
	defer f.Close()
	return ParseCatalog(f)
}

// PoolLabel classifies a source URL: file-scheme URLs are local, known
// archive hosts get the ipac label, everything else is generic remote.
func PoolLabel(url string) string {
	switch {
	case strings.HasPrefix(url, "file://"):
		return PoolLocal
	case strings.Contains(url, "irsa.ipac.caltech.edu"),
		strings.Contains(url, "montage.ipac.caltech.edu"):
		return PoolIPAC
	default:
		return PoolRemote
	}
}

// WriteCatalog writes one entry per workflow-level input file that has a
// known source, in registration order.
func WriteCatalog(path string, wf *workflow.Workflow) error {
	var sb strings.Builder
	for _, f := range wf.Files() {
		if !f.IsInput || f.Source == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s \"%s\"  pool=\"%s\"\n", f.Name, f.Source, PoolLabel(f.Source))
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write replica catalog: %w", err)
	}
	return nil
}
