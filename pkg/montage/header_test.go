package montage_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperflow-wms/mosaic/pkg/montage"
)

func TestWriteRegionHeaders(t *testing.T) {
	dir := t.TempDir()
	// 2 degrees at 1 arcsec/pixel is 7200 pixels (nearest integer).
	if err := montage.WriteRegionHeaders(dir, 56.5, 23.75, 2.0); err != nil {
		t.Fatalf("WriteRegionHeaders: %v", err)
	}

	region, err := os.ReadFile(filepath.Join(dir, montage.RegionHeader))
	if err != nil {
		t.Fatalf("read region header: %v", err)
	}
	for _, want := range []string{
		"NAXIS1  = 7200",
		"NAXIS2  = 7200",
		"CTYPE1  = 'RA---TAN'",
		"CRVAL1  = 56.500000",
		"CRVAL2  = 23.750000",
		"CRPIX1  = 3600.500000",
		"CDELT1  = -0.000277778",
		"CDELT2  = 0.000277778",
		"EQUINOX = 2000",
	} {
		if !strings.Contains(string(region), want) {
			t.Errorf("region header missing %q", want)
		}
	}

	oversized, err := os.ReadFile(filepath.Join(dir, montage.OversizedHeader))
	if err != nil {
		t.Fatalf("read oversized header: %v", err)
	}
	// The oversized variant pads each axis by 3000 pixels and shifts the
	// reference pixel by half of that.
	for _, want := range []string{
		"NAXIS1  = 10200",
		"CRPIX1  = 5100.500000",
	} {
		if !strings.Contains(string(oversized), want) {
			t.Errorf("oversized header missing %q", want)
		}
	}
}
