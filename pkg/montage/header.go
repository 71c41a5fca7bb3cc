package montage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// RegionHeader is the FITS header describing the output mosaic region.
	RegionHeader = "region.hdr"
	// OversizedHeader pads the region so reprojection keeps edge pixels.
	OversizedHeader = "region-oversized.hdr"

	cdelt = 0.000277778 // degrees per pixel, 1 arcsec

	oversizePixels = 3000
)

// WriteRegionHeaders writes region.hdr and region-oversized.hdr into dir
// for a square region of the given side length centered at (ra, dec),
// both in decimal degrees.
func WriteRegionHeaders(dir string, ra, dec, degrees float64) error {
	naxis := int(degrees/cdelt + 0.5)
	crpix := float64(naxis+1) / 2.0

	if err := writeHeader(filepath.Join(dir, RegionHeader), naxis, ra, dec, crpix); err != nil {
		return err
	}
	return writeHeader(filepath.Join(dir, OversizedHeader),
		naxis+oversizePixels, ra, dec, crpix+oversizePixels/2)
}

func writeHeader(path string, naxis int, ra, dec, crpix float64) error {
	var sb strings.Builder
	sb.WriteString("SIMPLE  = T\n")
	sb.WriteString("BITPIX  = -64\n")
	sb.WriteString("NAXIS   = 2\n")
	fmt.Fprintf(&sb, "NAXIS1  = %d\n", naxis)
	fmt.Fprintf(&sb, "NAXIS2  = %d\n", naxis)
	sb.WriteString("CTYPE1  = 'RA---TAN'\n")
	sb.WriteString("CTYPE2  = 'DEC--TAN'\n")
	fmt.Fprintf(&sb, "CRVAL1  = %.6f\n", ra)
	fmt.Fprintf(&sb, "CRVAL2  = %.6f\n", dec)
	fmt.Fprintf(&sb, "CRPIX1  = %.6f\n", crpix)
	fmt.Fprintf(&sb, "CRPIX2  = %.6f\n", crpix)
	fmt.Fprintf(&sb, "CDELT1  = %.9f\n", -cdelt)
	fmt.Fprintf(&sb, "CDELT2  = %.9f\n", cdelt)
	fmt.Fprintf(&sb, "CROTA2  = %.6f\n", 0.0)
	fmt.Fprintf(&sb, "EQUINOX = %d\n", 2000)
	sb.WriteString("END\n")

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write region header: %w", err)
	}
	return nil
}
