package montage_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperflow-wms/mosaic/pkg/montage"
)

func TestReadTable_ParsesFixedWidthRows(t *testing.T) {
	raw := `\fixlen = T
\datatype = fitshdr
|      cntr |       ra |      dec | file            |
|       int |   double |   double | char            |
         1    210.8021   54.3481   hst_001.fits
         2    210.9173   54.2910   hst_002.fits
`
	path := filepath.Join(t.TempDir(), "images.tbl")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := montage.ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if !reflect.DeepEqual(tbl.Columns, []string{"cntr", "ra", "dec", "file"}) {
		t.Errorf("columns = %v", tbl.Columns)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tbl.Rows))
	}
	if tbl.Rows[0]["file"] != "hst_001.fits" || tbl.Rows[1]["cntr"] != "2" {
		t.Errorf("rows = %v", tbl.Rows)
	}
}

func TestReadTable_NoHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.tbl")
	if err := os.WriteFile(path, []byte("just text\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := montage.ReadTable(path); err == nil {
		t.Error("ReadTable on a header-less file must fail")
	}
}

func TestTable_WriteReadRoundTrip(t *testing.T) {
	orig := &montage.Table{
		Columns: []string{"plus", "minus", "diff"},
		Rows: []map[string]string{
			{"plus": "img1.fits", "minus": "img2.fits", "diff": "diff.000001.000002.fits"},
			{"plus": "img2.fits", "minus": "img3.fits", "diff": "diff.000002.000003.fits"},
		},
	}
	path := filepath.Join(t.TempDir(), "diffs.tbl")
	if err := orig.WriteIPAC(path); err != nil {
		t.Fatalf("WriteIPAC: %v", err)
	}

	got, err := montage.ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if !reflect.DeepEqual(got.Columns, orig.Columns) {
		t.Errorf("columns = %v, want %v", got.Columns, orig.Columns)
	}
	if !reflect.DeepEqual(got.Rows, orig.Rows) {
		t.Errorf("rows = %v, want %v", got.Rows, orig.Rows)
	}
}
