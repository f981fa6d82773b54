package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// shapefileParts are the sidecar extensions read alongside a .shp.
var shapefileParts = map[string]bool{
	".shp": true, ".shx": true, ".dbf": true, ".prj": true, ".cpg": true,
}

// maxShapefilePart caps the uncompressed size of one archive member.
const maxShapefilePart = 2 << 30

// ExtractShapefile unpacks the shapefile held in a zip archive into destDir
// and returns the path of its .shp. The archive must hold exactly one .shp.
// Only members sharing its stem and a shapefile extension are written, and
// they are flattened into destDir by base name.
func ExtractShapefile(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrapf(err, "zip: open %s", filepath.Base(zipPath))
	}
	defer r.Close() //nolint:errcheck

	var stems []string
	for _, f := range r.File {
		if !f.FileInfo().IsDir() && strings.EqualFold(path.Ext(f.Name), ".shp") {
			stems = append(stems, strings.TrimSuffix(f.Name, path.Ext(f.Name)))
		}
	}
	if len(stems) != 1 {
		return "", eris.Errorf("zip: expected exactly 1 .shp file in %s, got %d", filepath.Base(zipPath), len(stems))
	}
	stem := stems[0]

	var shpPath string
	for _, f := range r.File {
		ext := path.Ext(f.Name)
		if f.FileInfo().IsDir() || !shapefileParts[strings.ToLower(ext)] || !strings.EqualFold(strings.TrimSuffix(f.Name, ext), stem) {
			continue
		}
		dest, err := extractMember(f, destDir)
		if err != nil {
			return "", err
		}
		if strings.EqualFold(ext, ".shp") {
			shpPath = dest
		}
	}
	return shpPath, nil
}

// extractMember writes one archive member to destDir under its base name.
func extractMember(f *zip.File, destDir string) (string, error) {
	if f.UncompressedSize64 > maxShapefilePart {
		return "", eris.Errorf("zip: member %s exceeds %d bytes", f.Name, int64(maxShapefilePart))
	}
	dest := filepath.Join(destDir, path.Base(f.Name))

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open member %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrapf(err, "zip: create %s", dest)
	}
	if _, err := io.Copy(out, io.LimitReader(rc, maxShapefilePart)); err != nil {
		out.Close() //nolint:errcheck
		return "", eris.Wrapf(err, "zip: write %s", dest)
	}
	return dest, eris.Wrapf(out.Close(), "zip: close %s", dest)
}
