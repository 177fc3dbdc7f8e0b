package commands

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed all:templates
var templateFS embed.FS

// scaffoldFile is one file of a project template.
type scaffoldFile struct {
	// Path is relative to the project directory, slash-separated
	Path string
	// Raw marks sample data under raw/
	Raw bool
	// Kept is set when an existing file was left in place
	Kept bool
}

// scaffold writes the embedded template into dir and returns its files in
// walk order. Existing files are kept unless force is set.
func scaffold(template, dir string, force bool) ([]scaffoldFile, error) {
	root, err := fs.Sub(templateFS, path.Join("templates", template))
	if err != nil {
		return nil, err
	}

	var files []scaffoldFile
	err = fs.WalkDir(root, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || p == "." {
			return err
		}

		rel := dotfileName(p)
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}

		f := scaffoldFile{Path: rel, Raw: strings.HasPrefix(rel, "raw/")}
		if _, err := os.Stat(target); err == nil && !force {
			f.Kept = true
			files = append(files, f)
			return nil
		}

		content, err := fs.ReadFile(root, p)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, content, 0o600); err != nil {
			return err
		}
		files = append(files, f)
		return nil
	})
	return files, err
}

// dotfileName restores the leading dot of files embedded without one, since
// embed skips dotfiles in directory patterns.
func dotfileName(p string) string {
	dir, base := path.Split(p)
	if base == "gitignore" {
		return dir + ".gitignore"
	}
	return p
}
