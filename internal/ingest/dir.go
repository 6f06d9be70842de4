package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FromDir collects every ASL document below dir with its companions, in
// lexical path order. For <base>asl.json the companions are
// <base>m0scan.json and <base>aslcontext.tsv, falling back to m0scan.json
// and aslcontext.tsv in the same directory. File names are relative to dir.
func FromDir(dir string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), "asl.json") {
			return nil
		}
		group, err := companions(dir, path)
		if err != nil {
			return err
		}
		files = append(files, group...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no *asl.json files under %s", ErrInvalidFile, dir)
	}
	return files, nil
}

// FromPaths reads files in the order given. A single directory argument is
// scanned with FromDir.
func FromPaths(paths []string) ([]File, error) {
	if len(paths) == 1 {
		info, err := os.Stat(paths[0])
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return FromDir(paths[0])
		}
	}
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, File{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

func companions(root, aslPath string) ([]File, error) {
	dir := filepath.Dir(aslPath)
	base := strings.TrimSuffix(filepath.Base(aslPath), "asl.json")

	asl, err := readRelative(root, aslPath)
	if err != nil {
		return nil, err
	}
	out := []File{asl}
	for _, names := range [][]string{
		{base + "m0scan.json", "m0scan.json"},
		{base + "aslcontext.tsv", "aslcontext.tsv"},
	} {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			f, err := readRelative(root, path)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
			break
		}
	}
	return out, nil
}

func readRelative(root, path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	name, err := filepath.Rel(root, path)
	if err != nil {
		name = filepath.Base(path)
	}
	return File{Name: filepath.ToSlash(name), Data: data}, nil
}
