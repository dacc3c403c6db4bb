package decompiler

import (
	"archive/zip"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhamidi/decaf/classfile"
)

// Input is the set of class files of one run together with the problems
// met while reading them.
type Input struct {
	Classes []*classfile.ClassFile
	Errors  []string
}

// Load reads class files, directories of class files and jar archives.
// Unreadable entries are recorded in Errors and skipped.
func Load(paths ...string) *Input {
	in := &Input{}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			in.Errors = append(in.Errors, fmt.Sprintf("stat %s: %v", path, err))
			continue
		}
		switch {
		case info.IsDir():
			in.loadDirectory(path)
		case isArchive(path):
			in.loadArchive(path)
		default:
			in.loadFile(path)
		}
	}
	return in
}

func isArchive(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jar" || ext == ".zip"
}

func (in *Input) loadFile(path string) {
	cf, err := classfile.ParseFile(path)
	if err != nil {
		in.Errors = append(in.Errors, fmt.Sprintf("parse %s: %v", path, err))
		return
	}
	in.Classes = append(in.Classes, cf)
}

func (in *Input) loadDirectory(root string) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			in.Errors = append(in.Errors, fmt.Sprintf("walk %s: %v", p, err))
			return nil
		}
		if !d.IsDir() && filepath.Ext(p) == ".class" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		in.Errors = append(in.Errors, fmt.Sprintf("walk %s: %v", root, err))
	}
	sort.Strings(files)
	for _, f := range files {
		in.loadFile(f)
	}
}

func (in *Input) loadArchive(path string) {
	r, err := zip.OpenReader(path)
	if err != nil {
		in.Errors = append(in.Errors, fmt.Sprintf("open %s: %v", path, err))
		return
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || filepath.Ext(f.Name) != ".class" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			in.Errors = append(in.Errors, fmt.Sprintf("open %s!%s: %v", path, f.Name, err))
			continue
		}
		cf, err := classfile.Parse(rc)
		rc.Close()
		if err != nil {
			in.Errors = append(in.Errors, fmt.Sprintf("parse %s!%s: %v", path, f.Name, err))
			continue
		}
		in.Classes = append(in.Classes, cf)
	}
}
