package project

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jward/arbor/internal/model"
)

// BuildStructure describes the directories and files of root that contain
// the given files. Keys are slash-separated paths relative to root, with "."
// for root itself. languageOf names the language of a file; it may be nil.
func BuildStructure(root string, files []string, languageOf func(path string) string) *model.ProjectStructure {
	ps := &model.ProjectStructure{
		Root:        root,
		Directories: map[string]model.DirEntry{".": {Dirs: []string{}, Files: []string{}}},
		Files:       make(map[string]model.FileInfo, len(files)),
	}

	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if rel == ".." || strings.HasPrefix(rel, "../") {
			continue
		}

		info := model.FileInfo{}
		if languageOf != nil {
			info.Language = languageOf(f)
		}
		if st, err := os.Stat(f); err == nil {
			info.Size = st.Size()
		}
		ps.Files[rel] = info

		dir := slashDir(rel)
		addChild(ps, dir, rel, false)
		for dir != "." {
			parent := slashDir(dir)
			addChild(ps, parent, dir, true)
			dir = parent
		}
	}

	for k, e := range ps.Directories {
		slices.Sort(e.Dirs)
		slices.Sort(e.Files)
		ps.Directories[k] = e
	}
	return ps
}

func slashDir(rel string) string {
	return filepath.ToSlash(filepath.Dir(filepath.FromSlash(rel)))
}

// addChild records child under dir, creating dir's entry when needed.
func addChild(ps *model.ProjectStructure, dir, child string, isDir bool) {
	e, ok := ps.Directories[dir]
	if !ok {
		e = model.DirEntry{Dirs: []string{}, Files: []string{}}
	}
	list := &e.Files
	if isDir {
		list = &e.Dirs
	}
	if !slices.Contains(*list, child) {
		*list = append(*list, child)
	}
	ps.Directories[dir] = e
}
