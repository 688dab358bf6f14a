package filemask

import (
	"os"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// lstater is implemented by filesystems that can report symbolic links
// without following them
type lstater interface {
	Lstat(name string) (os.FileInfo, error)
}

// walk applies the select mode to target. The caller holds m.mu.
func (m *Masker) walk(c *call, target string, mode SelectMode) {
	if m.store.IsSidecar(target) {
		m.record(c, Result{Path: target, Type: c.enc.Type(), Outcome: SkipSidecarFile})
		return
	}

	info, err := m.fs.Stat(target)
	if err != nil {
		m.record(c, Result{Path: target, Type: c.enc.Type(), Outcome: SkipTargetIO, Err: NewIOError("stat", target, err)})
		return
	}
	if mode == FileOnly || !info.IsDir() {
		m.process(c, target)
		return
	}

	if c.seen(m.canonical(target), info) {
		m.record(c, Result{Path: target, Type: c.enc.Type(), Outcome: SkipCycle})
		return
	}

	children, err := m.children(target)
	if err != nil {
		m.record(c, Result{Path: target, Type: c.enc.Type(), Outcome: SkipTargetIO, Err: err})
	}
	for _, child := range children {
		path := joinPath(m.sep, target, child.Name())
		if mode == DirectoryCascade && child.Mode()&os.ModeSymlink != 0 && m.linksToDir(path) {
			m.record(c, Result{Path: path, Type: c.enc.Type(), Outcome: SkipSymlink})
			continue
		}
		if mode == DirectoryCascade && child.IsDir() {
			m.walk(c, path, DirectoryCascade)
			continue
		}
		m.process(c, path)
	}

	m.process(c, target)
}

// seen marks a directory as visited and reports whether it already was. A
// directory matches by canonical key or, for filesystems that cannot resolve
// links, by os.SameFile on its info.
func (c *call) seen(key string, info os.FileInfo) bool {
	if _, ok := c.visited[key]; ok {
		return true
	}
	for _, fi := range c.visitedDirs {
		if os.SameFile(fi, info) {
			return true
		}
	}
	c.visited[key] = struct{}{}
	c.visitedDirs = append(c.visitedDirs, info)
	return false
}

// linksToDir reports whether the link at path resolves to a directory
func (m *Masker) linksToDir(path string) bool {
	info, err := m.fs.Stat(path)
	return err == nil && info.IsDir()
}

// children lists the entries of dir sorted by name, without the sidecar
// container. Entries are reported via Lstat where the filesystem supports it.
func (m *Masker) children(dir string) ([]os.FileInfo, error) {
	f, err := m.fs.Open(dir)
	if err != nil {
		return nil, NewIOError("open", dir, err)
	}
	defer f.Close()

	infos, err := f.Readdir(-1)
	if err != nil {
		return nil, NewIOError("readdir", dir, err)
	}

	infos = lo.Filter(infos, func(fi os.FileInfo, _ int) bool {
		name := fi.Name()
		return name != m.store.DirName() && name != "." && name != ".."
	})

	if ls, ok := m.fs.(lstater); ok {
		infos = lo.Map(infos, func(fi os.FileInfo, _ int) os.FileInfo {
			if li, err := ls.Lstat(joinPath(m.sep, dir, fi.Name())); err == nil {
				return li
			}
			return fi
		})
	}

	sortInfos(infos)
	return infos, nil
}

// canonical returns the key used to detect directories reached twice
func (m *Masker) canonical(path string) string {
	if rp, ok := m.fs.(interface {
		Realpath(name string) (string, error)
	}); ok {
		if p, err := rp.Realpath(path); err == nil {
			return p
		}
	}
	trimmed := strings.TrimRight(path, m.sep)
	if trimmed == "" {
		return m.sep
	}
	return trimmed
}

func sortInfos(infos []os.FileInfo) {
	slices.SortFunc(infos, func(a, b os.FileInfo) int {
		return strings.Compare(a.Name(), b.Name())
	})
}
