package media

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FileStamp identifies one version of a file. Two stamps are equal only if
// the file was not rewritten between observations.
type FileStamp struct {
	MTimeNS int64
	Size    int64
}

// Snapshot maps a file's path, relative to the snapshot root in POSIX form,
// to its stamp.
type Snapshot map[string]FileStamp

// SnapshotDir records every file under root. A missing root yields an empty
// snapshot. Symlinks to files are followed; symlinks to directories are not
// descended into.
func SnapshotDir(root string) (Snapshot, error) {
	snapshot := Snapshot{}

	if _, err := os.Stat(root); os.IsNotExist(err) {
		return snapshot, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		var info fs.FileInfo
		if d.Type()&fs.ModeSymlink != 0 {
			info, err = os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				return nil // broken link or link to a directory
			}
		} else {
			info, err = d.Info()
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return nil
			}
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		snapshot[filepath.ToSlash(rel)] = FileStamp{
			MTimeNS: info.ModTime().UnixNano(),
			Size:    info.Size(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", root, err)
	}
	return snapshot, nil
}

// DetectNew returns the files under root that are absent from before or
// whose stamp changed, as sorted POSIX paths relative to root, along with
// the fresh snapshot. It only observes; nothing is moved or deleted.
func DetectNew(root string, before Snapshot) ([]string, Snapshot, error) {
	after, err := SnapshotDir(root)
	if err != nil {
		return nil, nil, err
	}

	var added []string
	for rel, stamp := range after {
		if prev, ok := before[rel]; !ok || prev != stamp {
			added = append(added, rel)
		}
	}
	sort.Strings(added)
	return added, after, nil
}
