package migrate

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Files are named 001_initial_schema.up.sql and 001_initial_schema.down.sql.
var migrationFileRegex = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSSource reads migrations from a directory of a file system, usually an
// embed.FS compiled into the binary.
type FSSource struct {
	fsys fs.FS
	dir  string
}

// NewFSSource creates a source reading dir within fsys
func NewFSSource(fsys fs.FS, dir string) *FSSource {
	return &FSSource{fsys: fsys, dir: dir}
}

// Migrations loads every migration in the directory. Other files are
// ignored. Each version needs an up file; the down file is optional.
func (s *FSSource) Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory %s: %w", s.dir, err)
	}

	byVersion := make(map[int]*Migration)
	var order []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := migrationFileRegex.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("invalid version in migration file %s", e.Name())
		}

		content, err := fs.ReadFile(s.fsys, path.Join(s.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", e.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: strings.ReplaceAll(matches[2], "_", " ")}
			byVersion[version] = mig
			order = append(order, version)
		} else if name := strings.ReplaceAll(matches[2], "_", " "); name != mig.Name {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, mig.Name, name)
		}

		if matches[3] == "up" {
			mig.Up = string(content)
		} else {
			mig.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(order))
	for _, v := range order {
		mig := byVersion[v]
		if strings.TrimSpace(mig.Up) == "" {
			return nil, fmt.Errorf("migration %d (%s) has no up SQL", mig.Version, mig.Name)
		}
		migrations = append(migrations, *mig)
	}
	return migrations, nil
}
