package export

import (
	"context"
	"path/filepath"
	"strings"
)

// DirChooser keeps every export inside Dir. Only the base name of the
// requested path is used, and a .json extension is added when missing.
type DirChooser struct {
	Dir       string
	Requested *string
}

func (c DirChooser) ChoosePath(_ context.Context, suggested string) (string, error) {
	name := suggested
	if c.Requested != nil {
		name = strings.TrimSpace(*c.Requested)
		if name == "" {
			return "", nil
		}
	}
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		return "", nil
	}
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		name += ".json"
	}
	return filepath.Join(c.Dir, name), nil
}
