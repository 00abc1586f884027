package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"
)

const versionLayout = "20060102150405"

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

var migrationTemplate = template.Must(template.New("migration").Parse(`-- +goose Up
-- +goose StatementBegin
-- {{ .Slug }}
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert {{ .Slug }}
-- +goose StatementEnd
`))

// NewMigration writes an empty goose migration into dir. Its version must
// sort after every migration already in dir, so a clock running behind the
// last author cannot slot a file into the applied history.
func NewMigration(dir, name string, now time.Time) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	version := now.UTC().Format(versionLayout)
	latest, err := latestVersion(os.DirFS(dir))
	if err != nil {
		return "", err
	}
	if version <= latest {
		return "", fmt.Errorf("version %s does not follow latest migration %s", version, latest)
	}

	path := filepath.Join(dir, version+"_"+slug+".sql")
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", path, err)
	}
	defer file.Close()
	if err := migrationTemplate.Execute(file, struct{ Slug string }{slug}); err != nil {
		return "", fmt.Errorf("write %q: %w", path, err)
	}
	return path, nil
}

func latestVersion(fsys fs.FS) (string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return "", fmt.Errorf("read migrations: %w", err)
	}
	latest := ""
	for _, e := range entries {
		if m := sqlFileRe.FindStringSubmatch(e.Name()); m != nil && m[1] > latest {
			latest = m[1]
		}
	}
	return latest, nil
}
