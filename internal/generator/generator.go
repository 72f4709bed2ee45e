package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/toolsascode/gfm/internal/schema"
	"github.com/toolsascode/gfm/migrations"
)

// Generator writes migration artifacts under a root directory,
// one subdirectory per graph and app.
type Generator struct {
	Dir string
}

// New creates a generator rooted at the given migrations directory
func New(dir string) *Generator {
	return &Generator{Dir: dir}
}

// Artifacts lists the files one Write produced
type Artifacts struct {
	UpPath   string
	DownPath string
	GoPath   string
}

var artifactPattern = regexp.MustCompile(`^(\d{14})_(.+)\.go$`)

// Write places the plan's artifact set under {dir}/{graph}/{app}/.
// Existing files are never overwritten; a clashing version+name is an
// error the caller must resolve by picking a new name.
func (g *Generator) Write(plan *Plan) (*Artifacts, error) {
	if plan.Empty() {
		return nil, fmt.Errorf("refusing to write an empty migration for graph %s", plan.Graph)
	}

	dirPath := filepath.Join(g.Dir, plan.Graph, plan.App)
	base := fmt.Sprintf("%s_%s", plan.Version, plan.Name)
	out := &Artifacts{
		UpPath:   filepath.Join(dirPath, base+".up.groovy"),
		DownPath: filepath.Join(dirPath, base+".down.groovy"),
		GoPath:   filepath.Join(dirPath, base+".go"),
	}

	for _, path := range []string{out.UpPath, out.DownPath, out.GoPath} {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("refusing to overwrite existing artifact: %s", path)
		}
	}

	// The new migration depends on the current head of its chain, so
	// the resolver orders hand-moved artifacts correctly.
	dependency, hasPrevious := previousHead(dirPath, plan.Graph)

	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}

	if err := os.WriteFile(out.UpPath, []byte(plan.UpScript), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", out.UpPath, err)
	}
	if err := os.WriteFile(out.DownPath, []byte(plan.DownScript), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", out.DownPath, err)
	}

	tmpl, err := template.New("migration").Parse(migrations.GoFileTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	file, err := os.Create(out.GoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", out.GoPath, err)
	}

	var deps string
	if hasPrevious {
		deps = strconv.Quote(dependency)
	}

	err = tmpl.Execute(file, struct {
		PackageName  string
		UpFileName   string
		DownFileName string
		Version      string
		Name         string
		Graph        string
		App          string
		Console      string
		Irreversible bool
		Dependencies string
		Source       string
	}{
		PackageName:  sanitizePackageName(plan.App),
		UpFileName:   filepath.Base(out.UpPath),
		DownFileName: filepath.Base(out.DownPath),
		Version:      plan.Version,
		Name:         plan.Name,
		Graph:        plan.Graph,
		App:          plan.App,
		Console:      quoteList(plan.Console),
		Irreversible: plan.Irreversible,
		Dependencies: deps,
		Source:       filepath.Base(out.GoPath),
	})

	_ = file.Close()

	if err != nil {
		return nil, fmt.Errorf("failed to generate file %s: %w", out.GoPath, err)
	}

	return out, nil
}

// WriteLock refreshes the schema snapshot next to the model definitions
func (g *Generator) WriteLock(modelsDir string, set *schema.Set) error {
	return schema.WriteLock(filepath.Join(modelsDir, schema.LockFileName), set)
}

// previousHead returns the migration ID of the newest artifact already
// in dirPath, if any. Versions are fixed width, so the lexicographic
// maximum of the base names is the chronological head.
func previousHead(dirPath, graph string) (string, bool) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return "", false
	}
	var head string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !artifactPattern.MatchString(entry.Name()) {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".go")
		if base > head {
			head = base
		}
	}
	if head == "" {
		return "", false
	}
	return fmt.Sprintf("%s_%s", head, graph), true
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = strconv.Quote(item)
	}
	return strings.Join(quoted, ", ")
}

// SanitizeName converts a user-provided migration name to snake_case:
// lowercase, runs of anything outside [a-z0-9_] become one underscore.
// An empty result falls back to "auto".
func SanitizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	re := regexp.MustCompile(`[^a-z0-9_]+`)
	name = re.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "auto"
	}
	return name
}

// sanitizePackageName converts an app name to a valid Go package name
func sanitizePackageName(name string) string {
	// Replace invalid characters with underscores
	re := regexp.MustCompile(`[^a-zA-Z0-9_]`)
	result := re.ReplaceAllString(name, "_")

	// Ensure it doesn't start with a number
	if len(result) > 0 && result[0] >= '0' && result[0] <= '9' {
		result = "_" + result
	}

	// Ensure it's not empty
	if result == "" {
		result = "migration"
	}

	return result
}
