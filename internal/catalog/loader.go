package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern matches every JavaScript file below the tools directory
const DefaultPattern = "**/*.js"

const paramsInfix = ".params"

// paramsExtensions are tried in order; the first existing file wins
var paramsExtensions = []string{".json", ".yaml", ".yml", ".toml"}

// Load reads every file under dir matching pattern. A missing directory is
// reported with an error wrapping fs.ErrNotExist.
func Load(dir, pattern string) (*Catalog, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid tools pattern %q", pattern)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("tools directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("tools directory %s is not a directory", dir)
	}

	return LoadFS(os.DirFS(dir), pattern)
}

// LoadFS is Load over an arbitrary file system
func LoadFS(fsys fs.FS, pattern string) (*Catalog, error) {
	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to glob %q: %w", pattern, err)
	}

	cat := New()
	for _, match := range matches {
		if isParamsFile(match) {
			continue
		}
		tool, err := loadTool(fsys, match)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", match, err)
		}
		if err := cat.Add(tool); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

func loadTool(fsys fs.FS, file string) (*Tool, error) {
	code, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(file, path.Ext(file))
	params, err := loadParams(fsys, name)
	if err != nil {
		return nil, err
	}

	return &Tool{
		Name:          name,
		Description:   description(string(code)),
		Code:          string(code),
		DefaultParams: params,
		Source:        file,
	}, nil
}

func loadParams(fsys fs.FS, name string) (string, error) {
	for _, ext := range paramsExtensions {
		file := name + paramsInfix + ext
		data, err := fs.ReadFile(fsys, file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		params, err := ParamsToJSON(data, ext)
		if err != nil {
			return "", fmt.Errorf("%s: %w", file, err)
		}
		return params, nil
	}
	return "{}", nil
}

func isParamsFile(file string) bool {
	return strings.HasSuffix(strings.TrimSuffix(file, path.Ext(file)), paramsInfix)
}

// description returns the text of a "// description:" line in the leading
// comment block
func description(code string) string {
	scanner := bufio.NewScanner(strings.NewReader(code))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "//") {
			return ""
		}
		text := strings.TrimSpace(strings.TrimPrefix(line, "//"))
		if rest, ok := strings.CutPrefix(text, "description:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
