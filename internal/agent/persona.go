package agent

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// builtinPersonas embeds the default agent personas. Each file is a markdown
// document: YAML front matter describing the agent, body text providing its
// system message.
//
//go:embed personas/*.md
var builtinPersonas embed.FS

// Persona is a reusable agent definition loaded from a template.
type Persona struct {
	ID                string // filename without extension
	Name              string
	Description       string
	DefaultAssignment string // local1, local2, local3
	SystemMessage     string
}

// frontmatter is the YAML header of a persona template.
type frontmatter struct {
	Name              string `yaml:"name"`
	Description       string `yaml:"description"`
	DefaultAssignment string `yaml:"default_assignment"`
}

// frontmatterDelimiter is the standard YAML frontmatter delimiter.
const frontmatterDelimiter = "---"

// LoadBuiltinPersonas loads all built-in personas from the embedded
// filesystem.
func LoadBuiltinPersonas() ([]Persona, error) {
	return loadPersonasFromFS(builtinPersonas, "personas")
}

// loadPersonasFromFS loads persona templates from a filesystem directory.
func loadPersonasFromFS(fsys fs.FS, dir string) ([]Persona, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading persona directory: %w", err)
	}

	var personas []Persona
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		// path.Join, not filepath.Join: embedded filesystems always use
		// forward slashes.
		fsPath := path.Join(dir, entry.Name())
		content, err := fs.ReadFile(fsys, fsPath)
		if err != nil {
			return nil, fmt.Errorf("reading persona file %s: %w", fsPath, err)
		}

		p, err := parsePersona(string(content), entry.Name())
		if err != nil {
			return nil, fmt.Errorf("parsing persona %s: %w", fsPath, err)
		}
		personas = append(personas, p)
	}

	return personas, nil
}

// parsePersona parses a persona from its content and filename.
func parsePersona(content, filename string) (Persona, error) {
	fm, body, err := parseFrontmatter(content)
	if err != nil {
		return Persona{}, err
	}

	systemMessage := strings.TrimSpace(body)
	if systemMessage == "" {
		return Persona{}, fmt.Errorf("persona has no system message body")
	}

	return Persona{
		ID:                strings.TrimSuffix(filename, ".md"),
		Name:              fm.Name,
		Description:       fm.Description,
		DefaultAssignment: fm.DefaultAssignment,
		SystemMessage:     systemMessage,
	}, nil
}

// parseFrontmatter extracts the YAML frontmatter and the remaining body.
// Frontmatter must start the file, delimited by "---" lines.
func parseFrontmatter(content string) (frontmatter, string, error) {
	var fm frontmatter

	if !strings.HasPrefix(content, frontmatterDelimiter) {
		return fm, "", fmt.Errorf("content does not start with frontmatter delimiter")
	}

	rest := content[len(frontmatterDelimiter):]
	yamlContent, body, found := strings.Cut(rest, "\n"+frontmatterDelimiter)
	if !found {
		return fm, "", fmt.Errorf("no closing frontmatter delimiter found")
	}
	yamlContent = strings.TrimPrefix(yamlContent, "\n")

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(yamlContent)))
	if err := decoder.Decode(&fm); err != nil {
		return fm, "", fmt.Errorf("parsing YAML: %w", err)
	}

	if fm.Name == "" {
		return fm, "", fmt.Errorf("frontmatter missing required field: name")
	}

	// The closing delimiter line may carry a trailing newline.
	body = strings.TrimPrefix(body, "\n")
	return fm, body, nil
}
