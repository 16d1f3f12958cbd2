package agent

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoadBuiltinPersonas(t *testing.T) {
	personas, err := LoadBuiltinPersonas()
	require.NoError(t, err)
	require.Len(t, personas, 3)

	byName := make(map[string]Persona)
	for _, p := range personas {
		require.NotEmpty(t, p.ID)
		require.NotEmpty(t, p.Name)
		require.NotEmpty(t, p.Description)
		require.NotEmpty(t, p.SystemMessage)
		require.Contains(t, []string{"local1", "local2", "local3"}, p.DefaultAssignment)
		byName[p.Name] = p
	}

	require.Contains(t, byName, "poet")
	require.Contains(t, byName, "critic")
	require.Contains(t, byName, "editor")
	require.Equal(t, "local1", byName["poet"].DefaultAssignment)
	require.Contains(t, byName["editor"].SystemMessage, "TERMINATE")
}

func TestLoadPersonasFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"personas/muse.md": &fstest.MapFile{Data: []byte(`---
name: muse
description: test persona
default_assignment: local2
---

You inspire.
`)},
		"personas/notes.txt": &fstest.MapFile{Data: []byte("not a persona")},
	}

	personas, err := loadPersonasFromFS(fsys, "personas")
	require.NoError(t, err)
	require.Len(t, personas, 1)
	require.Equal(t, "muse", personas[0].ID)
	require.Equal(t, "muse", personas[0].Name)
	require.Equal(t, "local2", personas[0].DefaultAssignment)
	require.Equal(t, "You inspire.", personas[0].SystemMessage)
}

func TestLoadPersonasFromFS_BadPersonaFails(t *testing.T) {
	fsys := fstest.MapFS{
		"personas/broken.md": &fstest.MapFile{Data: []byte("no frontmatter here")},
	}

	_, err := loadPersonasFromFS(fsys, "personas")
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken.md")
}

func TestParseFrontmatter(t *testing.T) {
	fm, body, err := parseFrontmatter("---\nname: a\ndescription: b\n---\nbody text")
	require.NoError(t, err)
	require.Equal(t, "a", fm.Name)
	require.Equal(t, "b", fm.Description)
	require.Equal(t, "body text", body)
}

func TestParseFrontmatter_Errors(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no opening delimiter", "name: a\n---\nbody"},
		{"no closing delimiter", "---\nname: a\nbody"},
		{"invalid yaml", "---\n: :\n  bad\n---\nbody"},
		{"missing name", "---\ndescription: x\n---\nbody"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := parseFrontmatter(tc.content)
			require.Error(t, err)
		})
	}
}

func TestParsePersona_EmptyBodyFails(t *testing.T) {
	_, err := parsePersona("---\nname: a\n---\n\n  \n", "a.md")
	require.Error(t, err)
	require.Contains(t, err.Error(), "system message")
}
