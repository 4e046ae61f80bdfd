// Package language holds the static LanguageProfile table: how to compile and
// run each supported language. Profiles are built once at startup, validated,
// and read-only afterwards. Unknown languages fail fast in the dispatcher
// before any subprocess is spawned.
package language

import (
	"fmt"
	"sort"
	"strings"
)

// Profile describes how one language is compiled and run.
//
// Command elements may contain placeholders, expanded per execution:
//
//	{dir}    the per-execution working directory
//	{source} absolute path of the written source file
//	{bin}    absolute path where a compile step should place its binary
//
// CompileCommand is optional; interpreted languages leave it empty and the
// runner skips straight to RunCommand.
type Profile struct {
	Name           string   `toml:"name" json:"name"`
	FileExtension  string   `toml:"extension" json:"fileExtension"`
	SourceFile     string   `toml:"source" json:"sourceFile"`
	CompileCommand []string `toml:"compile" json:"compileCommand,omitempty"`
	RunCommand     []string `toml:"run" json:"runCommand"`
}

// Expand substitutes the placeholder variables into a command template.
// The template itself is never modified.
func Expand(cmd []string, dir, source, bin string) []string {
	out := make([]string, len(cmd))
	for i, arg := range cmd {
		arg = strings.ReplaceAll(arg, "{dir}", dir)
		arg = strings.ReplaceAll(arg, "{source}", source)
		arg = strings.ReplaceAll(arg, "{bin}", bin)
		out[i] = arg
	}
	return out
}

// Registry is the immutable profile lookup table. Safe for concurrent reads;
// there are no writes after construction.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry validates the given profiles and builds the lookup table.
// Later profiles with the same name override earlier ones, which is how a
// languages.toml file overrides the built-in defaults.
func NewRegistry(profiles []Profile) (*Registry, error) {
	m := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		if err := validate(p); err != nil {
			return nil, fmt.Errorf("language %q: %w", p.Name, err)
		}
		m[p.Name] = p
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("no language profiles configured")
	}
	return &Registry{profiles: m}, nil
}

func validate(p Profile) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Name != strings.ToLower(p.Name) {
		return fmt.Errorf("name must be lowercase")
	}
	if !strings.HasPrefix(p.FileExtension, ".") {
		return fmt.Errorf("extension %q must start with a dot", p.FileExtension)
	}
	if p.SourceFile == "" || !strings.HasSuffix(p.SourceFile, p.FileExtension) {
		return fmt.Errorf("source file %q must carry the %s extension", p.SourceFile, p.FileExtension)
	}
	if len(p.RunCommand) == 0 {
		return fmt.Errorf("run command is required")
	}
	return nil
}

// Get returns the profile for a language name. Matching is case-insensitive
// so "Python" and "python" resolve to the same profile.
func (r *Registry) Get(name string) (Profile, bool) {
	p, ok := r.profiles[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names returns the registered language names, sorted for stable output.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profiles returns all registered profiles, sorted by name.
func (r *Registry) Profiles() []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, name := range r.Names() {
		out = append(out, r.profiles[name])
	}
	return out
}

// Defaults returns the built-in profile set: the languages the service
// supports out of the box without a languages.toml.
func Defaults() []Profile {
	return []Profile{
		{
			Name:          "python",
			FileExtension: ".py",
			SourceFile:    "main.py",
			RunCommand:    []string{"python3", "{source}"},
		},
		{
			Name:          "javascript",
			FileExtension: ".js",
			SourceFile:    "main.js",
			RunCommand:    []string{"node", "{source}"},
		},
		{
			Name:           "java",
			FileExtension:  ".java",
			SourceFile:     "Main.java",
			CompileCommand: []string{"javac", "-d", "{dir}", "{source}"},
			RunCommand:     []string{"java", "-cp", "{dir}", "Main"},
		},
		{
			Name:           "go",
			FileExtension:  ".go",
			SourceFile:     "main.go",
			CompileCommand: []string{"go", "build", "-o", "{bin}", "{source}"},
			RunCommand:     []string{"{bin}"},
		},
		{
			Name:           "c",
			FileExtension:  ".c",
			SourceFile:     "main.c",
			CompileCommand: []string{"gcc", "-O2", "-o", "{bin}", "{source}"},
			RunCommand:     []string{"{bin}"},
		},
		{
			Name:           "cpp",
			FileExtension:  ".cpp",
			SourceFile:     "main.cpp",
			CompileCommand: []string{"g++", "-std=c++17", "-O2", "-o", "{bin}", "{source}"},
			RunCommand:     []string{"{bin}"},
		},
	}
}
