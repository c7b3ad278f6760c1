// Package versioninfo generates the Windows version-resource file the
// packaging tool embeds into the produced executable.
package versioninfo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// FileName is the temporary manifest filename written next to the script.
const FileName = "version_info.txt"

// DefaultVersion is substituted when the caller's version string is
// missing or malformed.
const DefaultVersion = "1.0.0.0"

// manifestTemplate renders the VSVersionInfo expression the tool parses.
// The string-table locale and translation pair are fixed (US English,
// Unicode codepage).
var manifestTemplate = template.Must(template.New("versioninfo").Parse(`# UTF-8
VSVersionInfo(
  ffi=FixedFileInfo(
    filevers=({{.Vers}}),
    prodvers=({{.Vers}}),
    mask=0x3f,
    flags=0x0,
    OS=0x40004,
    fileType=0x1,
    subtype=0x0,
    date=(0, 0)
    ),
  kids=[
    StringFileInfo(
      [
      StringTable(
        u'040904E4',
        [StringStruct(u'CompanyName', u''),
        StringStruct(u'FileDescription', u'{{.Name}}'),
        StringStruct(u'FileVersion', u'{{.Version}}'),
        StringStruct(u'InternalName', u'{{.Name}}.exe'),
        StringStruct(u'LegalCopyright', u'{{.Copyright}}'),
        StringStruct(u'OriginalFilename', u'{{.Name}}.exe'),
        StringStruct(u'ProductName', u'{{.Name}}'),
        StringStruct(u'ProductVersion', u'{{.Version}}')])
      ]),
    VarFileInfo([VarStruct(u'Translation', [1033, 1200])])
  ]
)
`))

// Generator produces version manifests for a build job. Status lines are
// reported through the injected callback.
type Generator struct {
	status func(string)
}

// NewGenerator creates a generator reporting through status. A nil status
// is allowed and discards messages.
func NewGenerator(status func(string)) *Generator {
	if status == nil {
		status = func(string) {}
	}
	return &Generator{status: status}
}

// Generate writes a version manifest into workDir and returns its path.
// A malformed version string falls back to DefaultVersion rather than
// failing; a write failure returns "" and the job proceeds without
// version metadata.
func (g *Generator) Generate(version, copyright, productName, workDir string) string {
	numbers := normalizeVersion(version)

	data := struct {
		Vers      string
		Version   string
		Name      string
		Copyright string
	}{
		Vers:      strings.Join(numbers, ", "),
		Version:   strings.Join(numbers, "."),
		Name:      escape(productName),
		Copyright: escape(copyright),
	}

	// Render fully before touching the filesystem so a template failure
	// never leaves a partial manifest behind.
	var buf bytes.Buffer
	if err := manifestTemplate.Execute(&buf, data); err != nil {
		g.status(fmt.Sprintf("Failed to generate version information file: %v", err))
		return ""
	}

	path := filepath.Join(workDir, FileName)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		g.status(fmt.Sprintf("Failed to generate version information file: %v", err))
		return ""
	}

	g.status("Generate version information file.")
	return path
}

// normalizeVersion splits a version string into four numeric segments,
// substituting the default on any malformation.
func normalizeVersion(version string) []string {
	fallback := strings.Split(DefaultVersion, ".")
	if version == "" {
		return fallback
	}

	parts := strings.Split(version, ".")
	if len(parts) != 4 {
		return fallback
	}
	for _, p := range parts {
		if p == "" {
			return fallback
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return fallback
			}
		}
	}
	return parts
}

// escape makes a string safe inside the manifest's single-quoted
// Python-style literals.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return s
}
