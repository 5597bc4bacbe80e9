package library

import (
	"encoding/json"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/tagflow/engine/internal/flowerr"
)

// Kind is the closed set of library manifest types.
type Kind string

const (
	KindNodeLibrary Kind = "node-library"
	KindExtension   Kind = "extension"
)

// Provides names what a node-library manifest contributes to the registry.
type Provides struct {
	NodeTypes []string `json:"nodeTypes"`
}

// Requirements declares host capabilities a library needs, checked against
// the granted set the same way the teacher's package manifest permissions
// are checked before install.
type Requirements struct {
	Capabilities []string `json:"capabilities"`
}

// Manifest is the parsed library.manifest.json contract.
type Manifest struct {
	LibraryID     string       `json:"libraryId"`
	SchemaVersion int          `json:"schemaVersion"`
	Name          string       `json:"name"`
	Version       string       `json:"version"`
	Type          Kind         `json:"type"`
	Description   string       `json:"description,omitempty"`
	Author        string       `json:"author,omitempty"`
	Provides      Provides     `json:"provides"`
	UIExtensions  []string     `json:"uiExtensions,omitempty"`
	Requirements  Requirements `json:"requirements"`
}

var (
	libraryIDRE = regexp.MustCompile(`^[a-z0-9-]+$`)
	semverRE    = regexp.MustCompile(`^\d+\.\d+\.\d+`)
)

// PeekManifest sniffs the libraryId and schemaVersion out of raw manifest
// bytes without a full struct round-trip, used to fail fast on an obviously
// wrong file before paying for json.Unmarshal.
func PeekManifest(raw []byte) (libraryID string, schemaVersion int, ok bool) {
	if !gjson.ValidBytes(raw) {
		return "", 0, false
	}
	result := gjson.ParseBytes(raw)
	id := result.Get("libraryId")
	version := result.Get("schemaVersion")
	if !id.Exists() {
		return "", 0, false
	}
	return id.String(), int(version.Int()), true
}

// ParseManifest fully decodes raw manifest bytes and validates them.
func ParseManifest(raw []byte) (Manifest, error) {
	libraryID, _, ok := PeekManifest(raw)
	if !ok || libraryID == "" {
		return Manifest{}, flowerr.New(flowerr.Validation, "manifest is missing libraryId")
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, flowerr.Wrap(flowerr.Validation, err, "manifest is not valid JSON")
	}
	if m.Type == "" {
		m.Type = KindNodeLibrary
	}
	if err := Validate(m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks the manifest's structural requirements: libraryId is a
// lowercase-kebab slug, name and version are present, schemaVersion is
// pinned at 1, version carries a semver prefix, and type is one of the
// closed set.
func Validate(m Manifest) error {
	if m.LibraryID == "" || !libraryIDRE.MatchString(m.LibraryID) {
		return flowerr.Newf(flowerr.Validation, "libraryId %q must be lowercase kebab-case", m.LibraryID)
	}
	if m.Name == "" {
		return flowerr.New(flowerr.Validation, "name is required")
	}
	if m.SchemaVersion != 1 {
		return flowerr.Newf(flowerr.Validation, "schemaVersion must be 1, got %d", m.SchemaVersion)
	}
	if m.Version == "" || !semverRE.MatchString(m.Version) {
		return flowerr.Newf(flowerr.Validation, "version %q must start with a semver prefix", m.Version)
	}
	switch m.Type {
	case KindNodeLibrary, KindExtension:
	default:
		return flowerr.Newf(flowerr.Validation, "type %q must be node-library or extension", m.Type)
	}
	if m.Type == KindNodeLibrary && len(m.Provides.NodeTypes) == 0 {
		return flowerr.New(flowerr.Validation, "node-library manifest must declare provides.nodeTypes")
	}
	return nil
}

// CheckRequirements verifies every required capability is present in
// granted, returning the missing ones.
func CheckRequirements(m Manifest, granted map[string]bool) []string {
	var missing []string
	for _, capability := range m.Requirements.Capabilities {
		if !granted[capability] {
			missing = append(missing, capability)
		}
	}
	return missing
}
