package modules

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tycode-ai/tycode/internal/config"
)

// Skills are discovered from these directories, in priority order. Later
// sources override earlier ones when the same skill name is found.
//
// Grounded on tycode-core/src/skills/mod.rs's doc comment enumerating the
// same four directories and the same override precedence.
const (
	skillsHomeClaudeDir      = ".claude/skills"
	skillsHomeTycodeDir      = ".tycode/skills"
	skillsWorkspaceClaudeDir = ".claude/skills"
	skillsWorkspaceTycodeDir = ".tycode/skills"
)

const skillFileName = "SKILL.md"

// MaxSkillNameLength and MaxSkillDescriptionLength bound the frontmatter
// fields validated by isValidSkillName/isValidSkillDescription. The
// original source references these as named constants without retrieving
// their values in this pack; these lengths are sized generously for a
// short identifier and a one-paragraph description respectively.
const (
	MaxSkillNameLength        = 64
	MaxSkillDescriptionLength = 1024
)

var skillNamePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// SkillSource identifies which discovery directory a skill was loaded
// from, most specific (workspace, Tycode-native) last so it sorts after
// the compatibility locations in any presentation that orders by source.
type SkillSource string

const (
	SkillSourceUserClaude       SkillSource = "user-claude"
	SkillSourceUser             SkillSource = "user"
	SkillSourceWorkspaceClaude  SkillSource = "workspace-claude"
	SkillSourceWorkspace        SkillSource = "workspace"
)

func (s SkillSource) String() string { return string(s) }

// SkillMetadata is a skill's frontmatter plus where it was found.
type SkillMetadata struct {
	Name        string
	Description string
	Source      SkillSource
	Path        string
	Enabled     bool
}

func isValidSkillName(name string) bool {
	if name == "" || len(name) > MaxSkillNameLength {
		return false
	}
	return skillNamePattern.MatchString(name)
}

func isValidSkillDescription(desc string) bool {
	return desc != "" && len(desc) <= MaxSkillDescriptionLength
}

// SkillInstructions is a fully parsed and validated skill: its metadata,
// the markdown body following the frontmatter, and whatever sibling
// reference files and scripts live alongside SKILL.md.
type SkillInstructions struct {
	Metadata       SkillMetadata
	Instructions   string
	ReferenceFiles []string
	Scripts        []string
}

type rawFrontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// parseSkillContent parses a SKILL.md file's raw content: YAML frontmatter
// delimited by leading/trailing `---` lines, followed by a markdown body.
//
// Grounded on tycode-core/src/skills/parser.rs's parse_skill_content/
// extract_frontmatter, translated from serde_yaml to gopkg.in/yaml.v3.
func parseSkillContent(content string, path string, source SkillSource, enabled bool) (SkillInstructions, error) {
	frontmatter, instructions, err := extractFrontmatter(content)
	if err != nil {
		return SkillInstructions{}, err
	}

	var raw rawFrontmatter
	if err := yaml.Unmarshal([]byte(frontmatter), &raw); err != nil {
		return SkillInstructions{}, fmt.Errorf("failed to parse YAML frontmatter in %s: %w", path, err)
	}

	if !isValidSkillName(raw.Name) {
		return SkillInstructions{}, fmt.Errorf(
			"Invalid skill name %q: must be lowercase letters, numbers, and hyphens only (max %d chars)",
			raw.Name, MaxSkillNameLength,
		)
	}
	if !isValidSkillDescription(raw.Description) {
		return SkillInstructions{}, fmt.Errorf(
			"Invalid skill description: must be non-empty and max %d chars", MaxSkillDescriptionLength,
		)
	}

	skillDir := filepath.Dir(path)

	return SkillInstructions{
		Metadata: SkillMetadata{
			Name:        raw.Name,
			Description: raw.Description,
			Source:      source,
			Path:        path,
			Enabled:     enabled,
		},
		Instructions:   instructions,
		ReferenceFiles: discoverReferenceFiles(skillDir),
		Scripts:        discoverScripts(skillDir),
	}, nil
}

// extractFrontmatter splits a SKILL.md file's content into its YAML
// frontmatter and the markdown body that follows it.
func extractFrontmatter(content string) (frontmatter string, body string, err error) {
	content = strings.TrimSpace(content)

	if !strings.HasPrefix(content, "---") {
		return "", "", fmt.Errorf("SKILL.md must start with YAML frontmatter (---)")
	}

	rest := content[3:]
	endPos := strings.Index(rest, "\n---")
	if endPos < 0 {
		return "", "", fmt.Errorf("SKILL.md frontmatter not closed (missing ---)")
	}

	frontmatter = strings.TrimSpace(rest[:endPos])
	body = strings.TrimSpace(rest[endPos+4:])

	if frontmatter == "" {
		return "", "", fmt.Errorf("SKILL.md frontmatter is empty")
	}
	return frontmatter, body, nil
}

// discoverReferenceFiles lists sibling `.md` files in a skill's directory,
// excluding SKILL.md itself, sorted.
func discoverReferenceFiles(skillDir string) []string {
	entries, err := os.ReadDir(skillDir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		if strings.EqualFold(e.Name(), skillFileName) {
			continue
		}
		files = append(files, filepath.Join(skillDir, e.Name()))
	}
	sort.Strings(files)
	return files
}

// discoverScripts lists every file under a skill's scripts/ subdirectory,
// sorted.
func discoverScripts(skillDir string) []string {
	scriptsDir := filepath.Join(skillDir, "scripts")
	entries, err := os.ReadDir(scriptsDir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(scriptsDir, e.Name()))
	}
	sort.Strings(files)
	return files
}

// SkillsManager discovers and caches skills from the four source
// directories, keyed by name so a later source overrides an earlier one.
//
// Grounded on tycode-core/src/skills/discovery.rs (referenced by mod.rs/
// parser.rs but not present in this pack); the discovery-order and
// override-by-name semantics are reconstructed from mod.rs's module-level
// doc comment and the Manager methods mod.rs/command.rs/tool.rs call
// against it (discover, reload, get_skill, get_all_metadata,
// get_enabled_metadata, is_enabled, load_instructions).
type SkillsManager struct {
	mu             sync.RWMutex
	workspaceRoots []string
	homeDir        string
	config         config.SkillsConfig
	skills         map[string]SkillInstructions
	order          []string
}

// DiscoverSkills walks the discovery directories and returns a populated
// SkillsManager.
func DiscoverSkills(workspaceRoots []string, homeDir string, cfg config.SkillsConfig) *SkillsManager {
	m := &SkillsManager{workspaceRoots: workspaceRoots, homeDir: homeDir, config: cfg}
	m.Reload()
	return m
}

// Reload re-scans every discovery directory, replacing the cached set.
func (m *SkillsManager) Reload() {
	skills := map[string]SkillInstructions{}
	var order []string

	apply := func(dir string, source SkillSource) {
		for _, inst := range loadSkillsFromDir(dir, source, m.config) {
			if _, exists := skills[inst.Metadata.Name]; !exists {
				order = append(order, inst.Metadata.Name)
			}
			skills[inst.Metadata.Name] = inst
		}
	}

	apply(filepath.Join(m.homeDir, skillsHomeClaudeDir), SkillSourceUserClaude)
	apply(filepath.Join(m.homeDir, skillsHomeTycodeDir), SkillSourceUser)
	for _, root := range m.workspaceRoots {
		apply(filepath.Join(root, skillsWorkspaceClaudeDir), SkillSourceWorkspaceClaude)
	}
	for _, root := range m.workspaceRoots {
		apply(filepath.Join(root, skillsWorkspaceTycodeDir), SkillSourceWorkspace)
	}

	sort.Strings(order)

	m.mu.Lock()
	m.skills = skills
	m.order = order
	m.mu.Unlock()
}

func loadSkillsFromDir(dir string, source SkillSource, cfg config.SkillsConfig) []SkillInstructions {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var loaded []SkillInstructions
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		skillFile := filepath.Join(dir, e.Name(), skillFileName)
		content, err := os.ReadFile(skillFile)
		if err != nil {
			continue
		}
		inst, err := parseSkillContent(string(content), skillFile, source, cfg.Enabled)
		if err != nil {
			continue
		}
		if contains(cfg.DisabledSkills, inst.Metadata.Name) {
			inst.Metadata.Enabled = false
		}
		loaded = append(loaded, inst)
	}
	return loaded
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// GetAllMetadata returns metadata for every discovered skill, sorted by
// name.
func (m *SkillsManager) GetAllMetadata() []SkillMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SkillMetadata, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.skills[name].Metadata)
	}
	return out
}

// GetEnabledMetadata returns metadata for enabled skills only.
func (m *SkillsManager) GetEnabledMetadata() []SkillMetadata {
	var out []SkillMetadata
	for _, md := range m.GetAllMetadata() {
		if md.Enabled {
			out = append(out, md)
		}
	}
	return out
}

// GetSkill returns the fully parsed skill by name, if discovered.
func (m *SkillsManager) GetSkill(name string) (SkillInstructions, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.skills[name]
	return inst, ok
}

// IsEnabled reports whether a discovered skill is enabled. A skill that
// was never discovered is reported as not enabled.
func (m *SkillsManager) IsEnabled(name string) bool {
	inst, ok := m.GetSkill(name)
	return ok && inst.Metadata.Enabled
}

// LoadInstructions returns a skill's full instructions, erroring if the
// skill was never discovered.
func (m *SkillsManager) LoadInstructions(name string) (SkillInstructions, error) {
	inst, ok := m.GetSkill(name)
	if !ok {
		return SkillInstructions{}, fmt.Errorf("skill %q not found", name)
	}
	return inst, nil
}
