// Package persona assembles the static instruction text for the agent: the
// persona (soul) description, the fixed memory tool contract and the enabled
// skill documents. The Loader caches the assembled prompt behind an explicit
// Invalidate hook; a fsnotify-based Watcher invalidates it automatically when
// the underlying files change.
package persona

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tobmae/soulchat/logging"
)

// DefaultSoul is used when the soul file is missing or unreadable.
const DefaultSoul = "You are a helpful AI assistant."

// memorySection explains the memory tool contract and the three memory type
// semantics to the model. Always part of the system prompt.
const memorySection = `# Memory System

You have access to a persistent memory system. Use it actively:
- **save_memory**: Proactively save important facts, user preferences, project details
- **search_memory**: Search before answering questions that might relate to past context
- **get_memories**: Review what you know about the user
- **delete_memory**: Clean up outdated memories

Memory types:
- **persistent**: Important facts to always remember (user's name, preferences, goals)
- **session**: Context specific to the current conversation
- **archival**: Reference material, research summaries, detailed notes

Be proactive about saving memories — don't wait to be asked.`

// skillsConfig mirrors the skills directory's config.json.
type skillsConfig struct {
	DisabledSkills []string `json:"disabledSkills"`
}

// Loader reads the soul file and skills directory and assembles the base
// system prompt. The assembled prompt is cached until Invalidate is called;
// missing sources degrade to documented fallbacks and never fail.
type Loader struct {
	soulPath  string
	skillsDir string
	logger    logging.Logger

	mu     sync.Mutex
	cached string
	valid  bool
}

// NewLoader creates a Loader over the given soul file and skills directory.
func NewLoader(soulPath, skillsDir string, logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Loader{soulPath: soulPath, skillsDir: skillsDir, logger: logger}
}

// SystemPrompt returns the assembled base system prompt, rebuilding it only
// when the cache has been invalidated.
func (l *Loader) SystemPrompt() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.valid {
		return l.cached
	}
	l.cached = l.build()
	l.valid = true
	return l.cached
}

// Invalidate drops the cached prompt so the next SystemPrompt call re-reads
// the soul and skills sources. Hooked up to settings edits via Watcher.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.valid = false
	l.mu.Unlock()
}

func (l *Loader) build() string {
	var b strings.Builder
	b.WriteString(l.loadSoul())
	b.WriteString("\n\n")
	b.WriteString(memorySection)
	if skills := l.loadSkills(); skills != "" {
		b.WriteString(skills)
	}
	return b.String()
}

// loadSoul reads the persona description, falling back to a generic default.
func (l *Loader) loadSoul() string {
	raw, err := os.ReadFile(l.soulPath)
	if err != nil {
		l.logger.Debug("soul file unavailable, using default", "path", l.soulPath)
		return DefaultSoul
	}
	return strings.TrimRight(string(raw), "\n")
}

// loadSkills assembles the "# Available Skills" section from enabled skill
// documents. A missing or unreadable directory yields no section.
func (l *Loader) loadSkills() string {
	entries, err := os.ReadDir(l.skillsDir)
	if err != nil {
		return ""
	}

	disabled := l.disabledSkills()

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") || disabled[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var skills []string
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(l.skillsDir, name))
		if err != nil {
			l.logger.Warn("skill unreadable, skipping", "skill", name, "error", err.Error())
			continue
		}
		heading := "## Skill: " + strings.TrimSuffix(name, ".md")
		skills = append(skills, heading+"\n\n"+string(raw))
	}

	if len(skills) == 0 {
		return ""
	}
	return "\n\n# Available Skills\n\n" + strings.Join(skills, "\n\n---\n\n")
}

// disabledSkills reads the skills config, tolerating a missing file.
func (l *Loader) disabledSkills() map[string]bool {
	disabled := map[string]bool{}
	raw, err := os.ReadFile(filepath.Join(l.skillsDir, "config.json"))
	if err != nil {
		return disabled
	}
	var cfg skillsConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		l.logger.Warn("skills config unreadable, ignoring", "error", err.Error())
		return disabled
	}
	for _, name := range cfg.DisabledSkills {
		disabled[name] = true
	}
	return disabled
}
