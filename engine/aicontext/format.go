package aicontext

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	maxPromptTaskDesc   = 300
	maxPromptStack      = 200
	maxPromptChatLen    = 150
	promptErrorCount    = 3
	promptChatCount     = 3
	promptMemoryExample = 3
)

// fileRoles drive the Project Files grouping. First match wins; files under
// utils are deliberately folded away to keep the prompt focused.
var fileRoles = []struct {
	role    string
	pattern string
	label   string
	limit   int
}{
	{"apis", "**/apis/**", "**Backend APIs:**", 5},
	{"pages", "**/pages/**", "**Frontend Pages:**", 5},
	{"components", "**/components/**", "**UI Components:**", 5},
	{"libs", "**/libs/**", "**Backend Libraries:**", 3},
	{"utils", "**/utils/**", "", 0},
	{"other", "", "**Other Files:**", 3},
}

// FormatPrompt renders the snapshot as the state block prepended to every
// model system prompt.
func FormatPrompt(snap *Snapshot) string {
	var sections []string
	add := func(lines ...string) { sections = append(sections, lines...) }

	add("# CURRENT PROJECT STATE", "")
	add("This is the current state of the project you're working on. Use this information to maintain awareness of what exists, what's in progress, and what needs attention.", "")

	if info := snap.ProjectInfo; info != nil {
		add("## Project Overview")
		name := info.Name
		if name == "" {
			name = "Unnamed Project"
		}
		add("**Name:** " + name)
		if info.Description != "" {
			add("**Description:** " + info.Description)
		}
		add("")
	}

	if tasks := snap.Tasks; tasks != nil {
		if len(tasks.Active) > 0 {
			add("## 📋 Active Tasks")
			for _, t := range tasks.Active {
				priority := t.Priority
				if priority == "" {
					priority = "medium"
				}
				add(fmt.Sprintf("\n**%s** `[%s]` `Priority: %s`", t.Title, strings.ToUpper(t.Status), priority))
				if t.Description != "" {
					add(truncate(t.Description, maxPromptTaskDesc, "..."))
				}
			}
			add("")
		}
		if len(tasks.RecentlyCompleted) > 0 {
			add("## ✅ Recently Completed")
			for _, t := range firstN(tasks.RecentlyCompleted, 5) {
				add("- " + t.Title)
			}
			add("")
		}
	}

	if len(snap.Errors) > 0 {
		add("## ⚠️ Unresolved Errors")
		add(fmt.Sprintf("There are currently %d error(s) that need attention:", len(snap.Errors)), "")
		for i, e := range firstN(snap.Errors, promptErrorCount) {
			add(fmt.Sprintf("**Error %d: %s**", i+1, e.Kind))
			file := e.File
			if file == "" {
				file = "Unknown"
			}
			add("- File: `" + file + "`")
			if e.Line > 0 {
				add(fmt.Sprintf("- Line: %d", e.Line))
			}
			add("- Message: " + e.Message)
			if e.Stack != "" {
				add(fmt.Sprintf("```\n%s\n```", truncate(e.Stack, maxPromptStack, "\n... (truncated)")))
			}
			add("")
		}
		if extra := len(snap.Errors) - promptErrorCount; extra > 0 {
			add(fmt.Sprintf("*... and %d more errors*", extra), "")
		}
	}

	if len(snap.Files) > 0 {
		add("## 📁 Project Files")
		add(fmt.Sprintf("The project contains %d file(s):", len(snap.Files)), "")
		grouped := groupFilesByRole(snap.Files)
		for _, role := range fileRoles {
			files := grouped[role.role]
			if role.label == "" || len(files) == 0 {
				continue
			}
			add(role.label)
			for _, f := range firstN(files, role.limit) {
				add("- `" + f.Path + "`")
			}
			if extra := len(files) - role.limit; extra > 0 {
				add(fmt.Sprintf("  *... and %d more*", extra))
			}
			add("")
		}
	}

	if data := snap.StoredContext; data != nil && !data.Empty() {
		add("## 🧠 AI Memory (From Previous Session)")
		if data.CurrentPhase != "" {
			add("**Phase:** " + data.CurrentPhase)
		}
		if data.CurrentTask != "" {
			add("**Task:** " + data.CurrentTask)
		}
		if len(data.FilesGenerated) > 0 {
			add("**Generated Files:** " + summarizeList(data.FilesGenerated, promptMemoryExample))
		}
		if len(data.TasksCompleted) > 0 {
			add("**Completed:** " + summarizeList(data.TasksCompleted, promptMemoryExample))
		}
		if len(data.AIMemory) > 0 {
			add("**Notes:**")
			for _, key := range firstN(sortedKeys(data.AIMemory), promptMemoryExample) {
				add(fmt.Sprintf("  - %s: %v", key, data.AIMemory[key]))
			}
		}
		add("")
	}

	if len(snap.ChatHistory) > 0 {
		add("## 💬 Recent Conversation Context")
		for _, m := range lastN(snap.ChatHistory, promptChatCount) {
			add(fmt.Sprintf("**%s:** %s", capitalize(m.Role), truncate(m.Content, maxPromptChatLen, "...")))
		}
		add("")
	}

	add("---")
	add("*Use this context to understand the current state and make informed decisions.*", "")
	return strings.Join(sections, "\n")
}

func groupFilesByRole(files []FileInfo) map[string][]FileInfo {
	grouped := make(map[string][]FileInfo)
	for _, f := range files {
		role := fileRole(f.Path)
		grouped[role] = append(grouped[role], f)
	}
	return grouped
}

func fileRole(path string) string {
	for _, role := range fileRoles {
		if role.pattern == "" {
			continue
		}
		if ok, err := doublestar.Match(role.pattern, path); err == nil && ok {
			return role.role
		}
	}
	return "other"
}

func truncate(s string, limit int, suffix string) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + suffix
}

func summarizeList(items []string, show int) string {
	summary := strings.Join(firstN(items, show), ", ")
	if extra := len(items) - show; extra > 0 {
		summary += fmt.Sprintf(" and %d more", extra)
	}
	return summary
}

func firstN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
