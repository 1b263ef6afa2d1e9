package pkgmanager

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// appGroupEntryRe matches one dependency entry inside the app group list,
// quoted or bare.
var appGroupEntryRe = regexp.MustCompile(`["']([^"',]+)["']|([A-Za-z0-9._\[\]><=~-]+)`)

// MergeAppGroup adds packages to the `app = [...]` dependency group of a
// pyproject.toml. Existing entries are kept, the union is sorted and every
// entry is serialised quoted. The second return reports whether the app
// group line was found.
func MergeAppGroup(content string, packages []string) (string, bool) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "app = [") && !strings.HasPrefix(trimmed, "app=[") {
			continue
		}
		_, rhs, _ := strings.Cut(line, "=")
		existing := parseAppGroupEntries(rhs)
		seen := make(map[string]struct{}, len(existing)+len(packages))
		merged := make([]string, 0, len(existing)+len(packages))
		for _, entry := range append(existing, packages...) {
			if entry == "" {
				continue
			}
			if _, dup := seen[entry]; dup {
				continue
			}
			seen[entry] = struct{}{}
			merged = append(merged, entry)
		}
		sort.Strings(merged)
		quoted := make([]string, len(merged))
		for j, entry := range merged {
			quoted[j] = fmt.Sprintf("%q", entry)
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		lines[i] = indent + "app = [" + strings.Join(quoted, ", ") + "]"
		return strings.Join(lines, "\n"), true
	}
	return content, false
}

// parseAppGroupEntries pulls dependency names out of the right-hand side of
// the app group assignment. Only the bracketed section counts so trailing
// comments never leak into the list.
func parseAppGroupEntries(rhs string) []string {
	open := strings.Index(rhs, "[")
	if open >= 0 {
		if close := strings.LastIndex(rhs, "]"); close > open {
			rhs = rhs[open+1 : close]
		} else {
			rhs = rhs[open+1:]
		}
	}
	var entries []string
	for _, match := range appGroupEntryRe.FindAllStringSubmatch(rhs, -1) {
		entry := match[1]
		if entry == "" {
			entry = match[2]
		}
		if entry == "" || entry == "[" || entry == "]" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// AddPackageJSONDependencies adds each package to the dependencies object of
// a package.json with the version spec "latest", unless a version is already
// pinned. It returns the updated document (two-space indent) and the names
// actually added.
func AddPackageJSONDependencies(data []byte, packages []string) ([]byte, []string, error) {
	var manifest map[string]any
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, nil, fmt.Errorf("failed to parse package.json: %w", err)
	}
	deps, ok := manifest["dependencies"].(map[string]any)
	if !ok {
		deps = make(map[string]any)
		manifest["dependencies"] = deps
	}
	var added []string
	for _, pkg := range packages {
		if pkg == "" {
			continue
		}
		if _, exists := deps[pkg]; exists {
			continue
		}
		deps[pkg] = "latest"
		added = append(added, pkg)
	}
	sort.Strings(added)
	updated, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialise package.json: %w", err)
	}
	return append(updated, '\n'), added, nil
}
