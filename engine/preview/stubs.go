package preview

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/spf13/afero"

	"github.com/appforge/appforge/engine/core"
)

var (
	pageImportRe      = regexp.MustCompile(`import\s+(\w+)\s+from\s+['"]\./pages/(\w+)['"]`)
	componentImportRe = regexp.MustCompile(`import\s+\{\s*([^}]+)\s*\}\s+from\s+['"]\./components(?:/(\w+))?['"]`)
)

// ensurePageStubs creates a re-export stub for every page the root component
// imports but the staged tree lacks. The re-export target is the first
// existing page in sorted order; with no real page present nothing is
// generated.
func ensurePageStubs(fsys afero.Fs, srcDir string, log *buildLog) error {
	appContent, err := afero.ReadFile(fsys, filepath.Join(srcDir, "App.tsx"))
	if err != nil {
		return nil
	}
	matches := pageImportRe.FindAllStringSubmatch(string(appContent), -1)
	if len(matches) == 0 {
		return nil
	}
	pagesDir := filepath.Join(srcDir, "pages")
	if err := fsys.MkdirAll(pagesDir, 0o755); err != nil {
		return fmt.Errorf("failed to create pages directory: %w", err)
	}
	existing, err := tsxStems(fsys, pagesDir)
	if err != nil {
		return err
	}
	fallback := ""
	if names := sortedNames(existing); len(names) > 0 {
		fallback = names[0]
	}
	for _, match := range matches {
		fileName := match[2]
		if _, ok := existing[fileName]; ok {
			continue
		}
		if fallback == "" {
			continue
		}
		stub := fmt.Sprintf(`import React from 'react';
import %[1]s from './%[1]s';

// Auto-generated stub, redirects to %[1]s
export default %[1]s;
`, fallback)
		if err := afero.WriteFile(fsys, filepath.Join(pagesDir, fileName+".tsx"), []byte(stub), 0o644); err != nil {
			return fmt.Errorf("failed to write page stub %s: %w", fileName, err)
		}
		existing[fileName] = struct{}{}
		log.addf("[AUTO-GEN] Created pages/%s.tsx re-exporting %s.tsx", fileName, fallback)
	}
	return nil
}

// ensureComponentStubs scans every staged .tsx file for named component
// imports and creates a minimal export for each missing one, then emits
// components/index.tsx listing all components.
func ensureComponentStubs(fsys afero.Fs, srcDir string, log *buildLog) error {
	componentsDir := filepath.Join(srcDir, "components")
	if ok, err := afero.DirExists(fsys, componentsDir); err != nil || !ok {
		return err
	}
	existing, err := tsxStems(fsys, componentsDir)
	if err != nil {
		return err
	}
	delete(existing, "index")
	walkErr := afero.Walk(fsys, srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(path, ".tsx") {
			return err
		}
		content, readErr := afero.ReadFile(fsys, path)
		if readErr != nil {
			return readErr
		}
		for _, match := range componentImportRe.FindAllStringSubmatch(string(content), -1) {
			for _, raw := range strings.Split(match[1], ",") {
				name := strings.TrimSpace(raw)
				if !isComponentName(name) {
					continue
				}
				if _, ok := existing[name]; ok {
					continue
				}
				stub := fmt.Sprintf(`import React from 'react';

export function %[1]s() {
  return <div>%[1]s (auto-generated stub)</div>;
}
`, name)
				if writeErr := afero.WriteFile(fsys, filepath.Join(componentsDir, name+".tsx"), []byte(stub), 0o644); writeErr != nil {
					return fmt.Errorf("failed to write component stub %s: %w", name, writeErr)
				}
				existing[name] = struct{}{}
				log.addf("[AUTO-GEN] Created components/%s.tsx stub", name)
			}
		}
		return nil
	})
	if walkErr != nil {
		return walkErr
	}
	if len(existing) == 0 {
		return nil
	}
	exports := make([]string, 0, len(existing))
	for _, name := range sortedNames(existing) {
		exports = append(exports, fmt.Sprintf("export { %s } from './%s';", name, name))
	}
	index := strings.Join(exports, "\n") + "\n"
	if err := afero.WriteFile(fsys, filepath.Join(componentsDir, "index.tsx"), []byte(index), 0o644); err != nil {
		return fmt.Errorf("failed to write components index: %w", err)
	}
	log.addf("[AUTO-GEN] Created components/index.tsx with %d exports", len(existing))
	return nil
}

// writeScaffold lays down the bundler configuration and the entry-point seeds
// every preview needs. Configuration files are rewritten each build; entry
// seeds and UI stubs are only written when missing so generated replacements
// survive rebuilds.
func writeScaffold(fsys afero.Fs, frontendDir string, projectID core.ID, log *buildLog) error {
	srcDir := filepath.Join(frontendDir, "src")
	overwrite := map[string]string{
		filepath.Join(frontendDir, "index.html"):         indexHTML(projectID),
		filepath.Join(frontendDir, "vite.config.ts"):     viteConfigTemplate,
		filepath.Join(frontendDir, "tsconfig.json"):      tsconfigTemplate,
		filepath.Join(frontendDir, "tailwind.config.js"): tailwindConfigTemplate,
		filepath.Join(frontendDir, "postcss.config.js"):  postcssConfigTemplate,
	}
	for path, content := range overwrite {
		if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
		}
	}
	seeds := []struct {
		path    string
		content string
	}{
		{filepath.Join(srcDir, "index.css"), indexCSSTemplate},
		{filepath.Join(srcDir, "main.tsx"), mainTSXTemplate},
		{filepath.Join(srcDir, "app.ts"), appStubTemplate},
		{filepath.Join(srcDir, "components", "ui", "button.tsx"), uiButtonTemplate},
		{filepath.Join(srcDir, "components", "ui", "spinner.tsx"), uiSpinnerTemplate},
		{filepath.Join(srcDir, "components", "ui", "alert.tsx"), uiAlertTemplate},
		{filepath.Join(srcDir, "components", "ui", "index.tsx"), uiIndexTemplate},
	}
	for _, seed := range seeds {
		created, err := writeIfMissing(fsys, seed.path, seed.content)
		if err != nil {
			return err
		}
		if created {
			log.addf("[AUTO-GEN] Created %s", strings.TrimPrefix(seed.path, frontendDir+string(filepath.Separator)))
		}
	}
	return nil
}

func writeIfMissing(fsys afero.Fs, path, content string) (bool, error) {
	if exists, err := afero.Exists(fsys, path); err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	} else if exists {
		return false, nil
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func tsxStems(fsys afero.Fs, dir string) (map[string]struct{}, error) {
	stems := make(map[string]struct{})
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return stems, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tsx") {
			continue
		}
		stems[strings.TrimSuffix(entry.Name(), ".tsx")] = struct{}{}
	}
	return stems, nil
}

func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isComponentName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
