package preview

import (
	"encoding/json"
	"fmt"
)

// packageManifest is the package.json shape written into the staging tree.
type packageManifest struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Type            string            `json:"type"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func baseManifest() packageManifest {
	return packageManifest{
		Name:    "preview-app",
		Version: "1.0.0",
		Type:    "module",
		Scripts: map[string]string{
			"dev":     "vite",
			"build":   "vite build",
			"preview": "vite preview",
		},
		Dependencies: map[string]string{
			"react":            "^18.3.1",
			"react-dom":        "^18.3.1",
			"react-router-dom": "^6.20.0",
		},
		DevDependencies: map[string]string{
			"@vitejs/plugin-react-swc": "^3.3.2",
			"vite":                     "^4.4.5",
			"typescript":               "^5.2.2",
			"@types/react":             "^18.2.32",
			"@types/react-dom":         "^18.3.1",
			"tailwindcss":              "^3.3.0",
			"postcss":                  "^8.4.31",
			"autoprefixer":             "^10.4.16",
		},
	}
}

// composeManifest builds the staged package.json from the base template, the
// packages detected across staged sources, and whatever manifest a previous
// build or install left behind. Base versions win for the framework set;
// carried-over entries keep their pins; detected extras land at latest.
func composeManifest(detected []string, existing []byte) ([]byte, error) {
	manifest := baseManifest()
	if len(existing) > 0 {
		var prior packageManifest
		if err := json.Unmarshal(existing, &prior); err == nil {
			for name, version := range prior.Dependencies {
				if _, ok := manifest.Dependencies[name]; !ok {
					manifest.Dependencies[name] = version
				}
			}
			for name, version := range prior.DevDependencies {
				if _, ok := manifest.DevDependencies[name]; !ok {
					manifest.DevDependencies[name] = version
				}
			}
		}
	}
	for _, pkg := range detected {
		if _, ok := manifest.Dependencies[pkg]; ok {
			continue
		}
		if _, ok := manifest.DevDependencies[pkg]; ok {
			continue
		}
		manifest.Dependencies[pkg] = "latest"
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal package.json: %w", err)
	}
	return append(data, '\n'), nil
}
