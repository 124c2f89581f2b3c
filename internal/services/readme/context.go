package readme

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/models"
)

const (
	maxTreeDepth    = 3
	maxTreeFiles    = 100
	maxCodeSamples  = 5
	maxContributors = 5
)

// languageExtensions maps a repository's primary language to the source file
// extensions worth sampling for the prompt.
var languageExtensions = map[string][]string{
	"python":     {".py"},
	"javascript": {".js", ".jsx", ".ts", ".tsx"},
	"typescript": {".ts", ".tsx"},
	"java":       {".java"},
	"c#":         {".cs"},
	"c++":        {".cpp", ".hpp", ".h"},
	"c":          {".c", ".h"},
	"go":         {".go"},
	"ruby":       {".rb"},
	"php":        {".php"},
	"rust":       {".rs"},
	"kotlin":     {".kt"},
	"swift":      {".swift"},
}

// fallbackExtensions cover repositories whose primary language is unknown.
var fallbackExtensions = []string{".py", ".js", ".java", ".cpp", ".go", ".rs", ".rb", ".php", ".ts"}

// manifestFiles are sampled regardless of the primary language; they tell the
// model how the project is built and installed.
var manifestFiles = []string{
	"README.md",
	"setup.py", "requirements.txt", "pyproject.toml",
	"package.json", "tsconfig.json",
	"pom.xml", "build.gradle",
	"Cargo.toml",
	"go.mod",
	"Gemfile",
	"composer.json",
}

// entryPoints rank ahead of everything else when choosing samples.
var entryPoints = []string{"main.py", "app.py", "index.js", "main.js", "app.js"}

// buildContext assembles the repository facts handed to the model. Metadata
// is mandatory; languages, contributors, tree and samples degrade to a
// smaller bundle when their fetches fail.
func (s *Service) buildContext(ctx context.Context, client interfaces.RepositoryClient, owner, repo string) (*models.RepositoryContext, error) {
	details, err := client.GetRepository(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch repository %s/%s: %w", owner, repo, err)
	}
	bundle := &models.RepositoryContext{Repository: *details}

	if langs, err := client.GetLanguages(ctx, owner, repo); err != nil {
		s.logger.Warn().Err(err).Str("repository", details.FullName).Msg("Languages unavailable")
	} else {
		bundle.Languages = langs
	}

	if contributors, err := client.GetContributors(ctx, owner, repo, maxContributors); err != nil {
		s.logger.Warn().Err(err).Str("repository", details.FullName).Msg("Contributors unavailable")
	} else {
		for _, c := range contributors {
			bundle.Contributors = append(bundle.Contributors, *c)
		}
	}

	entries, err := client.GetTree(ctx, owner, repo, details.DefaultBranch)
	if err != nil {
		s.logger.Warn().Err(err).Str("repository", details.FullName).Msg("File tree unavailable")
		return bundle, nil
	}
	for _, e := range entries {
		bundle.FileTree = append(bundle.FileTree, *e)
	}

	bundle.CodeSamples = s.collectSamples(ctx, client, owner, repo, details.Language, entries)
	return bundle, nil
}

// collectSamples fetches the highest-priority source files. Files that cannot
// be fetched or decoded are skipped, not fatal.
func (s *Service) collectSamples(ctx context.Context, client interfaces.RepositoryClient, owner, repo, language string, entries []*models.TreeEntry) []models.FileContent {
	selected := selectSampleEntries(entries, language)

	samples := make([]models.FileContent, 0, len(selected))
	for _, entry := range selected {
		content, err := client.GetFileContent(ctx, owner, repo, entry.Path, "")
		if err != nil {
			s.logger.Warn().Err(err).Str("path", entry.Path).Msg("Skipping unreadable code sample")
			continue
		}
		samples = append(samples, *content)
	}
	return samples
}

// selectSampleEntries filters the tree for files matching the language's
// extensions or a known manifest, ranks them, and caps the result.
func selectSampleEntries(entries []*models.TreeEntry, language string) []*models.TreeEntry {
	extensions := sampleExtensions(language)

	var candidates []*models.TreeEntry
	for _, e := range entries {
		if e.Type != "blob" {
			continue
		}
		if hasAnySuffix(e.Path, extensions) || isManifestFile(e.Path) {
			candidates = append(candidates, e)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return samplePriority(candidates[i].Path) < samplePriority(candidates[j].Path)
	})

	if len(candidates) > maxCodeSamples {
		candidates = candidates[:maxCodeSamples]
	}
	return candidates
}

func sampleExtensions(language string) []string {
	if exts, ok := languageExtensions[strings.ToLower(language)]; ok {
		return exts
	}
	return fallbackExtensions
}

// samplePriority ranks a candidate path: entry points first, then manifests,
// then other root-level files, then everything else.
func samplePriority(path string) int {
	lower := strings.ToLower(path)
	for _, name := range entryPoints {
		if lower == name || strings.HasSuffix(lower, "/"+name) {
			return 0
		}
	}
	for _, name := range manifestFiles {
		if lower == strings.ToLower(name) {
			return 1
		}
	}
	if !strings.Contains(lower, "/") {
		return 2
	}
	return 3
}

func isManifestFile(path string) bool {
	for _, name := range manifestFiles {
		if path == name {
			return true
		}
	}
	return false
}

func hasAnySuffix(path string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// treeNode is one directory or file while rebuilding the hierarchy from the
// flat recursive listing.
type treeNode struct {
	name     string
	dir      bool
	children map[string]*treeNode
}

func buildHierarchy(entries []models.TreeEntry) *treeNode {
	root := &treeNode{dir: true, children: make(map[string]*treeNode)}
	for _, e := range entries {
		parts := strings.Split(e.Path, "/")
		node := root
		for i, part := range parts {
			child, ok := node.children[part]
			if !ok {
				child = &treeNode{
					name:     part,
					dir:      i < len(parts)-1 || e.Type == "tree",
					children: make(map[string]*treeNode),
				}
				node.children[part] = child
			} else if i < len(parts)-1 {
				child.dir = true
			}
			node = child
		}
	}
	return root
}

// sortedChildren orders directories before files, each alphabetically
// ignoring case.
func sortedChildren(n *treeNode) []*treeNode {
	kids := make([]*treeNode, 0, len(n.children))
	for _, c := range n.children {
		kids = append(kids, c)
	}
	sort.Slice(kids, func(i, j int) bool {
		if kids[i].dir != kids[j].dir {
			return kids[i].dir
		}
		return strings.ToLower(kids[i].name) < strings.ToLower(kids[j].name)
	})
	return kids
}

// renderFileTree draws the repository layout the way a shell tree command
// would, capped at maxTreeDepth levels and maxTreeFiles files. sizeKB, when
// positive, appends a human-readable repository size.
func renderFileTree(entries []models.TreeEntry, sizeKB int64) string {
	if len(entries) == 0 {
		return "File structure not available"
	}

	root := buildHierarchy(entries)
	var lines []string
	fileCount := 0

	var walk func(n *treeNode, prefix string, depth int)
	walk = func(n *treeNode, prefix string, depth int) {
		kids := sortedChildren(n)
		for i, kid := range kids {
			if fileCount >= maxTreeFiles {
				if remaining := len(kids) - i; remaining > 0 {
					lines = append(lines, fmt.Sprintf("%s... (%d more items not shown)", prefix, remaining))
				}
				return
			}

			last := i == len(kids)-1
			line := kid.name
			if prefix != "" {
				branch := "├── "
				if last {
					branch = "└── "
				}
				line = prefix + branch + kid.name
			}
			lines = append(lines, line)

			if !kid.dir {
				fileCount++
				continue
			}

			next := prefix + "│   "
			if last {
				next = prefix + "    "
			}
			if depth < maxTreeDepth {
				walk(kid, next, depth+1)
			} else if len(kid.children) > 0 {
				lines = append(lines, next+"... (directory content not shown due to depth limit)")
			}
		}
	}
	walk(root, "", 1)

	if sizeKB > 0 {
		lines = append(lines, "", "Repository size: "+formatSize(sizeKB*1024))
	}
	return strings.Join(lines, "\n")
}

// formatSize renders a byte count with two decimals in the largest unit that
// keeps the value under 1024.
func formatSize(bytes int64) string {
	size := float64(bytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.2f TB", size)
}
