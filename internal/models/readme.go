package models

import "time"

// ReadmeGeneration is one stored README generation, keyed by ID and owned by
// the requesting user. Version counts successive generations for the same
// repository by the same user.
type ReadmeGeneration struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Repository string    `json:"repository"` // owner/repo
	Content    string    `json:"content"`
	Model      string    `json:"model,omitempty"`
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}

// RepositoryContext is the bundle of repository facts handed to the language
// model when generating a README.
type RepositoryContext struct {
	Repository   Repository        `json:"repository"`
	Languages    map[string]int64  `json:"languages,omitempty"`
	Contributors []Contributor     `json:"contributors,omitempty"`
	FileTree     []TreeEntry       `json:"file_tree,omitempty"`
	CodeSamples  []FileContent     `json:"code_samples,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// ReadmeSection is one requested section of a generated README.
type ReadmeSection struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
	Order       int    `json:"order,omitempty"`
}

// DefaultReadmeSections are used when a generation request names no sections.
func DefaultReadmeSections() []ReadmeSection {
	return []ReadmeSection{
		{Name: "Introduction", Description: "Brief overview of what the project does and its key features", Required: true, Order: 1},
		{Name: "Installation", Description: "Step-by-step instructions for installing the project", Required: true, Order: 2},
		{Name: "Usage", Description: "Examples of how to use the project with code samples", Required: true, Order: 3},
		{Name: "Features", Description: "Detailed list of features and capabilities", Order: 4},
		{Name: "Contributing", Description: "Guidelines for contributing to the project", Order: 5},
	}
}
