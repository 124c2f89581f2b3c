package models

// Repository is the subset of a GitHub repository record the system consumes.
type Repository struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Private       bool      `json:"private"`
	Owner         RepoOwner `json:"owner"`
	Description   string    `json:"description,omitempty"`
	DefaultBranch string    `json:"default_branch"`
	Language      string    `json:"language,omitempty"`
	Topics        []string  `json:"topics,omitempty"`
	HTMLURL       string    `json:"html_url"`
	Stars         int       `json:"stargazers_count"`
	Forks         int       `json:"forks_count"`
	OpenIssues    int       `json:"open_issues_count"`
	Size          int64     `json:"size,omitempty"` // kilobytes, as reported by GitHub
	License       *License  `json:"license,omitempty"`
}

// RepoOwner identifies the account a repository belongs to.
type RepoOwner struct {
	Login string `json:"login"`
	Type  string `json:"type,omitempty"`
}

// License is a repository license descriptor.
type License struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// RepoPermissions are the caller's effective permissions on a repository.
type RepoPermissions struct {
	Admin bool `json:"admin"`
	Push  bool `json:"push"`
	Pull  bool `json:"pull"`
}

// Contributor is a repository contributor with commit count.
type Contributor struct {
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
}

// TreeEntry is one entry of a git tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob" or "tree"
	Size int64  `json:"size,omitempty"`
	SHA  string `json:"sha"`
}

// FileContent is a decoded repository file.
type FileContent struct {
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	Size    int64  `json:"size"`
	Content string `json:"content"` // decoded text
}

// Branch is a repository branch head.
type Branch struct {
	Name      string `json:"name"`
	CommitSHA string `json:"commit_sha"`
	Protected bool   `json:"protected"`
}

// FileCommit is a request to create or update a single file via the contents API.
type FileCommit struct {
	Path    string `json:"path"`
	Branch  string `json:"branch"`
	Message string `json:"message"`
	Content []byte `json:"content"`
}

// CommitResult describes a file write performed through the contents API.
type CommitResult struct {
	Path      string `json:"path"`
	Branch    string `json:"branch"`
	CommitSHA string `json:"commit_sha"`
	HTMLURL   string `json:"html_url,omitempty"`
	Created   bool   `json:"created"` // false when an existing file was updated
}
