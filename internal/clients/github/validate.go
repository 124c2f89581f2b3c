package github

import "strings"

// ParseRepository extracts (owner, repo) from repository input. Bare
// "owner/repo" and full GitHub URLs resolve to the identical pair; a ".git"
// suffix on the repository name is stripped. Unparseable input is a
// RepoParseError.
func ParseRepository(input string) (string, string, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(input), "/")
	if !strings.Contains(trimmed, "/") {
		return "", "", &RepoParseError{Input: input}
	}

	parts := strings.Split(trimmed, "/")

	// URL form: owner/repo follow the github.com segment.
	if strings.Contains(trimmed, "github.com") {
		for i, part := range parts {
			if part == "github.com" || strings.HasSuffix(part, "github.com") {
				if i+2 < len(parts) {
					owner := parts[i+1]
					repo := strings.TrimSuffix(parts[i+2], ".git")
					if owner == "" || repo == "" {
						return "", "", &RepoParseError{Input: input}
					}
					return owner, repo, nil
				}
			}
		}
		return "", "", &RepoParseError{Input: input}
	}

	// Bare form: the last two segments are owner/repo.
	owner := parts[len(parts)-2]
	repo := strings.TrimSuffix(parts[len(parts)-1], ".git")
	if owner == "" || repo == "" {
		return "", "", &RepoParseError{Input: input}
	}
	return owner, repo, nil
}
