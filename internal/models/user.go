package models

import "time"

// UserRecord is a stored user account. Username is the stable identity key
// across the OAuth and App-installation flows; InstallationID is zeroed when
// an installation is revoked, forcing re-installation.
type UserRecord struct {
	Username       string    `json:"username"`
	GitHubID       int64     `json:"github_id,omitempty"`
	Email          string    `json:"email,omitempty"`
	FullName       string    `json:"full_name,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	Company        string    `json:"company,omitempty"`
	PublicRepos    int       `json:"public_repos,omitempty"`
	InstallationID int64     `json:"installation_id,omitempty"`
	IsAdmin        bool      `json:"is_admin"`
	CreatedAt      time.Time `json:"created_at"`
	LastLogin      time.Time `json:"last_login"`
}

// GitHubProfile is the subset of the GitHub /user response the system consumes.
type GitHubProfile struct {
	Login       string `json:"login"`
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	Company     string `json:"company"`
	PublicRepos int    `json:"public_repos"`
}

// Merge folds a fresh login record into the stored one. Blank incoming values
// never erase stored ones, and the admin flag only moves through SetAdmin.
func (u *UserRecord) Merge(in *UserRecord) {
	if in.GitHubID != 0 {
		u.GitHubID = in.GitHubID
	}
	if in.Email != "" {
		u.Email = in.Email
	}
	if in.FullName != "" {
		u.FullName = in.FullName
	}
	if in.AvatarURL != "" {
		u.AvatarURL = in.AvatarURL
	}
	if in.Company != "" {
		u.Company = in.Company
	}
	if in.PublicRepos != 0 {
		u.PublicRepos = in.PublicRepos
	}
	if in.InstallationID != 0 {
		u.InstallationID = in.InstallationID
	}
	if !in.LastLogin.IsZero() {
		u.LastLogin = in.LastLogin
	}
}

// ApplyProfile merges GitHub profile fields into the record. Blank incoming
// values never erase stored ones (upsert-merge semantics).
func (u *UserRecord) ApplyProfile(p GitHubProfile) {
	if p.ID != 0 {
		u.GitHubID = p.ID
	}
	if p.Email != "" {
		u.Email = p.Email
	}
	if p.Name != "" {
		u.FullName = p.Name
	}
	if p.AvatarURL != "" {
		u.AvatarURL = p.AvatarURL
	}
	if p.Company != "" {
		u.Company = p.Company
	}
	if p.PublicRepos != 0 {
		u.PublicRepos = p.PublicRepos
	}
}
