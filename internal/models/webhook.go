package models

// WebhookInstallation identifies the App installation a webhook refers to.
type WebhookInstallation struct {
	ID      int64     `json:"id"`
	Account RepoOwner `json:"account"`
}

// InstallationEvent is the payload of GitHub "installation" webhooks
// (actions: created, deleted, suspend, unsuspend, new_permissions_accepted).
type InstallationEvent struct {
	Action       string              `json:"action"`
	Installation WebhookInstallation `json:"installation"`
	Repositories []Repository        `json:"repositories,omitempty"`
}

// InstallationRepositoriesEvent is the payload of "installation_repositories"
// webhooks (actions: added, removed).
type InstallationRepositoriesEvent struct {
	Action              string              `json:"action"`
	Installation        WebhookInstallation `json:"installation"`
	RepositoriesAdded   []Repository        `json:"repositories_added,omitempty"`
	RepositoriesRemoved []Repository        `json:"repositories_removed,omitempty"`
}

// RepositoryEvent is the payload of "repository" webhooks.
type RepositoryEvent struct {
	Action       string               `json:"action"`
	Repository   Repository           `json:"repository"`
	Installation *WebhookInstallation `json:"installation,omitempty"`
}

// PingEvent is GitHub's webhook handshake payload.
type PingEvent struct {
	Zen    string `json:"zen"`
	HookID int64  `json:"hook_id"`
}
