// Package webhook verifies and applies GitHub App webhook deliveries.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/models"
)

// signaturePrefix is the scheme GitHub puts in X-Hub-Signature-256.
const signaturePrefix = "sha256="

// Service implements interfaces.WebhookService. Installation lifecycle events
// mutate UserRecords; repository events are acknowledged for observability
// only, since repository metadata is fetched fresh on demand.
type Service struct {
	storage interfaces.StorageManager
	secret  []byte
	logger  *common.Logger
}

// NewService creates a webhook service. An empty secret disables verification
// in the sense that every delivery is rejected; the endpoint fails closed.
func NewService(storage interfaces.StorageManager, secret string, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		secret:  []byte(secret),
		logger:  logger,
	}
}

// VerifySignature checks the X-Hub-Signature-256 header against the raw
// payload using constant-time comparison. Any mismatch, malformed header, or
// missing secret is an error; no delivery gets through unverified.
func (s *Service) VerifySignature(payload []byte, signature string) error {
	if len(s.secret) == 0 {
		return fmt.Errorf("webhook secret is not configured")
	}
	if signature == "" {
		return fmt.Errorf("missing signature header")
	}
	if !strings.HasPrefix(signature, signaturePrefix) {
		return fmt.Errorf("signature header must use the %s scheme", signaturePrefix)
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	expected := signaturePrefix + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// Process applies one verified delivery and returns a short action summary.
// Unrecognized event types and actions are acknowledged and ignored, never
// errors: GitHub retries failed deliveries and there is nothing to retry.
func (s *Service) Process(ctx context.Context, event, deliveryID string, payload []byte) (string, error) {
	s.logger.Info().
		Str("event", event).
		Str("delivery_id", deliveryID).
		Msg("Processing webhook delivery")

	switch event {
	case "installation":
		return s.handleInstallation(ctx, payload)
	case "installation_repositories":
		return s.handleInstallationRepositories(payload)
	case "repository":
		return s.handleRepository(payload)
	case "ping":
		return s.handlePing(payload)
	default:
		s.logger.Debug().Str("event", event).Msg("Ignoring webhook event type")
		return fmt.Sprintf("ignored event %q", event), nil
	}
}

// handleInstallation applies installation lifecycle changes to UserRecords.
// Deletion and suspension clear the installation from every user holding it,
// forcing a reinstall; creation and unsuspension bind it to the account that
// owns the installation.
func (s *Service) handleInstallation(ctx context.Context, payload []byte) (string, error) {
	var event models.InstallationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", fmt.Errorf("failed to decode installation event: %w", err)
	}

	installationID := event.Installation.ID
	account := event.Installation.Account.Login

	switch event.Action {
	case "created", "unsuspend":
		if account == "" || installationID == 0 {
			return "", fmt.Errorf("installation event missing account or id")
		}
		if _, err := s.storage.UserStore().Upsert(ctx, &models.UserRecord{
			Username:       account,
			InstallationID: installationID,
		}); err != nil {
			return "", fmt.Errorf("failed to bind installation: %w", err)
		}
		s.logger.Info().
			Int64("installation_id", installationID).
			Str("account", account).
			Str("action", event.Action).
			Msg("Installation bound to account")
		return fmt.Sprintf("installation %d bound to %s", installationID, account), nil

	case "deleted", "suspend":
		cleared, err := s.storage.UserStore().ClearInstallation(ctx, installationID)
		if err != nil {
			return "", fmt.Errorf("failed to clear installation: %w", err)
		}
		s.logger.Info().
			Int64("installation_id", installationID).
			Str("action", event.Action).
			Int("users_cleared", cleared).
			Msg("Installation cleared")
		return fmt.Sprintf("installation %d cleared from %d user(s)", installationID, cleared), nil

	default:
		s.logger.Debug().Str("action", event.Action).Msg("Ignoring installation action")
		return fmt.Sprintf("ignored installation action %q", event.Action), nil
	}
}

// handleInstallationRepositories acknowledges repository scope changes. The
// accessible set is always read live from GitHub, so there is no cache to
// update here.
func (s *Service) handleInstallationRepositories(payload []byte) (string, error) {
	var event models.InstallationRepositoriesEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", fmt.Errorf("failed to decode installation_repositories event: %w", err)
	}

	s.logger.Info().
		Str("action", event.Action).
		Int64("installation_id", event.Installation.ID).
		Int("added", len(event.RepositoriesAdded)).
		Int("removed", len(event.RepositoriesRemoved)).
		Msg("Installation repository scope changed")

	return fmt.Sprintf("installation %d repositories %s: +%d/-%d",
		event.Installation.ID, event.Action,
		len(event.RepositoriesAdded), len(event.RepositoriesRemoved)), nil
}

// handleRepository acknowledges repository lifecycle events.
func (s *Service) handleRepository(payload []byte) (string, error) {
	var event models.RepositoryEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", fmt.Errorf("failed to decode repository event: %w", err)
	}

	s.logger.Info().
		Str("action", event.Action).
		Str("repository", event.Repository.FullName).
		Msg("Repository event")

	return fmt.Sprintf("repository %s %s", event.Repository.FullName, event.Action), nil
}

// handlePing answers GitHub's webhook handshake.
func (s *Service) handlePing(payload []byte) (string, error) {
	var event models.PingEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", fmt.Errorf("failed to decode ping event: %w", err)
	}

	s.logger.Info().Int64("hook_id", event.HookID).Msg("Webhook ping received")
	return "pong", nil
}

// Ensure Service implements WebhookService
var _ interfaces.WebhookService = (*Service)(nil)
