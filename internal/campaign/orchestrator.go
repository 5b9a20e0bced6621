// Package campaign drives the outreach workflow state machine. Each stage
// resolves its campaign by natural key, marks it in progress, runs the
// stage body against the adapters, and lands the campaign back on Idle or
// on a failure label.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"coldreach/internal/database"
	"coldreach/internal/generator"
	"coldreach/internal/mailer"
	"coldreach/internal/models"
	"coldreach/internal/replies"
	"coldreach/internal/scraper"

	"github.com/rs/zerolog"
)

var (
	// ErrCampaignBusy is returned when a stage is triggered while another
	// stage holds the campaign.
	ErrCampaignBusy = errors.New("campaign busy")

	// ErrNoSenderConfig is returned when generation or sending runs for a
	// user without a sender configuration.
	ErrNoSenderConfig = errors.New("sender config not set")

	// ErrNoIMAPCredentials is returned when reply analysis runs without
	// mailbox credentials.
	ErrNoIMAPCredentials = errors.New("IMAP credentials not configured")
)

// Store is the persistence surface the orchestrator needs.
type Store interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetCampaign(ctx context.Context, userID int64, name string) (*models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, campaignID int64, status models.Status) error
	GetSenderConfig(ctx context.Context, userID int64) (*models.SenderConfig, error)
	CampaignLeads(ctx context.Context, campaignID int64) ([]models.Lead, error)
	InsertLead(ctx context.Context, lead *models.Lead) error
	DeleteCampaignEmails(ctx context.Context, campaignID int64) error
	InsertEmailContent(ctx context.Context, e *models.EmailContent) error
	UpdateEmailHTML(ctx context.Context, emailID int64, html string) error
	UpdateDeliveryStatus(ctx context.Context, emailID int64, status string) error
	UnsentEmails(ctx context.Context, campaignID int64) ([]database.EmailLeadPair, error)
	CampaignEmailLeadPairs(ctx context.Context, campaignID int64) ([]database.EmailLeadPair, error)
	UpdateReply(ctx context.Context, emailID int64, replyText, sentiment string) error
}

// LeadSource discovers candidate leads for selector combinations.
type LeadSource interface {
	Scrape(ctx context.Context, combos []scraper.Combo) ([]scraper.Candidate, error)
}

// ContentGenerator produces a (subject, body) pair per lead. Per-lead
// failures surface as sentinel values, not errors.
type ContentGenerator interface {
	Generate(ctx context.Context, lead models.Lead, sender models.SenderConfig, service string) (subject, body string)
}

// MailTransport dials SMTP sessions.
type MailTransport interface {
	Dial() (mailer.Session, error)
	From() string
}

// MailboxDialer opens a mailbox connection for reply analysis.
type MailboxDialer func(server, email, password string) (replies.Mailbox, error)

// ReplyAnalyzer correlates and classifies inbox messages.
type ReplyAnalyzer interface {
	Analyze(ctx context.Context, mailbox replies.Mailbox, pairs []database.EmailLeadPair) error
}

// Adapters bundles the stage collaborators.
type Adapters struct {
	Source      LeadSource
	Generator   ContentGenerator
	Transport   MailTransport
	DialMailbox MailboxDialer
	Correlator  ReplyAnalyzer
}

// Orchestrator runs campaign stages. At most one stage runs per campaign
// at a time; a second trigger fails with ErrCampaignBusy before any
// status mutation.
type Orchestrator struct {
	store      Store
	adapters   Adapters
	apiBaseURL string
	logger     zerolog.Logger

	mu      sync.Mutex
	running map[int64]struct{}
}

// New creates an orchestrator.
func New(store Store, adapters Adapters, apiBaseURL string, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		adapters:   adapters,
		apiBaseURL: apiBaseURL,
		logger:     logger,
		running:    make(map[int64]struct{}),
	}
}

// Scrape runs the lead-scraping stage.
func (o *Orchestrator) Scrape(ctx context.Context, username, campaignName string) error {
	return o.runLocked(ctx, username, campaignName, func(ctx context.Context, user *models.User, c *models.Campaign) error {
		return o.stage(ctx, c, models.StageScrape, func(ctx context.Context) error {
			return o.scrapeBody(ctx, c)
		})
	})
}

// Generate runs the email-generation stage. Destructive: the campaign's
// entire email set is replaced.
func (o *Orchestrator) Generate(ctx context.Context, username, campaignName string) error {
	return o.runLocked(ctx, username, campaignName, func(ctx context.Context, user *models.User, c *models.Campaign) error {
		return o.stage(ctx, c, models.StageGenerate, func(ctx context.Context) error {
			return o.generateBody(ctx, user, c)
		})
	})
}

// Send runs the sending stage. Idempotent for mail already marked Sent.
func (o *Orchestrator) Send(ctx context.Context, username, campaignName string) error {
	return o.runLocked(ctx, username, campaignName, func(ctx context.Context, user *models.User, c *models.Campaign) error {
		return o.stage(ctx, c, models.StageSend, func(ctx context.Context) error {
			return o.sendBody(ctx, user, c)
		})
	})
}

// Analyze runs the reply-analysis stage.
func (o *Orchestrator) Analyze(ctx context.Context, username, campaignName string) error {
	return o.runLocked(ctx, username, campaignName, func(ctx context.Context, user *models.User, c *models.Campaign) error {
		return o.stage(ctx, c, models.StageAnalyze, func(ctx context.Context) error {
			return o.analyzeBody(ctx, user, c)
		})
	})
}

// Run executes all four stages in order, aborting on the first failure.
// The campaign lock is held for the whole composite run.
func (o *Orchestrator) Run(ctx context.Context, username, campaignName string) error {
	return o.runLocked(ctx, username, campaignName, func(ctx context.Context, user *models.User, c *models.Campaign) error {
		steps := []struct {
			stage models.Stage
			body  func(context.Context) error
		}{
			{models.StageScrape, func(ctx context.Context) error { return o.scrapeBody(ctx, c) }},
			{models.StageGenerate, func(ctx context.Context) error { return o.generateBody(ctx, user, c) }},
			{models.StageSend, func(ctx context.Context) error { return o.sendBody(ctx, user, c) }},
			{models.StageAnalyze, func(ctx context.Context) error { return o.analyzeBody(ctx, user, c) }},
		}
		for _, step := range steps {
			if err := o.stage(ctx, c, step.stage, step.body); err != nil {
				return err
			}
		}
		return nil
	})
}

// GenerateAndSend is the two-stage shortcut with the same abort-on-failure
// contract as Run.
func (o *Orchestrator) GenerateAndSend(ctx context.Context, username, campaignName string) error {
	return o.runLocked(ctx, username, campaignName, func(ctx context.Context, user *models.User, c *models.Campaign) error {
		if err := o.stage(ctx, c, models.StageGenerate, func(ctx context.Context) error {
			return o.generateBody(ctx, user, c)
		}); err != nil {
			return err
		}
		return o.stage(ctx, c, models.StageSend, func(ctx context.Context) error {
			return o.sendBody(ctx, user, c)
		})
	})
}

// runLocked resolves the natural key and holds the campaign lock for fn.
// NotFound and Busy surface before any status mutation.
func (o *Orchestrator) runLocked(ctx context.Context, username, campaignName string, fn func(context.Context, *models.User, *models.Campaign) error) error {
	user, err := o.store.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	campaign, err := o.store.GetCampaign(ctx, user.ID, campaignName)
	if err != nil {
		return err
	}

	if !o.acquire(campaign.ID) {
		return fmt.Errorf("campaign %q: %w", campaignName, ErrCampaignBusy)
	}
	defer o.release(campaign.ID)

	return fn(ctx, user, campaign)
}

// stage applies the transition rule: mark in progress, run the body, land
// on Idle or the stage's failure label. The in-progress write happens
// before any adapter call so observers see progress immediately.
func (o *Orchestrator) stage(ctx context.Context, c *models.Campaign, stage models.Stage, body func(context.Context) error) error {
	if err := o.store.UpdateCampaignStatus(ctx, c.ID, models.InProgress(stage)); err != nil {
		return err
	}

	log := o.logger.With().Str("campaign", c.Name).Str("stage", string(stage)).Logger()
	log.Info().Msg("Stage started")

	if err := body(ctx); err != nil {
		log.Error().Err(err).Msg("Stage failed")
		if serr := o.store.UpdateCampaignStatus(ctx, c.ID, models.Failed(stage, err.Error())); serr != nil {
			log.Error().Err(serr).Msg("Failed to record failure status")
		}
		return err
	}

	log.Info().Msg("Stage completed")
	return o.store.UpdateCampaignStatus(ctx, c.ID, models.StatusIdle)
}

// Busy reports whether a stage currently holds the campaign. Best-effort:
// the answer can be stale by the time the caller acts on it.
func (o *Orchestrator) Busy(campaignID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, busy := o.running[campaignID]
	return busy
}

func (o *Orchestrator) acquire(campaignID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.running[campaignID]; busy {
		return false
	}
	o.running[campaignID] = struct{}{}
	return true
}

func (o *Orchestrator) release(campaignID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, campaignID)
}

// scrapeBody expands the campaign's selector product, scrapes candidates
// and inserts the ones not seen before. First occurrence wins, both
// against stored leads and within the batch.
func (o *Orchestrator) scrapeBody(ctx context.Context, c *models.Campaign) error {
	combos := combinations(c.Platforms, c.Industries, c.Locations)
	if len(combos) == 0 {
		o.logger.Info().Str("campaign", c.Name).Msg("No selector combinations to scrape")
		return nil
	}

	candidates, err := o.adapters.Source.Scrape(ctx, combos)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		o.logger.Info().Str("campaign", c.Name).Msg("Scraper found no candidates")
		return nil
	}

	existing, err := o.store.CampaignLeads(ctx, c.ID)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, lead := range existing {
		seen[normalizeEmail(lead.Email)] = struct{}{}
	}

	added := 0
	for _, candidate := range candidates {
		email := normalizeEmail(candidate.Email)
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}

		lead := &models.Lead{
			CampaignID:         c.ID,
			Name:               candidate.Name,
			Email:              email,
			PlatformSource:     candidate.PlatformSource,
			ProfileLink:        candidate.ProfileLink,
			State:              candidate.State,
			Industry:           candidate.Industry,
			ProfileDescription: candidate.ProfileDescription,
		}
		if err := o.store.InsertLead(ctx, lead); err != nil {
			return err
		}
		seen[email] = struct{}{}
		added++
	}

	o.logger.Info().
		Str("campaign", c.Name).
		Int("candidates", len(candidates)).
		Int("new_leads", added).
		Msg("Scrape stage saved leads")
	return nil
}

// generateBody replaces the campaign's email set. Each lead gets content
// from the generator (sentinel on per-lead failure), the row is persisted
// to obtain its id, and the HTML rendering with the id-keyed tracking
// reference is written back.
func (o *Orchestrator) generateBody(ctx context.Context, user *models.User, c *models.Campaign) error {
	sender, err := o.store.GetSenderConfig(ctx, user.ID)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("user %q: %w", user.Username, ErrNoSenderConfig)
	}
	if err != nil {
		return err
	}

	if err := o.store.DeleteCampaignEmails(ctx, c.ID); err != nil {
		return err
	}

	leads, err := o.store.CampaignLeads(ctx, c.ID)
	if err != nil {
		return err
	}
	if len(leads) == 0 {
		o.logger.Info().Str("campaign", c.Name).Msg("No leads to generate emails for")
		return nil
	}

	generated := 0
	for _, lead := range leads {
		// Leads without a usable address get no content; sending could
		// never deliver it
		if normalizeEmail(lead.Email) == "" {
			o.logger.Warn().Int64("lead_id", lead.ID).Msg("Skipping lead without email")
			continue
		}

		subject, body := o.adapters.Generator.Generate(ctx, lead, *sender, c.Service)

		email := &models.EmailContent{
			LeadID:     lead.ID,
			CampaignID: c.ID,
			Subject:    subject,
			Body:       body,
		}
		if err := o.store.InsertEmailContent(ctx, email); err != nil {
			return err
		}

		html := generator.RenderHTML(body, email.ID, o.apiBaseURL)
		if err := o.store.UpdateEmailHTML(ctx, email.ID, html); err != nil {
			return err
		}
		generated++
	}

	o.logger.Info().Str("campaign", c.Name).Int("emails", generated).Msg("Generation stage persisted emails")
	return nil
}

// sendBody delivers every not-yet-sent email over one SMTP session.
// Invalid recipients are marked and skipped; per-message delivery failures
// are recorded and never abort the batch.
func (o *Orchestrator) sendBody(ctx context.Context, user *models.User, c *models.Campaign) error {
	sender, err := o.store.GetSenderConfig(ctx, user.ID)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("user %q: %w", user.Username, ErrNoSenderConfig)
	}
	if err != nil {
		return err
	}

	pairs, err := o.store.UnsentEmails(ctx, c.ID)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		o.logger.Info().Str("campaign", c.Name).Msg("No unsent emails for campaign")
		return nil
	}

	replyTo := sender.SenderEmail
	if replyTo == "" {
		replyTo = o.adapters.Transport.From()
	}

	session, err := o.adapters.Transport.Dial()
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	sent, failed := 0, 0
	for _, pair := range pairs {
		recipient := normalizeEmail(pair.Lead.Email)
		if recipient == "" || !strings.Contains(recipient, "@") {
			if err := o.store.UpdateDeliveryStatus(ctx, pair.Email.ID, models.DeliveryInvalid); err != nil {
				return err
			}
			continue
		}

		sendErr := session.Send(mailer.Message{
			To:       recipient,
			ReplyTo:  replyTo,
			Subject:  pair.Email.Subject,
			TextBody: pair.Email.Body,
			HTMLBody: pair.Email.HTML,
		})

		status := models.DeliverySent
		if sendErr != nil {
			status = "Failed: " + sendErr.Error()
			failed++
			o.logger.Warn().Err(sendErr).Str("recipient", recipient).Msg("Delivery failed")
		} else {
			sent++
		}
		if err := o.store.UpdateDeliveryStatus(ctx, pair.Email.ID, status); err != nil {
			return err
		}
	}

	o.logger.Info().
		Str("campaign", c.Name).
		Int("sent", sent).
		Int("failed", failed).
		Msg("Sending stage finished")
	return nil
}

// analyzeBody opens the user's mailbox and hands correlation to the reply
// correlator.
func (o *Orchestrator) analyzeBody(ctx context.Context, user *models.User, c *models.Campaign) error {
	sender, err := o.store.GetSenderConfig(ctx, user.ID)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("user %q: %w", user.Username, ErrNoSenderConfig)
	}
	if err != nil {
		return err
	}
	if sender.IMAPServer == "" || sender.IMAPEmail == "" || sender.IMAPPassword == "" {
		return fmt.Errorf("user %q: %w", user.Username, ErrNoIMAPCredentials)
	}

	pairs, err := o.store.CampaignEmailLeadPairs(ctx, c.ID)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		o.logger.Info().Str("campaign", c.Name).Msg("No emails to correlate replies against")
		return nil
	}

	mailbox, err := o.adapters.DialMailbox(sender.IMAPServer, sender.IMAPEmail, sender.IMAPPassword)
	if err != nil {
		return err
	}
	defer func() { _ = mailbox.Close() }()

	return o.adapters.Correlator.Analyze(ctx, mailbox, pairs)
}

// combinations builds the cartesian product of the comma-delimited
// selector sets.
func combinations(platforms, industries, locations string) []scraper.Combo {
	var combos []scraper.Combo
	for _, platform := range splitSelector(platforms) {
		for _, industry := range splitSelector(industries) {
			for _, location := range splitSelector(locations) {
				combos = append(combos, scraper.Combo{
					Platform: platform,
					Industry: industry,
					Location: location,
				})
			}
		}
	}
	return combos
}

func splitSelector(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
