package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"coldreach/internal/crypto"
	"coldreach/internal/models"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a natural-key lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store persists campaign state. Lead contact details, sender identity and
// message bodies go through the field codec so they are encrypted at rest;
// callers only ever see plaintext.
type Store struct {
	db    *sqlx.DB
	codec *crypto.Codec
}

// NewStore creates a store over an open connection.
func NewStore(db *sqlx.DB, codec *crypto.Codec) *Store {
	return &Store{db: db, codec: codec}
}

// DB exposes the underlying connection for health probes.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// EmailLeadPair is one row of the email_contents/leads join used by the
// sending and reply-analysis stages.
type EmailLeadPair struct {
	Email models.EmailContent
	Lead  models.Lead
}

// CreateUser inserts a user and sets its ID.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	name, err := s.codec.Encrypt(user.Name)
	if err != nil {
		return err
	}
	email, err := s.codec.Encrypt(user.Email)
	if err != nil {
		return err
	}

	id, err := s.insert(ctx,
		`INSERT INTO users (username, name, email) VALUES (?, ?, ?)`,
		user.Username, name, email)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id
	return nil
}

// GetUserByUsername resolves a user by its unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		s.db.Rebind(`SELECT id, username, name, email FROM users WHERE username = ?`), username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.Name, err = s.codec.Decrypt(user.Name); err != nil {
		return nil, err
	}
	if user.Email, err = s.codec.Decrypt(user.Email); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user; campaigns, leads, emails and the sender
// config cascade.
func (s *Store) DeleteUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM users WHERE id = ?`), userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// CreateCampaign inserts a campaign and sets its ID. The (user, name) pair
// is unique; a duplicate insert fails on the schema constraint.
func (s *Store) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	if c.Status == "" {
		c.Status = models.StatusIdle.String()
	}
	id, err := s.insert(ctx,
		`INSERT INTO campaigns (user_id, name, service, industries, locations, platforms, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.Name, c.Service, c.Industries, c.Locations, c.Platforms, c.Status)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	c.ID = id
	return nil
}

// GetCampaign resolves a campaign by its natural key (owner, name).
func (s *Store) GetCampaign(ctx context.Context, userID int64, name string) (*models.Campaign, error) {
	var c models.Campaign
	err := s.db.GetContext(ctx, &c, s.db.Rebind(
		`SELECT id, user_id, name, service, industries, locations, platforms, status, date_created
		 FROM campaigns WHERE user_id = ? AND name = ?`), userID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("campaign %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &c, nil
}

// UpdateCampaignStatus persists a state-machine transition.
func (s *Store) UpdateCampaignStatus(ctx context.Context, campaignID int64, status models.Status) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE campaigns SET status = ? WHERE id = ?`), status.String(), campaignID)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}
	return nil
}

// DeleteCampaign removes a campaign; its leads and emails cascade.
func (s *Store) DeleteCampaign(ctx context.Context, campaignID int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM campaigns WHERE id = ?`), campaignID)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	return nil
}

// InsertLead stores a new lead and sets its ID.
func (s *Store) InsertLead(ctx context.Context, lead *models.Lead) error {
	name, err := s.codec.Encrypt(lead.Name)
	if err != nil {
		return err
	}
	email, err := s.codec.Encrypt(lead.Email)
	if err != nil {
		return err
	}
	link, err := s.codec.Encrypt(lead.ProfileLink)
	if err != nil {
		return err
	}
	desc, err := s.codec.Encrypt(lead.ProfileDescription)
	if err != nil {
		return err
	}

	id, err := s.insert(ctx,
		`INSERT INTO leads (campaign_id, name, email, platform_source, profile_link, state, industry, profile_description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.CampaignID, name, email, lead.PlatformSource, link, lead.State, lead.Industry, desc)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	lead.ID = id
	return nil
}

// CampaignLeads returns all leads for a campaign with contact details
// decrypted.
func (s *Store) CampaignLeads(ctx context.Context, campaignID int64) ([]models.Lead, error) {
	var leads []models.Lead
	err := s.db.SelectContext(ctx, &leads, s.db.Rebind(
		`SELECT id, campaign_id, name, email, platform_source, profile_link, state, industry, profile_description
		 FROM leads WHERE campaign_id = ? ORDER BY id`), campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}

	for i := range leads {
		if err := s.decryptLead(&leads[i]); err != nil {
			return nil, err
		}
	}
	return leads, nil
}

// DeleteCampaignEmails removes every EmailContent row for a campaign.
// Generation is destructive: the whole email set is replaced on each run.
func (s *Store) DeleteCampaignEmails(ctx context.Context, campaignID int64) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM email_contents WHERE campaign_id = ?`), campaignID)
	if err != nil {
		return fmt.Errorf("failed to delete campaign emails: %w", err)
	}
	return nil
}

// InsertEmailContent stores a generated message and sets its ID. The row
// must exist before its HTML can be rendered, because the open-tracking
// reference embeds the row id.
func (s *Store) InsertEmailContent(ctx context.Context, e *models.EmailContent) error {
	subject, err := s.codec.Encrypt(e.Subject)
	if err != nil {
		return err
	}
	body, err := s.codec.Encrypt(e.Body)
	if err != nil {
		return err
	}

	id, err := s.insert(ctx,
		`INSERT INTO email_contents (lead_id, campaign_id, subject, body) VALUES (?, ?, ?, ?)`,
		e.LeadID, e.CampaignID, subject, body)
	if err != nil {
		return fmt.Errorf("failed to insert email content: %w", err)
	}
	e.ID = id
	return nil
}

// UpdateEmailHTML writes the rendered HTML body back onto an email row.
func (s *Store) UpdateEmailHTML(ctx context.Context, emailID int64, html string) error {
	enc, err := s.codec.Encrypt(html)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE email_contents SET html = ? WHERE id = ?`), enc, emailID)
	if err != nil {
		return fmt.Errorf("failed to update email html: %w", err)
	}
	return nil
}

// UpdateDeliveryStatus records the outcome of one send attempt.
func (s *Store) UpdateDeliveryStatus(ctx context.Context, emailID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE email_contents SET delivery_status = ? WHERE id = ?`), status, emailID)
	if err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
	}
	return nil
}

// UpdateReply overwrites the reply text and sentiment for an email. Only
// the most recent matched reply is kept.
func (s *Store) UpdateReply(ctx context.Context, emailID int64, replyText, sentiment string) error {
	enc, err := s.codec.Encrypt(replyText)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE email_contents SET reply_text = ?, reply_sentiment = ? WHERE id = ?`),
		enc, sentiment, emailID)
	if err != nil {
		return fmt.Errorf("failed to update reply: %w", err)
	}
	return nil
}

// MarkOpened sets the opened flag. The flag is monotonic: the first call
// flips it, later calls are no-ops. Returns whether this call flipped it.
func (s *Store) MarkOpened(ctx context.Context, emailID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE email_contents SET opened = TRUE WHERE id = ? AND opened = FALSE`), emailID)
	if err != nil {
		return false, fmt.Errorf("failed to mark opened: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// UnsentEmails returns (email, lead) pairs for a campaign whose delivery
// status is not "Sent". Re-running the sending stage never re-sends
// delivered mail.
func (s *Store) UnsentEmails(ctx context.Context, campaignID int64) ([]EmailLeadPair, error) {
	return s.selectEmailLeadPairs(ctx, campaignID,
		`AND (e.delivery_status IS NULL OR e.delivery_status != '`+models.DeliverySent+`')`)
}

// CampaignEmailLeadPairs returns every (email, lead) pair for a campaign.
// One join instead of per-lead lookups.
func (s *Store) CampaignEmailLeadPairs(ctx context.Context, campaignID int64) ([]EmailLeadPair, error) {
	return s.selectEmailLeadPairs(ctx, campaignID, "")
}

func (s *Store) selectEmailLeadPairs(ctx context.Context, campaignID int64, filter string) ([]EmailLeadPair, error) {
	query := `SELECT
			e.id AS email_id, e.lead_id, e.campaign_id, e.subject, e.body, e.html,
			e.delivery_status, e.opened, e.reply_text, e.reply_sentiment,
			l.name AS lead_name, l.email AS lead_email, l.platform_source,
			l.profile_link, l.state, l.industry, l.profile_description
		FROM email_contents e
		JOIN leads l ON e.lead_id = l.id
		WHERE e.campaign_id = ? ` + filter + ` ORDER BY e.id`

	type row struct {
		EmailID            int64          `db:"email_id"`
		LeadID             int64          `db:"lead_id"`
		CampaignID         int64          `db:"campaign_id"`
		Subject            string         `db:"subject"`
		Body               string         `db:"body"`
		HTML               sql.NullString `db:"html"`
		DeliveryStatus     sql.NullString `db:"delivery_status"`
		Opened             bool           `db:"opened"`
		ReplyText          sql.NullString `db:"reply_text"`
		ReplySentiment     sql.NullString `db:"reply_sentiment"`
		LeadName           string         `db:"lead_name"`
		LeadEmail          string         `db:"lead_email"`
		PlatformSource     string         `db:"platform_source"`
		ProfileLink        string         `db:"profile_link"`
		State              string         `db:"state"`
		Industry           string         `db:"industry"`
		ProfileDescription string         `db:"profile_description"`
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), campaignID); err != nil {
		return nil, fmt.Errorf("failed to join emails and leads: %w", err)
	}

	pairs := make([]EmailLeadPair, 0, len(rows))
	for _, r := range rows {
		pair := EmailLeadPair{
			Email: models.EmailContent{
				ID:             r.EmailID,
				LeadID:         r.LeadID,
				CampaignID:     r.CampaignID,
				DeliveryStatus: r.DeliveryStatus,
				Opened:         r.Opened,
				ReplySentiment: r.ReplySentiment,
			},
			Lead: models.Lead{
				ID:                 r.LeadID,
				CampaignID:         r.CampaignID,
				Name:               r.LeadName,
				Email:              r.LeadEmail,
				PlatformSource:     r.PlatformSource,
				ProfileLink:        r.ProfileLink,
				State:              r.State,
				Industry:           r.Industry,
				ProfileDescription: r.ProfileDescription,
			},
		}

		var err error
		if pair.Email.Subject, err = s.codec.Decrypt(r.Subject); err != nil {
			return nil, err
		}
		if pair.Email.Body, err = s.codec.Decrypt(r.Body); err != nil {
			return nil, err
		}
		if r.HTML.Valid {
			html, err := s.codec.Decrypt(r.HTML.String)
			if err != nil {
				return nil, err
			}
			pair.Email.HTML = html
		}
		if r.ReplyText.Valid {
			text, err := s.codec.Decrypt(r.ReplyText.String)
			if err != nil {
				return nil, err
			}
			pair.Email.ReplyText = sql.NullString{String: text, Valid: true}
		}
		if err := s.decryptLead(&pair.Lead); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// SaveSenderConfig inserts or replaces a user's sender configuration.
func (s *Store) SaveSenderConfig(ctx context.Context, sc *models.SenderConfig) error {
	enc := make([]string, 7)
	for i, plain := range []string{
		sc.SenderName, sc.SenderEmail, sc.CompanyName,
		sc.Website, sc.Phone, sc.IMAPEmail, sc.IMAPPassword,
	} {
		value, err := s.codec.Encrypt(plain)
		if err != nil {
			return err
		}
		enc[i] = value
	}

	if _, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM sender_configs WHERE user_id = ?`), sc.UserID); err != nil {
		return fmt.Errorf("failed to replace sender config: %w", err)
	}

	id, err := s.insert(ctx,
		`INSERT INTO sender_configs (user_id, sender_name, sender_email, company_name, website, phone, imap_server, imap_email, imap_password)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.UserID, enc[0], enc[1], enc[2], enc[3], enc[4], sc.IMAPServer, enc[5], enc[6])
	if err != nil {
		return fmt.Errorf("failed to save sender config: %w", err)
	}
	sc.ID = id
	return nil
}

// GetSenderConfig returns a user's sender configuration, decrypted.
func (s *Store) GetSenderConfig(ctx context.Context, userID int64) (*models.SenderConfig, error) {
	var sc models.SenderConfig
	err := s.db.GetContext(ctx, &sc, s.db.Rebind(
		`SELECT id, user_id, sender_name, sender_email, company_name, website, phone, imap_server, imap_email, imap_password
		 FROM sender_configs WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sender config: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sender config: %w", err)
	}

	for _, f := range []*string{
		&sc.SenderName, &sc.SenderEmail, &sc.CompanyName,
		&sc.Website, &sc.Phone, &sc.IMAPEmail, &sc.IMAPPassword,
	} {
		dec, err := s.codec.Decrypt(*f)
		if err != nil {
			return nil, err
		}
		*f = dec
	}
	return &sc, nil
}

func (s *Store) decryptLead(lead *models.Lead) error {
	var err error
	if lead.Name, err = s.codec.Decrypt(lead.Name); err != nil {
		return err
	}
	if lead.Email, err = s.codec.Decrypt(lead.Email); err != nil {
		return err
	}
	if lead.ProfileLink, err = s.codec.Decrypt(lead.ProfileLink); err != nil {
		return err
	}
	if lead.ProfileDescription, err = s.codec.Decrypt(lead.ProfileDescription); err != nil {
		return err
	}
	return nil
}

// insert runs an INSERT and returns the new row id, papering over the
// LastInsertId/RETURNING split between drivers.
func (s *Store) insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	if s.db.DriverName() == driverPostgres {
		var id int64
		err := s.db.QueryRowxContext(ctx, s.db.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
