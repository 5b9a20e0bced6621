package models

import (
	"database/sql"
	"time"
)

// User owns campaigns and a single sender configuration.
type User struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
	Name     string `db:"name"`
	Email    string `db:"email"`
}

// Campaign is a named unit of outreach work. The name is unique per owner.
// Industries, locations and platforms are comma-delimited selector sets;
// the scraping stage expands their cartesian product.
type Campaign struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Name        string    `db:"name"`
	Service     string    `db:"service"`
	Industries  string    `db:"industries"`
	Locations   string    `db:"locations"`
	Platforms   string    `db:"platforms"`
	Status      string    `db:"status"`
	DateCreated time.Time `db:"date_created"`
}

// Lead is a prospective contact discovered for a campaign. Email is stored
// trimmed and lower-cased and is the dedup key within a campaign.
type Lead struct {
	ID                 int64  `db:"id"`
	CampaignID         int64  `db:"campaign_id"`
	Name               string `db:"name"`
	Email              string `db:"email"`
	PlatformSource     string `db:"platform_source"`
	ProfileLink        string `db:"profile_link"`
	State              string `db:"state"`
	Industry           string `db:"industry"`
	ProfileDescription string `db:"profile_description"`
}

// EmailContent is one generated outreach message for a lead.
type EmailContent struct {
	ID             int64          `db:"id"`
	LeadID         int64          `db:"lead_id"`
	CampaignID     int64          `db:"campaign_id"`
	Subject        string         `db:"subject"`
	Body           string         `db:"body"`
	HTML           string         `db:"html"`
	CreatedAt      time.Time      `db:"created_at"`
	DeliveryStatus sql.NullString `db:"delivery_status"`
	Opened         bool           `db:"opened"`
	ReplyText      sql.NullString `db:"reply_text"`
	ReplySentiment sql.NullString `db:"reply_sentiment"`
}

// SenderConfig holds a user's outbound identity plus the mailbox credentials
// used by the reply-analysis stage.
type SenderConfig struct {
	ID           int64  `db:"id"`
	UserID       int64  `db:"user_id"`
	SenderName   string `db:"sender_name"`
	SenderEmail  string `db:"sender_email"`
	CompanyName  string `db:"company_name"`
	Website      string `db:"website"`
	Phone        string `db:"phone"`
	IMAPServer   string `db:"imap_server"`
	IMAPEmail    string `db:"imap_email"`
	IMAPPassword string `db:"imap_password"`
}

// Delivery status values for EmailContent.
const (
	DeliverySent    = "Sent"
	DeliveryInvalid = "Invalid Email"
)

// Reply sentiment labels produced by the classifier.
const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
	SentimentUnknown  = "Unknown"
)
