// Package replies matches inbound mailbox messages to outbound leads and
// classifies their sentiment.
package replies

import (
	"context"
	"sort"
	"strings"

	"coldreach/internal/database"

	"github.com/rs/zerolog"
)

// Reply is one fetched inbound message.
type Reply struct {
	Sender string
	Text   string
}

// Mailbox is the mailbox capability the correlator consumes. The concrete
// implementation is an IMAP connection.
type Mailbox interface {
	SearchFrom(addr string) ([]uint32, error)
	Fetch(id uint32) (*Reply, error)
	Close() error
}

// Classifier maps reply text to a sentiment label. It never fails; an
// unclassifiable reply yields a fallback label.
type Classifier interface {
	Classify(ctx context.Context, replyText string) string
}

// ReplyStore persists the correlation result.
type ReplyStore interface {
	UpdateReply(ctx context.Context, emailID int64, replyText, sentiment string) error
}

// Correlator drives one reply-analysis pass over an open mailbox.
type Correlator struct {
	classifier Classifier
	store      ReplyStore
	logger     zerolog.Logger
}

// NewCorrelator creates a correlator.
func NewCorrelator(classifier Classifier, store ReplyStore, logger zerolog.Logger) *Correlator {
	return &Correlator{classifier: classifier, store: store, logger: logger}
}

// Analyze correlates inbox messages against the campaign's (email, lead)
// pairs and persists reply text and sentiment for every match.
//
// Per-address search failures and per-message decode failures are logged
// and skipped. Messages from unknown senders are ignored. Only store
// errors abort the pass.
func (c *Correlator) Analyze(ctx context.Context, mailbox Mailbox, pairs []database.EmailLeadPair) error {
	leadMap := buildLeadMap(pairs)
	if len(leadMap) == 0 {
		c.logger.Info().Msg("No leads with email addresses to correlate")
		return nil
	}

	seen := make(map[uint32]struct{})
	var ids []uint32
	for addr := range leadMap {
		found, err := mailbox.SearchFrom(addr)
		if err != nil {
			c.logger.Warn().Err(err).Str("address", addr).Msg("Mailbox search failed, skipping address")
			continue
		}
		for _, id := range found {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		c.logger.Info().Msg("No replies found for campaign leads")
		return nil
	}

	// Ascending UID order, so when a lead replied more than once the
	// newest message is persisted last and wins the overwrite
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		reply, err := mailbox.Fetch(id)
		if err != nil {
			c.logger.Warn().Err(err).Uint32("message_id", id).Msg("Failed to fetch reply, skipping")
			continue
		}

		pair, ok := leadMap[strings.ToLower(reply.Sender)]
		if !ok {
			c.logger.Info().Str("sender", reply.Sender).Msg("Reply from unknown sender, ignoring")
			continue
		}

		sentiment := c.classifier.Classify(ctx, reply.Text)
		if err := c.store.UpdateReply(ctx, pair.Email.ID, reply.Text, sentiment); err != nil {
			return err
		}

		c.logger.Info().
			Str("sender", reply.Sender).
			Str("sentiment", sentiment).
			Msg("Reply classified")
	}

	return nil
}

// buildLeadMap keys every (email, lead) pair by the lead's normalized
// address. Later pairs for the same address win, matching the overwrite
// semantics of reply persistence.
func buildLeadMap(pairs []database.EmailLeadPair) map[string]database.EmailLeadPair {
	leadMap := make(map[string]database.EmailLeadPair, len(pairs))
	for _, pair := range pairs {
		if pair.Lead.Email == "" {
			continue
		}
		leadMap[strings.ToLower(pair.Lead.Email)] = pair
	}
	return leadMap
}
