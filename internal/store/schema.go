package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

// notifyTriggerTemplate fires pg_notify on the configured channel whenever
// a newly inserted transaction's payload begins with the K-protocol magic
// bytes 0x6b 0x3a 0x31 0x3a ("k:1:"), per §6.3. The channel name is
// interpolated from config.ProcessingConfig.ChannelName so the trigger
// always matches what internal/listener subscribes to.
const notifyTriggerTemplate = `
CREATE OR REPLACE FUNCTION notify_k_transaction() RETURNS TRIGGER AS $$ BEGIN IF NEW.payload IS NOT NULL AND substr(encode(NEW.payload, 'hex'), 1, 8) = '6b3a313a' THEN PERFORM pg_notify('%s', encode(NEW.transaction_id, 'hex')); END IF; RETURN NEW; END; $$ LANGUAGE plpgsql;
CREATE TRIGGER transaction_notify_trigger AFTER INSERT ON transactions FOR EACH ROW EXECUTE FUNCTION notify_k_transaction();
`

// validChannelName guards the fmt.Sprintf interpolation above: channel is
// operator-supplied (a CLI flag, not user input at request time), but this
// still keeps it to the identifier shape Postgres's NOTIFY/LISTEN expects
// rather than trusting it to never contain a stray quote.
var validChannelName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// createTables is the current §3.3 schema: a unified k_contents table for
// post/reply/quote, separate tables for broadcast/vote/block/follow, and
// the two secondary-index tables for mentions and hashtags.
const createTables = `
CREATE TABLE IF NOT EXISTS k_contents (
	transaction_id bytea PRIMARY KEY,
	block_time bigint NOT NULL,
	sender_pubkey bytea NOT NULL,
	sender_signature bytea NOT NULL UNIQUE,
	message_b64 text NOT NULL,
	content_type text NOT NULL CHECK (content_type IN ('post', 'reply', 'quote')),
	referenced_content_id bytea
);

CREATE TABLE IF NOT EXISTS k_broadcasts (
	transaction_id bytea PRIMARY KEY,
	block_time bigint NOT NULL,
	sender_pubkey bytea NOT NULL,
	sender_signature bytea NOT NULL,
	nickname_b64 text NOT NULL,
	profile_image_b64 text,
	message_b64 text NOT NULL
);

CREATE TABLE IF NOT EXISTS k_votes (
	transaction_id bytea PRIMARY KEY,
	block_time bigint NOT NULL,
	sender_pubkey bytea NOT NULL,
	sender_signature bytea NOT NULL UNIQUE,
	post_id bytea NOT NULL,
	vote text NOT NULL CHECK (vote IN ('upvote', 'downvote'))
);

CREATE TABLE IF NOT EXISTS k_blocks (
	transaction_id bytea PRIMARY KEY,
	block_time bigint NOT NULL,
	sender_pubkey bytea NOT NULL,
	sender_signature bytea NOT NULL,
	blocking_action text NOT NULL CHECK (blocking_action IN ('block', 'unblock')),
	blocked_user_pubkey bytea NOT NULL,
	UNIQUE (sender_pubkey, blocked_user_pubkey)
);

CREATE TABLE IF NOT EXISTS k_follows (
	transaction_id bytea PRIMARY KEY,
	block_time bigint NOT NULL,
	sender_pubkey bytea NOT NULL,
	sender_signature bytea NOT NULL,
	following_action text NOT NULL CHECK (following_action IN ('follow', 'unfollow')),
	followed_user_pubkey bytea NOT NULL,
	UNIQUE (sender_pubkey, followed_user_pubkey)
);

CREATE TABLE IF NOT EXISTS k_mentions (
	id bigserial PRIMARY KEY,
	content_id bytea NOT NULL,
	content_type text NOT NULL CHECK (content_type IN ('post', 'reply', 'quote', 'vote')),
	mentioned_pubkey bytea NOT NULL,
	block_time bigint NOT NULL,
	sender_pubkey bytea NOT NULL
);

CREATE TABLE IF NOT EXISTS k_hashtags (
	id bigserial PRIMARY KEY,
	sender_pubkey bytea NOT NULL,
	content_id bytea NOT NULL,
	block_time bigint NOT NULL,
	hashtag text NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_k_contents_sender_pubkey ON k_contents (sender_pubkey);
CREATE INDEX IF NOT EXISTS idx_k_contents_block_time ON k_contents (block_time);
CREATE INDEX IF NOT EXISTS idx_k_contents_referenced_content_id ON k_contents (referenced_content_id);
CREATE INDEX IF NOT EXISTS idx_k_broadcasts_sender_pubkey ON k_broadcasts (sender_pubkey);
CREATE INDEX IF NOT EXISTS idx_k_votes_post_id ON k_votes (post_id);
CREATE INDEX IF NOT EXISTS idx_k_votes_sender_pubkey ON k_votes (sender_pubkey);
CREATE INDEX IF NOT EXISTS idx_k_blocks_sender_blocked ON k_blocks (sender_pubkey, blocked_user_pubkey);
CREATE INDEX IF NOT EXISTS idx_k_follows_sender_followed ON k_follows (sender_pubkey, followed_user_pubkey);
CREATE INDEX IF NOT EXISTS idx_k_mentions_content_id ON k_mentions (content_id);
CREATE INDEX IF NOT EXISTS idx_k_mentions_mentioned_pubkey ON k_mentions (mentioned_pubkey);
CREATE INDEX IF NOT EXISTS idx_k_hashtags_hashtag ON k_hashtags (hashtag);
CREATE INDEX IF NOT EXISTS idx_k_hashtags_content_id ON k_hashtags (content_id);
`

const dropTables = `
DROP TABLE IF EXISTS k_hashtags;
DROP TABLE IF EXISTS k_mentions;
DROP TABLE IF EXISTS k_follows;
DROP TABLE IF EXISTS k_blocks;
DROP TABLE IF EXISTS k_votes;
DROP TABLE IF EXISTS k_broadcasts;
DROP TABLE IF EXISTS k_contents;
`

// Bootstrap ensures the NOTIFY trigger and the materialized tables exist,
// per C9: check first, create only if missing. If recreate is true, the
// target tables (never the transactions table itself, and never the
// trigger) are dropped and rebuilt unconditionally. channel must be the
// same notification channel name internal/listener subscribes to.
func (s *Store) Bootstrap(ctx context.Context, channel string, recreate bool) error {
	if !validChannelName.MatchString(channel) {
		return errors.Errorf("invalid notification channel name: %q", channel)
	}

	if recreate {
		logger.Warnw("recreating K protocol tables, existing rows will be lost")
		if err := s.execMigration(ctx, dropTables); err != nil {
			return errors.Wrap(err, "drop k protocol tables")
		}
	}

	triggerExists, err := s.triggerExists(ctx)
	if err != nil {
		return errors.Wrap(err, "check trigger existence")
	}
	if !triggerExists {
		logger.Infow("transaction notify trigger not found, creating it", "channel", channel)
		if err := s.execMigration(ctx, fmt.Sprintf(notifyTriggerTemplate, channel)); err != nil {
			return errors.Wrap(err, "create notify trigger")
		}
	}

	tablesExist, err := s.tablesExist(ctx)
	if err != nil {
		return errors.Wrap(err, "check table existence")
	}
	if recreate || !tablesExist {
		logger.Infow("k protocol tables not found, creating them")
		if err := s.execMigration(ctx, createTables); err != nil {
			return errors.Wrap(err, "create k protocol tables")
		}
	}

	return nil
}

func (s *Store) triggerExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_trigger WHERE tgname = 'transaction_notify_trigger')`,
	).Scan(&exists)
	return exists, err
}

func (s *Store) tablesExist(ctx context.Context) (bool, error) {
	for _, table := range []string{"k_contents", "k_broadcasts", "k_votes", "k_blocks", "k_follows", "k_mentions", "k_hashtags"} {
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
			table,
		).Scan(&exists)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, nil
		}
	}
	return true, nil
}

// execMigration runs a multi-statement SQL block inside one transaction,
// splitting on ';' at end-of-line the way a hand-maintained migration file
// is laid out, rather than requiring the driver to support multi-statement
// execution in a single Exec call.
func (s *Store) execMigration(ctx context.Context, sqlText string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(sqlText) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "executing statement: %s", truncate(stmt, 100))
		}
	}

	return tx.Commit()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
