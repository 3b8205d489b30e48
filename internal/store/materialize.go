package store

import (
	"context"
	"encoding/hex"

	"github.com/lib/pq"

	"github.com/thesheepcat/k-transaction-processor/internal/hashtag"
	"github.com/thesheepcat/k-transaction-processor/internal/kprotocol"
	"github.com/thesheepcat/k-transaction-processor/internal/perrors"
)

// Materialize runs the one-statement atomic write for a single action, per
// §4.4. txIDHex is the transaction id the action arrived in, blockTime is
// already defaulted to 0 by the caller if the source row had none.
func (s *Store) Materialize(ctx context.Context, action kprotocol.Action, txIDHex string, blockTime int64) error {
	txID, err := decodeHex(txIDHex, "transaction id")
	if err != nil {
		return err
	}
	senderPubkey, err := decodeHex(action.SenderPubkeyHex(), "sender pubkey")
	if err != nil {
		return err
	}
	senderSig, err := decodeHex(action.SenderSignatureHex(), "sender signature")
	if err != nil {
		return err
	}

	switch a := action.(type) {
	case *kprotocol.Broadcast:
		return s.materializeBroadcast(ctx, txID, blockTime, senderPubkey, senderSig, a)
	case *kprotocol.Post:
		return s.materializeContent(ctx, "post", txID, blockTime, senderPubkey, senderSig, a.MessageB64, nil, a.MentionedPubkeys)
	case *kprotocol.Reply:
		postID, err := decodeHex(a.PostID, "post id")
		if err != nil {
			return err
		}
		return s.materializeContent(ctx, "reply", txID, blockTime, senderPubkey, senderSig, a.MessageB64, postID, a.MentionedPubkeys)
	case *kprotocol.Quote:
		contentID, err := decodeHex(a.ContentID, "content id")
		if err != nil {
			return err
		}
		return s.materializeContent(ctx, "quote", txID, blockTime, senderPubkey, senderSig, a.MessageB64, contentID, []string{a.MentionedPubkey})
	case *kprotocol.VoteAction:
		return s.materializeVote(ctx, txID, blockTime, senderPubkey, senderSig, a)
	case *kprotocol.BlockAction:
		return s.materializeBlock(ctx, txID, blockTime, senderPubkey, senderSig, a)
	case *kprotocol.FollowAction:
		return s.materializeFollow(ctx, txID, blockTime, senderPubkey, senderSig, a)
	case *kprotocol.Unknown:
		logger.Warnw("dropping unknown action kind", "name", a.Name)
		return nil
	default:
		logger.Warnw("dropping action of unrecognized Go type")
		return nil
	}
}

func decodeHex(s, field string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, perrors.Wrap(perrors.ClassData, err, "decode "+field)
	}
	return b, nil
}

// materializeContent implements the post/reply/quote branch of §4.4: one
// insert into k_contents gated by ON CONFLICT(sender_signature), and, only
// when that insert produced a row, the dependent k_mentions and k_hashtags
// rows. mentionedHex may overlap in meaning with a quote's single
// mentioned pubkey (passed as a one-element slice) or a post/reply's list.
func (s *Store) materializeContent(
	ctx context.Context,
	contentType string,
	txID []byte,
	blockTime int64,
	senderPubkey, senderSig []byte,
	messageB64 string,
	referencedContentID []byte,
	mentionedHex []string,
) error {
	mentioned := make([][]byte, 0, len(mentionedHex))
	for _, h := range mentionedHex {
		decoded, err := decodeHex(h, "mentioned pubkey")
		if err != nil {
			return err
		}
		mentioned = append(mentioned, decoded)
	}

	tags := hashtag.Slice(hashtag.Extract(messageB64))

	var query string
	args := []interface{}{txID, blockTime, senderPubkey, senderSig, messageB64, referencedContentID}

	switch {
	case len(mentioned) == 0 && len(tags) == 0:
		query = `
			INSERT INTO k_contents (transaction_id, block_time, sender_pubkey, sender_signature, message_b64, content_type, referenced_content_id)
			VALUES ($1, $2, $3, $4, $5, '` + contentType + `', $6)
			ON CONFLICT (sender_signature) DO NOTHING
		`
	case len(mentioned) == 0:
		query = `
			WITH parent_insert AS (
				INSERT INTO k_contents (transaction_id, block_time, sender_pubkey, sender_signature, message_b64, content_type, referenced_content_id)
				VALUES ($1, $2, $3, $4, $5, '` + contentType + `', $6)
				ON CONFLICT (sender_signature) DO NOTHING
				RETURNING transaction_id, block_time, sender_pubkey
			)
			INSERT INTO k_hashtags (sender_pubkey, content_id, block_time, hashtag)
			SELECT pi.sender_pubkey, pi.transaction_id, pi.block_time, unnest($7::text[])
			FROM parent_insert pi
		`
		args = append(args, pq.Array(tags))
	case len(tags) == 0:
		query = `
			WITH parent_insert AS (
				INSERT INTO k_contents (transaction_id, block_time, sender_pubkey, sender_signature, message_b64, content_type, referenced_content_id)
				VALUES ($1, $2, $3, $4, $5, '` + contentType + `', $6)
				ON CONFLICT (sender_signature) DO NOTHING
				RETURNING transaction_id, block_time, sender_pubkey
			)
			INSERT INTO k_mentions (content_id, content_type, mentioned_pubkey, block_time, sender_pubkey)
			SELECT pi.transaction_id, '` + contentType + `', unnest($7::bytea[]), pi.block_time, pi.sender_pubkey
			FROM parent_insert pi
		`
		args = append(args, pq.Array(mentioned))
	default:
		query = `
			WITH parent_insert AS (
				INSERT INTO k_contents (transaction_id, block_time, sender_pubkey, sender_signature, message_b64, content_type, referenced_content_id)
				VALUES ($1, $2, $3, $4, $5, '` + contentType + `', $6)
				ON CONFLICT (sender_signature) DO NOTHING
				RETURNING transaction_id, block_time, sender_pubkey
			),
			mentions_insert AS (
				INSERT INTO k_mentions (content_id, content_type, mentioned_pubkey, block_time, sender_pubkey)
				SELECT pi.transaction_id, '` + contentType + `', unnest($7::bytea[]), pi.block_time, pi.sender_pubkey
				FROM parent_insert pi
				RETURNING 1
			)
			INSERT INTO k_hashtags (sender_pubkey, content_id, block_time, hashtag)
			SELECT pi.sender_pubkey, pi.transaction_id, pi.block_time, unnest($8::text[])
			FROM parent_insert pi
		`
		args = append(args, pq.Array(mentioned), pq.Array(tags))
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return perrors.Wrap(perrors.ClassTransient, err, "materialize "+contentType)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		logger.Debugw("content already materialized, skipping", "content_type", contentType, "transaction_id", txIDHexOf(txID))
	}
	return nil
}

func (s *Store) materializeVote(ctx context.Context, txID []byte, blockTime int64, senderPubkey, senderSig []byte, a *kprotocol.VoteAction) error {
	postID, err := decodeHex(a.PostID, "post id")
	if err != nil {
		return err
	}
	mentioned, err := decodeHex(a.MentionedPubkey, "mentioned pubkey")
	if err != nil {
		return err
	}

	const query = `
		WITH parent_insert AS (
			INSERT INTO k_votes (transaction_id, block_time, sender_pubkey, sender_signature, post_id, vote)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (sender_signature) DO NOTHING
			RETURNING transaction_id, block_time, sender_pubkey
		)
		INSERT INTO k_mentions (content_id, content_type, mentioned_pubkey, block_time, sender_pubkey)
		SELECT pi.transaction_id, 'vote', $7, pi.block_time, pi.sender_pubkey
		FROM parent_insert pi
	`
	_, err = s.db.ExecContext(ctx, query, txID, blockTime, senderPubkey, senderSig, postID, string(a.Vote), mentioned)
	if err != nil {
		return perrors.Wrap(perrors.ClassTransient, err, "materialize vote")
	}
	return nil
}

// materializeBroadcast implements the last-writer-wins replacement in
// §4.4/§9: one statement deletes the sender's prior broadcasts and inserts
// the new one, guarded by ON CONFLICT(transaction_id) so redelivery of the
// same transaction is a no-op rather than deleting-then-reinserting itself.
func (s *Store) materializeBroadcast(ctx context.Context, txID []byte, blockTime int64, senderPubkey, senderSig []byte, a *kprotocol.Broadcast) error {
	const query = `
		WITH deleted AS (
			DELETE FROM k_broadcasts
			WHERE sender_pubkey = $3 AND transaction_id != $1
			RETURNING transaction_id
		)
		INSERT INTO k_broadcasts (transaction_id, block_time, sender_pubkey, sender_signature, nickname_b64, profile_image_b64, message_b64)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	var profileImage interface{}
	if a.HasProfileImage {
		profileImage = a.ProfileImageB64
	}
	_, err := s.db.ExecContext(ctx, query, txID, blockTime, senderPubkey, senderSig, a.NicknameB64, profileImage, a.MessageB64)
	if err != nil {
		return perrors.Wrap(perrors.ClassTransient, err, "materialize broadcast")
	}
	return nil
}

func (s *Store) materializeBlock(ctx context.Context, txID []byte, blockTime int64, senderPubkey, senderSig []byte, a *kprotocol.BlockAction) error {
	blockedUser, err := decodeHex(a.BlockedUserPubkey, "blocked user pubkey")
	if err != nil {
		return err
	}

	if a.BlockingAction == kprotocol.BlockingActionBlock {
		const query = `
			INSERT INTO k_blocks (transaction_id, block_time, sender_pubkey, sender_signature, blocking_action, blocked_user_pubkey)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (sender_pubkey, blocked_user_pubkey) DO NOTHING
		`
		_, err := s.db.ExecContext(ctx, query, txID, blockTime, senderPubkey, senderSig, string(a.BlockingAction), blockedUser)
		if err != nil {
			return perrors.Wrap(perrors.ClassTransient, err, "materialize block")
		}
		return nil
	}

	const query = `
		DELETE FROM k_blocks
		WHERE sender_pubkey = $1 AND blocked_user_pubkey = $2 AND blocking_action = 'block'
	`
	_, err = s.db.ExecContext(ctx, query, senderPubkey, blockedUser)
	if err != nil {
		return perrors.Wrap(perrors.ClassTransient, err, "materialize unblock")
	}
	return nil
}

func (s *Store) materializeFollow(ctx context.Context, txID []byte, blockTime int64, senderPubkey, senderSig []byte, a *kprotocol.FollowAction) error {
	followedUser, err := decodeHex(a.FollowedUserPubkey, "followed user pubkey")
	if err != nil {
		return err
	}

	if a.FollowingAction == kprotocol.FollowingActionFollow {
		const query = `
			INSERT INTO k_follows (transaction_id, block_time, sender_pubkey, sender_signature, following_action, followed_user_pubkey)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (sender_pubkey, followed_user_pubkey) DO NOTHING
		`
		_, err := s.db.ExecContext(ctx, query, txID, blockTime, senderPubkey, senderSig, string(a.FollowingAction), followedUser)
		if err != nil {
			return perrors.Wrap(perrors.ClassTransient, err, "materialize follow")
		}
		return nil
	}

	const query = `
		DELETE FROM k_follows
		WHERE sender_pubkey = $1 AND followed_user_pubkey = $2 AND following_action = 'follow'
	`
	_, err = s.db.ExecContext(ctx, query, senderPubkey, followedUser)
	if err != nil {
		return perrors.Wrap(perrors.ClassTransient, err, "materialize unfollow")
	}
	return nil
}

func txIDHexOf(b []byte) string {
	return hex.EncodeToString(b)
}
