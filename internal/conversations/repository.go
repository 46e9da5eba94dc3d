package conversations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kataba/pkg/db"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound      = errors.New("conversation not found")
	ErrNotAuthorized = errors.New("not authorized for this conversation")
	ErrConflict      = errors.New("conversation id conflict")
)

type conversationRow struct {
	ID          string `db:"id"`
	OwnerID     int64  `db:"owner_id"`
	Title       string `db:"title"`
	PrivacyMode bool   `db:"privacy_mode"`
	CreatedTs   int64  `db:"created_ts"`
	UpdatedTs   int64  `db:"updated_ts"`
}

type messageRow struct {
	ID        string `db:"id"`
	Role      Role   `db:"role"`
	Content   string `db:"content"`
	CreatedTs int64  `db:"created_ts"`
}

// Repository stores conversations in SQL. Queries are written with "?" and
// rebound for the active driver. Every statement is scoped by owner_id.
type Repository struct {
	db    *sqlx.DB
	now   func() time.Time
	newID func() string
}

type Option func(*Repository)

func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithIDGenerator overrides uuid generation of conversation ids.
func WithIDGenerator(gen func() string) Option {
	return func(r *Repository) {
		r.newID = gen
	}
}

func NewRepository(conn *sqlx.DB, opts ...Option) *Repository {
	r := &Repository{
		db:    conn,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) Create(ctx context.Context, ownerID int64, title string, messages []Message, privacyMode bool) (*Conversation, error) {
	if ownerID <= 0 {
		return nil, ErrNotAuthorized
	}

	now := r.now().UTC()
	row := conversationRow{
		ID:          r.newID(),
		OwnerID:     ownerID,
		Title:       title,
		PrivacyMode: privacyMode,
		CreatedTs:   now.UnixMilli(),
		UpdatedTs:   now.UnixMilli(),
	}
	stored := prepareMessages(messages, privacyMode, now)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(`
		INSERT INTO conversations (id, owner_id, title, privacy_mode, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if _, err := tx.ExecContext(ctx, query, row.ID, row.OwnerID, row.Title, row.PrivacyMode, row.CreatedTs, row.UpdatedTs); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	if err := insertMessages(ctx, tx, row.ID, stored); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit conversation: %w", err)
	}

	return toConversation(row, stored), nil
}

// Replace overwrites the title and the whole message list. The stored list
// is exactly the given one, in the given order.
func (r *Repository) Replace(ctx context.Context, id string, ownerID int64, title string, messages []Message) (*Conversation, error) {
	return r.ReplaceWithPrivacy(ctx, id, ownerID, title, messages, nil)
}

// ReplaceWithPrivacy is Replace that also sets the privacy mode when
// privacyMode is non-nil. The new mode applies to the messages stored in the
// same transaction; content stored earlier is left as is.
func (r *Repository) ReplaceWithPrivacy(ctx context.Context, id string, ownerID int64, title string, messages []Message, privacyMode *bool) (*Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row, err := getConversationRow(ctx, tx, id, ownerID)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	row.Title = title
	row.UpdatedTs = now.UnixMilli()
	if privacyMode != nil {
		row.PrivacyMode = *privacyMode
	}

	query := tx.Rebind(`UPDATE conversations SET title = ?, privacy_mode = ?, updated_ts = ? WHERE id = ? AND owner_id = ?`)
	if _, err := tx.ExecContext(ctx, query, row.Title, row.PrivacyMode, row.UpdatedTs, id, ownerID); err != nil {
		return nil, fmt.Errorf("failed to update conversation %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM conversation_messages WHERE conversation_id = ?`), id); err != nil {
		return nil, fmt.Errorf("failed to clear messages of conversation %s: %w", id, err)
	}

	stored := prepareMessages(messages, row.PrivacyMode, now)
	if err := insertMessages(ctx, tx, id, stored); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit conversation %s: %w", id, err)
	}

	return toConversation(*row, stored), nil
}

func (r *Repository) Get(ctx context.Context, id string, ownerID int64) (*Conversation, error) {
	row, err := getConversationRow(ctx, r.db, id, ownerID)
	if err != nil {
		return nil, err
	}

	var rows []messageRow
	query := r.db.Rebind(`
		SELECT id, role, content, created_ts
		FROM conversation_messages
		WHERE conversation_id = ?
		ORDER BY seq ASC
	`)
	if err := r.db.SelectContext(ctx, &rows, query, id); err != nil {
		return nil, fmt.Errorf("failed to load messages of conversation %s: %w", id, err)
	}

	messages := make([]Message, len(rows))
	for i, m := range rows {
		messages[i] = Message{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: time.UnixMilli(m.CreatedTs).UTC(),
		}
	}
	return toConversation(*row, messages), nil
}

// List returns the owner's conversations, most recently updated first.
func (r *Repository) List(ctx context.Context, ownerID int64) ([]Summary, error) {
	var rows []conversationRow
	query := r.db.Rebind(`
		SELECT id, owner_id, title, privacy_mode, created_ts, updated_ts
		FROM conversations
		WHERE owner_id = ?
		ORDER BY updated_ts DESC, id ASC
	`)
	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	list := make([]Summary, 0, len(rows))
	for _, row := range rows {
		list = append(list, Summary{
			ID:        row.ID,
			Title:     row.Title,
			CreatedAt: time.UnixMilli(row.CreatedTs).UTC(),
			UpdatedAt: time.UnixMilli(row.UpdatedTs).UTC(),
		})
	}
	return list, nil
}

func (r *Repository) Delete(ctx context.Context, id string, ownerID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getConversationRow(ctx, tx, id, ownerID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM conversation_messages WHERE conversation_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete messages of conversation %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM conversations WHERE id = ? AND owner_id = ?`), id, ownerID); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	return tx.Commit()
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

func getConversationRow(ctx context.Context, q queryer, id string, ownerID int64) (*conversationRow, error) {
	var row conversationRow
	query := q.Rebind(`
		SELECT id, owner_id, title, privacy_mode, created_ts, updated_ts
		FROM conversations
		WHERE id = ? AND owner_id = ?
	`)
	if err := q.GetContext(ctx, &row, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return &row, nil
}

func insertMessages(ctx context.Context, tx *sqlx.Tx, conversationID string, messages []Message) error {
	query := tx.Rebind(`
		INSERT INTO conversation_messages (conversation_id, seq, id, role, content, created_ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	for i, m := range messages {
		if _, err := tx.ExecContext(ctx, query, conversationID, i, m.ID, string(m.Role), m.Content, m.Timestamp.UnixMilli()); err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("duplicate message id %s: %w", m.ID, ErrConflict)
			}
			return fmt.Errorf("failed to insert message %d of conversation %s: %w", i, conversationID, err)
		}
	}
	return nil
}

// prepareMessages fills missing ids and timestamps, normalizes timestamps to
// millisecond UTC and applies the privacy transform.
func prepareMessages(messages []Message, privacyMode bool, now time.Time) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		m.Timestamp = time.UnixMilli(m.Timestamp.UnixMilli()).UTC()
		out[i] = m
	}
	if privacyMode {
		out = Redact(out)
	}
	return out
}

func toConversation(row conversationRow, messages []Message) *Conversation {
	return &Conversation{
		ID:          row.ID,
		OwnerID:     row.OwnerID,
		Title:       row.Title,
		PrivacyMode: row.PrivacyMode,
		Messages:    messages,
		CreatedAt:   time.UnixMilli(row.CreatedTs).UTC(),
		UpdatedAt:   time.UnixMilli(row.UpdatedTs).UTC(),
	}
}
