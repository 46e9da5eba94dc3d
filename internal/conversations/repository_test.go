package conversations

import (
	"context"
	"testing"
	"time"

	"kataba/pkg/db"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(context.Background(), database))

	for _, login := range []string{"amina", "yusuf"} {
		_, err := database.Exec(`INSERT INTO web_users (login, password_hash, created_ts, updated_ts) VALUES (?, 'x', 0, 0)`, login)
		require.NoError(t, err)
	}
	return database
}

func newTestRepo(t *testing.T, opts ...Option) *Repository {
	t.Helper()
	clock := &stepClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.now)}, opts...)
	return NewRepository(newTestDB(t), opts...)
}

func sampleMessages(texts ...string) []Message {
	at := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	out := make([]Message, len(texts))
	for i, text := range texts {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		out[i] = NewMessage(role, text, at.Add(time.Duration(i)*time.Minute))
	}
	return out
}

type view struct {
	ID      string
	Role    Role
	Content string
}

func project(messages []Message) []view {
	out := make([]view, len(messages))
	for i, m := range messages {
		out[i] = view{ID: m.ID, Role: m.Role, Content: m.Content}
	}
	return out
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	msgs := sampleMessages("I feel lost", "I hear you. What happened?")

	created, err := repo.Create(ctx, 1, "Feeling lost", msgs, false)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, int64(1), created.OwnerID)

	got, err := repo.Get(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "Feeling lost", got.Title)
	assert.False(t, got.PrivacyMode)
	assert.Equal(t, project(msgs), project(got.Messages))
	assert.Equal(t, msgs[1].Timestamp, got.Messages[1].Timestamp)
}

func TestRepository_ReplaceOverwritesWholeList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, 1, "First", sampleMessages("a", "b", "c", "d"), false)
	require.NoError(t, err)

	replacement := sampleMessages("x", "y")
	updated, err := repo.Replace(ctx, created.ID, 1, "Second", replacement)
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	got, err := repo.Get(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Title)
	assert.Equal(t, project(replacement), project(got.Messages))
	assert.Equal(t, created.ID, got.ID)
}

func TestRepository_OwnershipIsEnforced(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, 1, "Private", sampleMessages("secret"), false)
	require.NoError(t, err)

	_, err = repo.Get(ctx, created.ID, 2)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Replace(ctx, created.ID, 2, "Hijacked", sampleMessages("mine now"))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, created.ID, 2), ErrNotFound)
	private := true
	_, err = repo.ReplaceWithPrivacy(ctx, created.ID, 2, "Hijacked", sampleMessages("mine now"), &private)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := repo.List(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := repo.Get(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "Private", got.Title)
	assert.Equal(t, "secret", got.Messages[0].Content)
}

func TestRepository_PrivacyModeRedactsContent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	msgs := sampleMessages("my story", "thank you for sharing", "more")

	created, err := repo.Create(ctx, 1, "Hidden", msgs, true)
	require.NoError(t, err)

	got, err := repo.Get(ctx, created.ID, 1)
	require.NoError(t, err)
	require.Len(t, got.Messages, len(msgs))
	assert.True(t, got.PrivacyMode)
	for i, m := range got.Messages {
		assert.Equal(t, msgs[i].Role, m.Role)
		if m.Role == RoleUser {
			assert.Equal(t, HiddenUserContent, m.Content)
		} else {
			assert.Equal(t, HiddenAssistantContent, m.Content)
		}
	}

	// The caller's slice is never modified.
	assert.Equal(t, "my story", msgs[0].Content)
}

func TestRepository_ReplaceWithPrivacyRedactsSameSave(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, 1, "Toggle", sampleMessages("visible"), false)
	require.NoError(t, err)

	private := true
	updated, err := repo.ReplaceWithPrivacy(ctx, created.ID, 1, "Toggle", sampleMessages("visible", "reply"), &private)
	require.NoError(t, err)
	assert.True(t, updated.PrivacyMode)

	got, err := repo.Get(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.True(t, got.PrivacyMode)
	assert.Equal(t, HiddenUserContent, got.Messages[0].Content)
	assert.Equal(t, HiddenAssistantContent, got.Messages[1].Content)

	// A plain Replace keeps the stored mode.
	_, err = repo.Replace(ctx, created.ID, 1, "Toggle", sampleMessages("still hidden"))
	require.NoError(t, err)
	got, err = repo.Get(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.True(t, got.PrivacyMode)
	assert.Equal(t, HiddenUserContent, got.Messages[0].Content)
}

func TestRepository_FailedReplaceKeepsPrivacyMode(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, 1, "Open", sampleMessages("visible"), false)
	require.NoError(t, err)

	// The schema only accepts user and assistant roles, so the insert fails
	// after the conversation row has been updated.
	bad := []Message{NewMessage(Role("system"), "not allowed", time.Now())}
	private := true
	_, err = repo.ReplaceWithPrivacy(ctx, created.ID, 1, "Changed", bad, &private)
	require.Error(t, err)

	got, err := repo.Get(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.False(t, got.PrivacyMode)
	assert.Equal(t, "Open", got.Title)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "visible", got.Messages[0].Content)
}

func TestRepository_ListOrderedByUpdatedDesc(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.Create(ctx, 1, "first", sampleMessages("1"), false)
	require.NoError(t, err)
	second, err := repo.Create(ctx, 1, "second", sampleMessages("2"), false)
	require.NoError(t, err)
	_, err = repo.Create(ctx, 2, "other user", sampleMessages("3"), false)
	require.NoError(t, err)

	list, err := repo.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	_, err = repo.Replace(ctx, first.ID, 1, "first again", sampleMessages("1", "2"))
	require.NoError(t, err)

	list, err = repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, "first again", list[0].Title)
}

func TestRepository_Delete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, 1, "gone", sampleMessages("bye"), false)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, created.ID, 1))

	_, err = repo.Get(ctx, created.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, created.ID, 1), ErrNotFound)
}

func TestRepository_CreateRejectsMissingOwner(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Create(context.Background(), 0, "nobody", sampleMessages("hi"), false)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestRepository_CreateIDCollision(t *testing.T) {
	repo := newTestRepo(t, WithIDGenerator(func() string { return "fixed-id" }))
	ctx := context.Background()

	_, err := repo.Create(ctx, 1, "one", sampleMessages("a"), false)
	require.NoError(t, err)

	_, err = repo.Create(ctx, 1, "two", sampleMessages("b"), false)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRepository_FillsMissingIDsAndTimestamps(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, 1, "bare", []Message{{Role: RoleUser, Content: "no id"}}, false)
	require.NoError(t, err)

	got, err := repo.Get(ctx, created.ID, 1)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.NotEmpty(t, got.Messages[0].ID)
	assert.False(t, got.Messages[0].Timestamp.IsZero())
}
