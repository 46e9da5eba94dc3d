package conversations

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("word ", 20)

	cases := []struct {
		name     string
		messages []Message
		want     string
	}{
		{name: "empty", messages: nil, want: DefaultTitle},
		{name: "assistant only", messages: []Message{{Role: RoleAssistant, Content: "Asalaamu Alaikum"}}, want: DefaultTitle},
		{name: "first user message", messages: []Message{
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "  I   miss\nhim  "},
			{Role: RoleUser, Content: "second"},
		}, want: "I miss him"},
		{name: "truncated", messages: []Message{{Role: RoleUser, Content: long}}, want: strings.TrimSpace(long[:50]) + "..."},
		{name: "blank user message skipped", messages: []Message{
			{Role: RoleUser, Content: "   "},
			{Role: RoleUser, Content: "real"},
		}, want: "real"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveTitle(tc.messages))
		})
	}
}

func TestRedactKeepsRolesAndOrder(t *testing.T) {
	msgs := []Message{
		NewMessage(RoleUser, "a", time.Time{}),
		NewMessage(RoleAssistant, "b", time.Time{}),
		NewMessage(RoleUser, "c", time.Time{}),
	}

	out := Redact(msgs)

	require.Len(t, out, 3)
	assert.Equal(t, []string{HiddenUserContent, HiddenAssistantContent, HiddenUserContent},
		[]string{out[0].Content, out[1].Content, out[2].Content})
	for i := range msgs {
		assert.Equal(t, msgs[i].ID, out[i].ID)
		assert.Equal(t, msgs[i].Role, out[i].Role)
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, Role("system").Valid())
	assert.False(t, Role("").Valid())
}

func TestService_DerivesTitleWhenMissing(t *testing.T) {
	svc := NewService(newTestRepo(t))
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, "  ", []Message{NewMessage(RoleUser, "Why does it hurt so much", time.Now())}, false)
	require.NoError(t, err)
	assert.Equal(t, "Why does it hurt so much", created.Title)

	updated, err := svc.Replace(ctx, created.ID, 1, "Renamed", created.Messages)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
}
