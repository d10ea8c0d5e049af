package conversation_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/longkey1/sectutor/internal/llmc/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation_AddExchange(t *testing.T) {
	c := conversation.New("openai", "gpt-4o-mini")
	created := c.UpdatedAt

	c.AddExchange("What is phishing?", "Phishing is a scam.")
	first := c.Messages[0]
	c.AddMessage(llmc.RoleUser, "And vishing?")

	require.Equal(t, 3, c.MessageCount())
	assert.Equal(t, first, c.Messages[0])
	assert.Equal(t, llmc.RoleUser, c.Messages[0].Role)
	assert.Equal(t, llmc.RoleAssistant, c.Messages[1].Role)
	assert.Equal(t, "Phishing is a scam.", c.Messages[1].Content)
	assert.False(t, c.UpdatedAt.Before(created))
}

func TestConversation_Names(t *testing.T) {
	c := conversation.New("gemini", "gemini-2.5-flash")
	assert.Len(t, c.GetShortID(), 8)
	assert.Equal(t, c.GetShortID(), c.GetDisplayName())

	c.Name = "password basics"
	assert.Equal(t, "password basics", c.GetDisplayName())
}

func TestConversation_Preview(t *testing.T) {
	c := conversation.New("openai", "gpt-4o-mini")
	assert.Empty(t, c.Preview(20))

	c.AddMessage(llmc.RoleSystem, "context")
	c.AddMessage(llmc.RoleUser, "How do I spot\na phishing email quickly?")
	assert.Equal(t, "How do I spot a p...", c.Preview(20))
	assert.Equal(t, "How do I spot a phishing email quickly?", c.Preview(100))
}

func TestTruncateToWidth(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{name: "fits", text: "mfa", width: 5, want: "mfa"},
		{name: "ascii", text: "encryption basics", width: 10, want: "encrypt..."},
		{name: "wide runes", text: "暗号化とは何ですか", width: 9, want: "暗号化..."},
		{name: "tiny width", text: "firewall", width: 3, want: "fir"},
		{name: "zero width", text: "vpn", width: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, conversation.TruncateToWidth(tt.text, tt.width))
		})
	}
}

func TestStore_SaveLoadDelete(t *testing.T) {
	store := conversation.NewStore(filepath.Join(t.TempDir(), "conversations"))

	c := conversation.New("openai", "gpt-4o-mini")
	c.AddExchange("q", "a")
	require.NoError(t, store.Save(c))

	loaded, err := store.Load(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, loaded.ID)
	assert.Equal(t, "gpt-4o-mini", loaded.Model)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, llmc.RoleAssistant, loaded.Messages[1].Role)

	require.NoError(t, store.Delete(c.ID))
	_, err = store.Load(c.ID)
	assert.ErrorIs(t, err, conversation.ErrNotFound)
	assert.ErrorIs(t, store.Delete(c.ID), conversation.ErrNotFound)
}

func TestStore_ListSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store := conversation.NewStore(dir)

	older := conversation.New("openai", "a")
	older.UpdatedAt = time.Now().Add(-time.Hour)
	newer := conversation.New("openai", "b")
	require.NoError(t, store.Save(older))
	require.NoError(t, store.Save(newer))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o644))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	latest, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)
}

func TestStore_ListMissingDir(t *testing.T) {
	store := conversation.NewStore(filepath.Join(t.TempDir(), "none"))
	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = store.Latest()
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestStore_Find(t *testing.T) {
	store := conversation.NewStore(t.TempDir())

	a := &conversation.Conversation{ID: "abcd1111-0000-4000-8000-000000000001", UpdatedAt: time.Now().Add(-time.Minute)}
	b := &conversation.Conversation{ID: "abcd2222-0000-4000-8000-000000000002", UpdatedAt: time.Now()}
	require.NoError(t, store.Save(a))
	require.NoError(t, store.Save(b))

	tests := []struct {
		name      string
		prefix    string
		wantID    string
		wantErr   error
		ambiguous bool
		short     bool
	}{
		{name: "unique prefix", prefix: "abcd1", wantID: a.ID},
		{name: "full id", prefix: b.ID, wantID: b.ID},
		{name: "latest", prefix: "latest", wantID: b.ID},
		{name: "ambiguous", prefix: "abcd", ambiguous: true},
		{name: "too short", prefix: "abc", short: true},
		{name: "no match", prefix: "ffff", wantErr: conversation.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Find(tt.prefix)
			switch {
			case tt.ambiguous:
				var amb *conversation.AmbiguousIDError
				require.ErrorAs(t, err, &amb)
				assert.Len(t, amb.Matches, 2)
				assert.Contains(t, amb.Error(), "abcd1111")
			case tt.short:
				assert.ErrorContains(t, err, "at least 4 characters")
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, got.ID)
			}
		})
	}
}

func TestStore_DeleteBefore(t *testing.T) {
	store := conversation.NewStore(t.TempDir())

	old := conversation.New("openai", "m")
	old.UpdatedAt = time.Now().AddDate(0, 0, -40)
	recent := conversation.New("openai", "m")
	require.NoError(t, store.Save(old))
	require.NoError(t, store.Save(recent))

	removed, err := store.DeleteBefore(time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, old.ID, removed[0].ID)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, recent.ID, list[0].ID)
}
