package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-backend/models"
)

func TestSessionCreatedLazily(t *testing.T) {
	store := NewSessionStore()
	assert.Nil(t, store.History("nope"))
	assert.Equal(t, 0, store.Len())

	err := store.Do("s1", func(history []models.ChatTurn, appendExchange func(user, assistant string)) error {
		assert.Empty(t, history)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestSessionAppendOrder(t *testing.T) {
	store := NewSessionStore()
	err := store.Do("s1", func(_ []models.ChatTurn, appendExchange func(user, assistant string)) error {
		appendExchange("hello", "hi there")
		return nil
	})
	require.NoError(t, err)

	history := store.History("s1")
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
	assert.Equal(t, "hi there", history[1].Content)
}

func TestSessionHistoryIsACopy(t *testing.T) {
	store := NewSessionStore()
	require.NoError(t, store.Do("s1", func(_ []models.ChatTurn, appendExchange func(user, assistant string)) error {
		appendExchange("a", "b")
		return nil
	}))

	history := store.History("s1")
	history[0].Content = "mutated"
	assert.Equal(t, "a", store.History("s1")[0].Content)
}

func TestSessionSnapshotInsideDoIsACopy(t *testing.T) {
	store := NewSessionStore()
	require.NoError(t, store.Do("s1", func(_ []models.ChatTurn, appendExchange func(user, assistant string)) error {
		appendExchange("a", "b")
		return nil
	}))

	require.NoError(t, store.Do("s1", func(history []models.ChatTurn, _ func(user, assistant string)) error {
		history[0].Content = "mutated"
		return nil
	}))
	assert.Equal(t, "a", store.History("s1")[0].Content)
}

func TestExpireIdle(t *testing.T) {
	store := NewSessionStore()
	require.NoError(t, store.Do("old", func([]models.ChatTurn, func(string, string)) error { return nil }))

	store.mu.Lock()
	store.sessions["old"].lastActive = time.Now().Add(-2 * time.Hour)
	store.mu.Unlock()

	require.NoError(t, store.Do("fresh", func([]models.ChatTurn, func(string, string)) error { return nil }))

	removed := store.ExpireIdle(time.Hour)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
	assert.Nil(t, store.History("old"))
	assert.NotNil(t, store.History("fresh"))
}
