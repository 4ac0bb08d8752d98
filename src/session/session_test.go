package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Protocol-Lattice/todo-agent/src/models"
)

func TestSaveAndGetCopiesMessages(t *testing.T) {
	s := NewStore(4, time.Minute)
	msgs := []models.Message{{Role: models.RoleUser, Content: "hi"}}
	s.Save("c1", msgs)
	msgs[0].Content = "mutated"

	conv, ok := s.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "hi", conv.Messages[0].Content)

	conv.Messages[0].Content = "again"
	again, _ := s.Get("c1")
	assert.Equal(t, "hi", again.Messages[0].Content)
}

func TestAppendCreatesAndExtends(t *testing.T) {
	s := NewStore(0, 0)
	s.Append("c1", models.Message{Role: models.RoleUser, Content: "a"})
	conv := s.Append("c1", models.Message{Role: models.RoleAssistant, Content: "b"})

	require.Len(t, conv.Messages, 2)
	assert.Equal(t, models.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "c1", conv.ID)
}

func TestEvictionAndDelete(t *testing.T) {
	s := NewStore(1, time.Minute)
	s.Save("a", nil)
	s.Save("b", nil)

	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.True(t, s.Delete("b"))
	assert.Equal(t, 0, s.Len())
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "abc", Resolve("  abc "))
	assert.NotEmpty(t, Resolve(""))
	assert.NotEqual(t, Resolve(""), Resolve(""))
}
