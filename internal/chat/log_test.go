package chat

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	l := New()
	_, err := uuid.Parse(l.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())
	assert.NotEqual(t, l.ID, New().ID)
}

func TestLog_AppendDoesNotMutate(t *testing.T) {
	base := New().Append(Turn{Role: UserRole, Text: "hi"})

	a := base.Append(Turn{Role: BotRole, Text: "hello"})
	b := base.Append(Turn{Role: BotRole, Text: "hey"})

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, "hello", a.Turns[1].Text)
	assert.Equal(t, "hey", b.Turns[1].Text)
	assert.Equal(t, base.ID, a.ID)
}

func TestLog_Last(t *testing.T) {
	l := New().Append(
		Turn{Role: UserRole, Text: "q1"},
		Turn{Role: BotRole, Text: "a1"},
		Turn{Role: UserRole, Text: "q2"},
	)

	turn, ok := l.Last(BotRole)
	require.True(t, ok)
	assert.Equal(t, "a1", turn.Text)

	turn, ok = l.Last(UserRole)
	require.True(t, ok)
	assert.Equal(t, "q2", turn.Text)

	_, ok = New().Last(UserRole)
	assert.False(t, ok)
}

func TestLog_Recent(t *testing.T) {
	l := New().Append(
		Turn{Text: "1"},
		Turn{Text: "2"},
		Turn{Text: "3"},
	)

	assert.Nil(t, l.Recent(0))
	assert.Len(t, l.Recent(10), 3)

	recent := l.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "2", recent[0].Text)
	assert.Equal(t, "3", recent[1].Text)
}
