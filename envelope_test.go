package procbus

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTransferEnvelopeFactoryStampsHeader(t *testing.T) {
	sender := uuid.New()
	f := NewTransferEnvelopeFactory(sender, nil)

	env := f.Create("orders.created", 42, nil)

	require.Equal(t, "orders.created", env.Header.Topic())
	require.Equal(t, sender, env.Header.SenderID())
	require.Equal(t, 42, env.Message)
	require.NotEqual(t, uuid.Nil, env.Header.ID())
	_, hasReply := env.Header.ReplyTo()
	require.False(t, hasReply)
}

func TestTransferEnvelopeFactoryWithReplyTo(t *testing.T) {
	f := NewTransferEnvelopeFactory(uuid.New(), nil)
	replyTo := "procbus.reply.abc"

	env := f.Create("orders.created", nil, &replyTo)

	got, ok := env.Header.ReplyTo()
	require.True(t, ok)
	require.Equal(t, replyTo, got)
}

func TestTransferEnvelopeFactoryMintsDistinctIDs(t *testing.T) {
	f := NewTransferEnvelopeFactory(uuid.New(), nil)
	a := f.Create("t", nil, nil)
	b := f.Create("t", nil, nil)
	require.NotEqual(t, a.Header.ID(), b.Header.ID())
}
