package actor

import (
	"testing"
	"time"

	"github.com/chorusdev/chorus/internal/logger"
	"github.com/stretchr/testify/require"
)

func TestMailbox_DeliversFIFO(t *testing.T) {
	mb := NewMailbox[int]("test", 4, logger.NewLogger())
	addr := mb.Address()

	var got []int
	done := make(chan struct{})
	go func() {
		mb.Run(func(m int) { got = append(got, m) })
		close(done)
	}()

	for i := 0; i < 3; i++ {
		require.True(t, addr.Send(i))
	}
	mb.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("mailbox did not drain")
	}
	require.Equal(t, []int{0, 1, 2}, got)
}

func TestAddress_SendDropsWhenFull(t *testing.T) {
	mb := NewMailbox[int]("full", 1, logger.NewLogger())
	addr := mb.Address()

	require.True(t, addr.Send(1))
	require.False(t, addr.Send(2), "second send should be dropped, mailbox capacity is 1 and nothing is consuming")
}

func TestAddress_ZeroValueInvalid(t *testing.T) {
	var addr Address[int]
	require.False(t, addr.Valid())
	require.False(t, addr.Send(1))
}

func TestAddress_SendAfterCloseDropsWithoutPanic(t *testing.T) {
	mb := NewMailbox[int]("closed", 4, logger.NewLogger())
	addr := mb.Address()
	go mb.Run(func(int) {})

	mb.Close()
	mb.Close() // Close must tolerate being called twice.

	require.NotPanics(t, func() {
		require.False(t, addr.Send(1))
	})
}
