package bus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/message"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSend_FIFO(t *testing.T) {
	b := New(nil)
	mb, err := b.Register("tab-1")
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		require.NoError(t, b.Send("tab-1", message.ToggleElementHighlight{ElementID: fmt.Sprint(i), IsHighlighted: true}))
	}

	got := mb.Drain()
	require.Len(t, got, 1000)
	for i, m := range got {
		require.Equal(t, fmt.Sprint(i), m.(message.ToggleElementHighlight).ElementID)
	}
	require.Empty(t, mb.Drain())
}

func TestSend_NoReceiver(t *testing.T) {
	b := New(nil)
	err := b.Send("ghost", message.ToggleExtension{Enabled: true})
	require.True(t, errors.Is(err, errors.ErrNoReceiver))

	err = b.SendActive(message.ToggleExtension{Enabled: true})
	require.True(t, errors.Is(err, errors.ErrNoReceiver))
}

func TestRegister_Duplicate(t *testing.T) {
	b := New(nil)
	_, err := b.Register("a")
	require.NoError(t, err)
	_, err = b.Register("a")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = b.Register("")
	require.Error(t, err)
}

func TestSendActive(t *testing.T) {
	b := New(nil)
	first, _ := b.Register("first")
	second, _ := b.Register("second")

	b.SetActive("second")
	require.Equal(t, "second", b.Active())
	require.NoError(t, b.SendActive(message.ToggleExtension{Enabled: true}))

	require.Empty(t, first.Drain())
	require.Len(t, second.Drain(), 1)
	require.Equal(t, []string{"first", "second"}, b.Names())
}

func TestUnregister(t *testing.T) {
	b := New(nil)
	mb, _ := b.Register("tab")
	b.SetActive("tab")
	require.NoError(t, b.Send("tab", message.ToggleExtension{Enabled: true}))

	b.Unregister("tab")
	require.Equal(t, "", b.Active())
	select {
	case <-mb.Done():
	default:
		t.Fatal("Done not closed after Unregister")
	}
	_, err := mb.Receive(context.Background())
	require.True(t, errors.Is(err, errors.ErrNoReceiver))
	require.True(t, errors.Is(b.Send("tab", message.ToggleExtension{}), errors.ErrNoReceiver))

	// The name can be registered again.
	_, err = b.Register("tab")
	require.NoError(t, err)
	b.Unregister("missing")
}

func TestReceive_BlocksUntilSend(t *testing.T) {
	b := New(nil)
	mb, _ := b.Register("tab")

	var wg sync.WaitGroup
	wg.Add(1)
	var got message.Message
	go func() {
		defer wg.Done()
		got, _ = mb.Receive(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, b.Send("tab", message.ToggleExtension{Enabled: true}))
	wg.Wait()
	require.Equal(t, message.ToggleExtension{Enabled: true}, got)
}

func TestReceive_Cancelled(t *testing.T) {
	b := New(nil)
	mb, _ := b.Register("tab")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mb.Receive(ctx)
	require.True(t, errors.Is(err, errors.ErrCancelled))
}

func TestSend_Concurrent(t *testing.T) {
	b := New(nil)
	mb, _ := b.Register("tab")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = b.Send("tab", message.ToggleExtension{Enabled: j%2 == 0})
			}
		}()
	}
	wg.Wait()
	require.Len(t, mb.Drain(), 800)
}
