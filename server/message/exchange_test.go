package message

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestKinds(t *testing.T) {
	assert.Equal(t, KindWrite, Write{}.Kind())
	assert.Equal(t, KindSafeload, Safeload{}.Kind())
	assert.Equal(t, KindRead, Read{}.Kind())
	assert.Equal(t, "write 3 bytes to 0x0010", Write{Address: 0x10, Data: []byte{1, 2, 3}}.String())
	assert.Equal(t, "read 2 bytes from 0x0020", Read{Address: 0x20, Length: 2}.String())
}

func TestSendPreservesOrder(t *testing.T) {
	x := NewExchange(8)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, x.Send(ctx, Write{Address: uint16(i)}))
	}
	assert.Equal(t, 5, x.Pending())

	for i := 0; i < 5; i++ {
		env := <-x.Requests()
		assert.Equal(t, Write{Address: uint16(i)}, env.Request)
	}
}

func TestReadRendezvous(t *testing.T) {
	x := NewExchange(0)
	go func() {
		env := <-x.Requests()
		req := env.Request.(Read)
		env.Reply(ReadResult{Data: make([]byte, req.Length)})
	}()

	result, err := x.Read(context.Background(), Read{Address: 0x20, Length: 4})
	require.NoError(t, err)
	assert.Len(t, result.Data, 4)
}

func TestConcurrentReadsAreRoutedToTheirCaller(t *testing.T) {
	x := NewExchange(4)
	go func() {
		for env := range x.Requests() {
			req := env.Request.(Read)
			env.Reply(ReadResult{Data: []byte{byte(req.Address)}})
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(addr uint16) {
			defer wg.Done()
			result, err := x.Read(context.Background(), Read{Address: addr, Length: 1})
			assert.NoError(t, err)
			assert.Equal(t, []byte{byte(addr)}, result.Data)
		}(uint16(i))
	}
	wg.Wait()
}

func TestReplyOnWriteIsNoop(t *testing.T) {
	env := Envelope{Request: Write{}}
	assert.NotPanics(t, func() { env.Reply(ReadResult{}) })
}

func TestCloseReleasesBlockedReader(t *testing.T) {
	x := NewExchange(1)
	errCh := make(chan error, 1)
	go func() {
		_, err := x.Read(context.Background(), Read{Length: 1})
		errCh <- err
	}()

	<-x.Requests()
	x.Close()

	select {
	case err := <-errCh:
		assert.True(t, errors.HasCode(err, ErrExchangeClosed))
	case <-time.After(time.Second):
		t.Fatal("reader was not released by Close")
	}

	err := x.Send(context.Background(), Write{})
	assert.True(t, errors.HasCode(err, ErrExchangeClosed))
}

func TestSendHonorsContext(t *testing.T) {
	x := NewExchange(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, x.Send(ctx, Write{}), context.Canceled)
}
