package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ggeejehd-eng/mj36/model"
)

func TestSignalChannelCreation(t *testing.T) {
	sigChan := NewSignalChannels()
	ctx, cancel := context.WithCancel(context.Background())

	sigChan.AddNewConnection(ctx, "user_1")
	assert.Equal(t, 1, sigChan.GetActiveConnectionsCount())

	cancel()

	// Force trigger a long IO operation so the cleanup goroutine runs.
	time.Sleep(1 * time.Second)

	assert.Equal(t, 0, sigChan.GetActiveConnectionsCount())
}

func TestSignalChannelMultipleCreation(t *testing.T) {
	sigChan := NewSignalChannels()
	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	ctx3, cancel3 := context.WithCancel(context.Background())

	// User 1 signed in 2 devices.
	sigChan.AddNewConnection(ctx1, "user_1")
	sigChan.AddNewConnection(ctx2, "user_1")

	// User 2 signed in only 1 device.
	sigChan.AddNewConnection(ctx3, "user_2")

	assert.Equal(t, 3, sigChan.GetActiveConnectionsCount())

	cancel1()
	cancel2()
	cancel3()

	time.Sleep(1 * time.Second)
	assert.Equal(t, 0, sigChan.GetActiveConnectionsCount())
}

func TestPushSignalToUser(t *testing.T) {
	sigChan := NewSignalChannels()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := sigChan.AddNewConnection(ctx, "user_id")

	done := make(chan interface{})
	go func() {
		signal := <-ch
		assert.Equal(t, &model.Signal{
			SignalType: model.SignalTypeNotice, Notice: "hi"}, signal)
		done <- 0
	}()

	sigChan.PushSignalToUser(&model.Signal{
		SignalType: model.SignalTypeNotice, Notice: "hi"}, "user_id")
	<-done

	cancel()
	time.Sleep(1 * time.Second)
	assert.Error(t, sigChan.PushSignalToUser(&model.Signal{
		SignalType: model.SignalTypeNotice,
	}, "user_id"))
}

func TestPushSignalToAll(t *testing.T) {
	sigChan := NewSignalChannels()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1, _ := sigChan.AddNewConnection(ctx, "user_1")
	ch2, _ := sigChan.AddNewConnection(ctx, "user_2")

	signal := &model.Signal{
		SignalType: model.SignalTypeRender,
		Render:     &model.RenderSignal{Section: model.SectionPosts, Content: "<div/>"},
	}
	sigChan.PushSignalToAll(signal)

	assert.Equal(t, signal, <-ch1)
	assert.Equal(t, signal, <-ch2)
}

func TestPushDoesNotBlockOnFullChannel(t *testing.T) {
	sigChan := NewSignalChannels()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Nobody drains this channel; its buffer holds exactly one signal.
	sigChan.AddNewConnection(ctx, "user_1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			sigChan.PushSignalToAll(&model.Signal{SignalType: model.SignalTypeNotice})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("push blocked on an undrained channel")
	}
}
