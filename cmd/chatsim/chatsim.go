// chatsim drives a running chat server with simulated attendees: each one
// subscribes through the connection manager, sends a few messages and
// reports what it received. Useful for eyeballing long-poll behavior and
// light load testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gatherly/eventchat/chatclient"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "chat server base URL")
	eventID := flag.String("event", "evt-1", "event to chat in")
	users := flag.Int("users", 3, "number of simulated attendees")
	messages := flag.Int("messages", 5, "messages each attendee sends")
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	var received atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < *users; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			userID := fmt.Sprintf("sim-user-%d", i)
			runAttendee(log, *addr, *eventID, userID, *messages, &received)
		}()
	}

	wg.Wait()
	log.Info("simulation finished", zap.Int64("messages_received", received.Load()))
}

func runAttendee(log *zap.Logger, addr, eventID, userID string, messages int, received *atomic.Int64) {
	api := chatclient.NewClient(addr)
	m := chatclient.NewManager(api, chatclient.NewMemoryKV(), userID,
		chatclient.WithLogger(log.Named(userID)))

	m.Subscribe(eventID, chatclient.Callbacks{
		OnMessages: func(eventID string, msgs []chatclient.Message) {
			received.Add(int64(len(msgs)))
		},
		OnConnectionLost: func(eventID string, err error) {
			log.Warn("connection lost", zap.String("user", userID), zap.Error(err))
		},
	})
	defer m.Unsubscribe(eventID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for i := 0; i < messages; i++ {
		text := fmt.Sprintf("message %d from %s", i, userID)
		if _, err := m.Send(ctx, eventID, "Simulated Event", userID, text); err != nil {
			log.Warn("send failed", zap.String("user", userID), zap.Error(err))
			return
		}
		time.Sleep(200 * time.Millisecond)
	}

	// Linger so the long poll can deliver everyone else's messages.
	time.Sleep(2 * time.Second)
}
