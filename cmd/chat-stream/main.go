package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-chat-client/api"
	"github.com/jrsteele09/go-chat-client/credentials"
	"github.com/jrsteele09/go-chat-client/internal/config"
	"github.com/jrsteele09/go-chat-client/stream"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error running chat stream: %s\n", err)
	}
	log.Printf("Chat stream finished\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	if c.GetRefreshToken() == "" {
		return errors.New("CHAT_REFRESH_TOKEN is required")
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	store := newMemStore()
	store.Set(credentials.RefreshTokenKey, c.GetRefreshToken())

	renewer := credentials.NewRefreshClient(c.GetBaseURL())
	manager, err := credentials.NewManager(store, renewer,
		credentials.WithExpiryBuffer(c.GetExpiryBuffer()),
		credentials.WithRenewAttempts(c.GetRenewAttempts()),
		credentials.WithRenewBaseDelay(c.GetRenewBaseDelay()),
		credentials.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("credentials.NewManager: %w", err)
	}

	client, err := api.NewClient(c.GetBaseURL(), manager,
		api.WithLogger(logger),
		api.WithSystemCodeFloor(c.GetSystemCodeFloor()),
		api.WithStreamChunkSize(c.GetStreamChunkSize()),
	)
	if err != nil {
		return fmt.Errorf("api.NewClient: %w", err)
	}

	query := "Hello"
	if len(os.Args) > 1 {
		query = os.Args[1]
	}

	session, err := client.Stream(context.Background(), api.Request{
		Method: http.MethodPost,
		Path:   "/chat-messages",
		Body: map[string]any{
			"query":         query,
			"response_mode": "streaming",
			"inputs":        map[string]any{},
		},
	}, handlers())
	if err != nil {
		return fmt.Errorf("client.Stream: %w", err)
	}

	go func() {
		waitForStopSignal()
		session.Abort()
	}()

	<-session.Done()
	return nil
}

func handlers() stream.Handlers {
	return stream.Handlers{
		OnMessage: func(m stream.Message) {
			fmt.Print(m.Answer)
		},
		OnMessageEnd: func(stream.MessageEnd) {
			fmt.Println()
		},
		OnThought: func(th stream.Thought) {
			log.Printf("thought: %s\n", th.Thought)
		},
		OnError: func(code int, message string) {
			log.Printf("stream error %d: %s\n", code, message)
		},
		OnCompleted: func(err error) {
			if err != nil {
				log.Printf("stream completed with error: %v\n", err)
			}
		},
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

// memStore is a process-lifetime credential store for the demo binary. A
// browser host would back the same interface with its own storage.
type memStore struct {
	lock   sync.RWMutex
	values map[string]string
}

var _ credentials.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{values: make(map[string]string)}
}

func (s *memStore) Get(key string) (string, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *memStore) Set(key, value string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values[key] = value
	return true
}

func (s *memStore) Remove(key string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.values[key]; !ok {
		return false
	}
	delete(s.values, key)
	return true
}
