package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/entity-cache/internal/cache"
	"github.com/leonardcser/entity-cache/internal/storage"
	web "github.com/leonardcser/entity-cache/internal/web"
)

func TestSaveLoop_SavesOnShutdown(t *testing.T) {
	backend := storage.NewMemory()
	m := cache.New(backend, cache.Options{})
	web.Register(m)
	cache.Put(m, web.Page{URL: "https://p.test"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go saveLoop(ctx, m, time.Hour, time.Hour, done)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("saveLoop did not stop")
	}
	assert.Len(t, backend.Names(), 3)
}

func TestSaveLoop_FlushesExpired(t *testing.T) {
	backend := storage.NewMemory()
	now := time.Now()
	m := cache.New(backend, cache.Options{Clock: func() time.Time { return now }})
	web.Register(m)
	cache.Put(m, web.Page{URL: "https://old.test"})
	m.SetClock(func() time.Time { return now.Add(2 * time.Hour) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go saveLoop(ctx, m, 10*time.Millisecond, time.Hour, done)

	require.Eventually(t, func() bool { return m.Len(cache.TypeID[web.Page]()) == 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	data, err := backend.Get(cache.TypeID[web.Page]())
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
