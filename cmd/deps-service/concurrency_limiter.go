package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// ConcurrencyLimiter caps concurrent executions per command.
type ConcurrencyLimiter struct {
	semaphores map[string]*semaphore.Weighted
	timeout    time.Duration
}

// NewConcurrencyLimiter creates one semaphore per whitelisted command.
func NewConcurrencyLimiter(config *Config) *ConcurrencyLimiter {
	limiter := &ConcurrencyLimiter{
		semaphores: make(map[string]*semaphore.Weighted, len(config.Commands)),
		timeout:    config.Security.AcquireTimeout,
	}
	for _, cmd := range config.Commands {
		limiter.semaphores[cmd.Name] = semaphore.NewWeighted(int64(cmd.MaxConcurrent))
	}
	return limiter
}

// Acquire blocks until a slot for commandName is free or the acquire timeout passes.
func (l *ConcurrencyLimiter) Acquire(ctx context.Context, commandName string) error {
	sem, exists := l.semaphores[commandName]
	if !exists {
		return fmt.Errorf("no semaphore configured for command: %s", commandName)
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire semaphore for command %s: %w", commandName, err)
	}
	return nil
}

// Release frees a slot taken by Acquire.
func (l *ConcurrencyLimiter) Release(commandName string) {
	if sem, exists := l.semaphores[commandName]; exists {
		sem.Release(1)
	}
}
