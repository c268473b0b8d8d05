package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"admin-alerts/codec"
)

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

type counters struct {
	attempts atomic.Uint64
	failures atomic.Uint64
	events   sync.Map // event name -> *atomic.Uint64
	total    atomic.Uint64
}

func (c *counters) event(name string) {
	v, _ := c.events.LoadOrStore(name, new(atomic.Uint64))
	v.(*atomic.Uint64).Add(1)
	c.total.Add(1)
}

// consume reads frames until the stream ends.
func consume(ctx context.Context, client *http.Client, url, bearer string, c *counters) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream status %d", resp.StatusCode)
	}
	frames := codec.NewFrameReader(resp.Body)
	for {
		name, _, err := frames.Next()
		if err != nil {
			return err
		}
		c.event(name)
	}
}

func main() {
	streamURL := getenv("STREAM_URL", "http://localhost:8080/stream")
	conns := getenvInt("SSE_CONNECTIONS", 200)
	duration := time.Duration(getenvInt("DURATION_SEC", 120)) * time.Second
	bearer := os.Getenv("TEST_BEARER")

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var c counters
	client := &http.Client{}
	var wg sync.WaitGroup
	wg.Add(conns)
	for i := 0; i < conns; i++ {
		go func() {
			defer wg.Done()
			backoff := time.Second
			for ctx.Err() == nil {
				c.attempts.Add(1)
				start := time.Now()
				err := consume(ctx, client, streamURL, bearer, &c)
				if ctx.Err() != nil {
					return
				}
				c.failures.Add(1)
				log.WithError(err).Debug("stream ended")
				if time.Since(start) > backoff {
					backoff = time.Second
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				backoff = min(backoff*2, 5*time.Second)
			}
		}()
	}

	wg.Wait()
	failureRate := 0.0
	if a := c.attempts.Load(); a > 0 {
		failureRate = float64(c.failures.Load()) / float64(a)
	}
	fields := log.Fields{
		"connections":         conns,
		"duration_sec":        int(duration.Seconds()),
		"events_received":     c.total.Load(),
		"connection_failures": c.failures.Load(),
	}
	c.events.Range(func(k, v any) bool {
		fields["events."+k.(string)] = v.(*atomic.Uint64).Load()
		return true
	})
	log.WithFields(fields).Info("sse load finished")
	if c.total.Load() == 0 || failureRate > 0.01 {
		os.Exit(1)
	}
}
