// Package metrics holds the concurrent-safe in-memory counters exposed via
// /health (§5): uptime, total requests, battles served, votes received.
// Values are approximate under concurrent updates, which the spec accepts.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Counters is a set of atomic counters plus a fixed start time.
type Counters struct {
	startedAt     time.Time
	requestsTotal atomic.Int64
	battlesServed atomic.Int64
	votesReceived atomic.Int64
}

// New starts the clock and returns a zeroed Counters.
func New() *Counters {
	return &Counters{startedAt: time.Now()}
}

func (c *Counters) IncRequests() { c.requestsTotal.Add(1) }

func (c *Counters) IncBattlesServed() { c.battlesServed.Add(1) }

func (c *Counters) IncVotesReceived() { c.votesReceived.Add(1) }

func (c *Counters) UptimeSeconds() int64 { return int64(time.Since(c.startedAt).Seconds()) }

func (c *Counters) RequestsTotal() int64 { return c.requestsTotal.Load() }

func (c *Counters) BattlesServed() int64 { return c.battlesServed.Load() }

func (c *Counters) VotesReceived() int64 { return c.votesReceived.Load() }

// Middleware counts every request that reaches the gateway, regardless of
// route or outcome.
func Middleware(c *Counters) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		c.IncRequests()
		return ctx.Next()
	}
}

// CountOnSuccess increments inc once the rest of the handler chain completes
// without error and with a 2xx status, used to count battles issued and
// votes accepted without coupling those services to fiber.
func CountOnSuccess(inc func()) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil && ctx.Response().StatusCode() < fiber.StatusMultipleChoices {
			inc()
		}
		return err
	}
}
