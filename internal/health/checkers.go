package health

import (
	"context"
	"fmt"
)

// Pinger is the subset of a database pool used for readiness probes.
// Satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseChecker probes the transcript archive connection.
func DatabaseChecker(db Pinger) Checker {
	return Checker{
		Name: "database",
		Check: func(ctx context.Context) error {
			if db == nil {
				return fmt.Errorf("no database configured")
			}
			return db.Ping(ctx)
		},
	}
}

// RelayChecker reports the relay client's connection state. stateFn should
// return a descriptive state string and whether the relay is usable; a relay
// that is deliberately idle still counts as ready.
func RelayChecker(stateFn func() (state string, ok bool)) Checker {
	return Checker{
		Name: "relay",
		Check: func(context.Context) error {
			state, ok := stateFn()
			if !ok {
				return fmt.Errorf("relay %s", state)
			}
			return nil
		},
	}
}
