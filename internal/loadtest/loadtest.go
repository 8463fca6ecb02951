// Package loadtest drives a contact store with concurrent clients and
// reports operation latency.
//
// Clients mix the operations the CLI and the HTTP API issue: searches,
// statistics, lookups by id and partial updates. After a run the store is
// checked for consistency: every contact still exists and the contact count
// is unchanged.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/steveyegge/contacts/internal/contact"
	"github.com/steveyegge/contacts/internal/store"
)

// Op is one kind of store operation.
type Op string

const (
	OpSearch Op = "search"
	OpStats  Op = "stats"
	OpGet    Op = "get"
	OpUpdate Op = "update"
)

var ops = []Op{OpSearch, OpStats, OpGet, OpUpdate}

// Store is the part of the record store the load test uses.
type Store interface {
	CreateContext(ctx context.Context, c *contact.Contact) (*contact.Contact, error)
	GetContext(ctx context.Context, id string) (*contact.Contact, error)
	UpdateContext(ctx context.Context, id string, patch contact.Patch) (*contact.Contact, error)
	ListContext(ctx context.Context, filter store.ListFilter) ([]*contact.Contact, error)
	StatsContext(ctx context.Context) (store.Stats, error)
}

// Options controls a run.
type Options struct {
	// Clients is the number of concurrent clients (default: 10)
	Clients int
	// OpsPerClient is how many operations each client issues (default: 50)
	OpsPerClient int
	// WriteRatio is the share of operations that are updates, from 0 to 1
	WriteRatio float64
	// Seed makes the operation mix reproducible (default: 42)
	Seed int64
}

func (o *Options) setDefaults() {
	if o.Clients <= 0 {
		o.Clients = 10
	}
	if o.OpsPerClient <= 0 {
		o.OpsPerClient = 50
	}
	if o.WriteRatio < 0 {
		o.WriteRatio = 0
	}
	if o.WriteRatio > 1 {
		o.WriteRatio = 1
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
}

// LatencyStats captures latency of one operation kind.
type LatencyStats struct {
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Count int
}

// Result is the outcome of a run.
type Result struct {
	Elapsed time.Duration
	Total   LatencyStats
	ByOp    map[Op]LatencyStats
	Errors  []error
}

// Populate creates n generated contacts and returns their ids.
func Populate(ctx context.Context, db Store, n int) ([]string, error) {
	ids := make([]string, 0, n)
	for _, c := range generateContacts(n) {
		created, err := db.CreateContext(ctx, c)
		if err != nil {
			return ids, fmt.Errorf("failed to create contact %s: %w", c.Name, err)
		}
		ids = append(ids, created.ContactID)
	}
	return ids, nil
}

// Run issues opts.Clients*opts.OpsPerClient operations against ids and
// verifies the store afterwards.
func Run(ctx context.Context, db Store, ids []string, opts Options) (*Result, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no contacts to run against")
	}
	opts.setDefaults()

	before, err := db.StatsContext(ctx)
	if err != nil {
		return nil, err
	}

	type sample struct {
		op  Op
		dur time.Duration
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		samples = make([]sample, 0, opts.Clients*opts.OpsPerClient)
		errs    []error
	)

	start := time.Now()
	for i := 0; i < opts.Clients; i++ {
		wg.Add(1)
		go func(client int) {
			defer wg.Done()

			rng := rand.New(rand.NewSource(opts.Seed + int64(client)))
			local := make([]sample, 0, opts.OpsPerClient)

			for j := 0; j < opts.OpsPerClient; j++ {
				if ctx.Err() != nil {
					break
				}
				op := pickOp(rng, opts.WriteRatio)
				id := ids[rng.Intn(len(ids))]

				t0 := time.Now()
				err := do(ctx, db, op, id, rng)
				local = append(local, sample{op: op, dur: time.Since(t0)})

				if err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("client %d %s %s: %w", client, op, id, err))
					mu.Unlock()
				}
			}

			mu.Lock()
			samples = append(samples, local...)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	durations := make(map[Op][]time.Duration, len(ops))
	all := make([]time.Duration, 0, len(samples))
	for _, smp := range samples {
		durations[smp.op] = append(durations[smp.op], smp.dur)
		all = append(all, smp.dur)
	}

	result := &Result{
		Elapsed: time.Since(start),
		Total:   computeLatencyStats(all),
		ByOp:    make(map[Op]LatencyStats, len(durations)),
		Errors:  errs,
	}
	for op, d := range durations {
		result.ByOp[op] = computeLatencyStats(d)
	}

	if err := verify(ctx, db, ids, before); err != nil {
		return result, err
	}
	return result, nil
}

func pickOp(rng *rand.Rand, writeRatio float64) Op {
	if rng.Float64() < writeRatio {
		return OpUpdate
	}
	reads := []Op{OpSearch, OpStats, OpGet}
	return reads[rng.Intn(len(reads))]
}

func do(ctx context.Context, db Store, op Op, id string, rng *rand.Rand) error {
	var err error
	switch op {
	case OpSearch:
		_, err = db.ListContext(ctx, store.ListFilter{Search: companies[rng.Intn(len(companies))]})
	case OpStats:
		_, err = db.StatsContext(ctx)
	case OpGet:
		_, err = db.GetContext(ctx, id)
	case OpUpdate:
		position := positions[rng.Intn(len(positions))]
		_, err = db.UpdateContext(ctx, id, contact.Patch{Position: contact.Some(&position)})
	}
	return err
}

// verify checks that the run neither lost nor duplicated contacts.
func verify(ctx context.Context, db Store, ids []string, before store.Stats) error {
	after, err := db.StatsContext(ctx)
	if err != nil {
		return err
	}
	if after != before {
		return fmt.Errorf("stats changed during run: before %+v, after %+v", before, after)
	}
	for _, id := range ids {
		c, err := db.GetContext(ctx, id)
		if err != nil {
			return fmt.Errorf("contact %s after run: %w", id, err)
		}
		if c.Name == "" {
			return fmt.Errorf("contact %s lost its name", id)
		}
	}
	return nil
}

var (
	firstNames = []string{"Ada", "Alan", "Grace", "Edsger", "Barbara", "Donald", "Frances", "Ken"}
	lastNames  = []string{"Lovelace", "Turing", "Hopper", "Dijkstra", "Liskov", "Knuth", "Allen", "Thompson"}
	companies  = []string{"ACME Corp", "Initech", "Globex", "Umbrella", "Hooli"}
	positions  = []string{"Engineer", "Director", "CTO", "Buyer", "Consultant"}
)

// generateContacts returns n contacts with a deterministic spread of
// companies, collections and opportunity values.
func generateContacts(n int) []*contact.Contact {
	rng := rand.New(rand.NewSource(42))
	base := time.Now().Add(-30 * 24 * time.Hour)

	contacts := make([]*contact.Contact, n)
	for i := range contacts {
		first := firstNames[i%len(firstNames)]
		last := lastNames[(i/len(firstNames))%len(lastNames)]
		email := fmt.Sprintf("%s.%s.%d@example.com", first, last, i)
		company := companies[i%len(companies)]
		position := positions[rng.Intn(len(positions))]

		c := &contact.Contact{
			Name:      fmt.Sprintf("%s %s %d", first, last, i),
			Email:     &email,
			Company:   &company,
			Position:  &position,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if i%3 == 0 {
			c.Events = []contact.Event{{Date: "2025-01-15", Type: "call", Notes: "intro"}}
		}
		if i%4 == 0 {
			value := float64(1000 * (1 + rng.Intn(50)))
			c.Opportunities = []contact.Opportunity{{Project: fmt.Sprintf("Project %d", i), EstimatedValue: &value}}
		}
		contacts[i] = c
	}
	return contacts
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) LatencyStats {
	if len(durations) == 0 {
		return LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return LatencyStats{
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / time.Duration(len(sorted)),
		P50:   sorted[len(sorted)*50/100],
		P95:   sorted[len(sorted)*95/100],
		P99:   sorted[len(sorted)*99/100],
		Count: len(sorted),
	}
}

// Fprint writes a latency table for the run.
func (r *Result) Fprint(w io.Writer) {
	fmt.Fprintf(w, "%-8s %7s %10s %10s %10s %10s %10s\n", "OP", "COUNT", "MIN", "P50", "P95", "P99", "MAX")
	row := func(name string, s LatencyStats) {
		fmt.Fprintf(w, "%-8s %7d %10v %10v %10v %10v %10v\n", name, s.Count,
			s.Min.Round(time.Microsecond), s.P50.Round(time.Microsecond), s.P95.Round(time.Microsecond),
			s.P99.Round(time.Microsecond), s.Max.Round(time.Microsecond))
	}
	for _, op := range ops {
		if s, ok := r.ByOp[op]; ok {
			row(string(op), s)
		}
	}
	row("total", r.Total)
	fmt.Fprintf(w, "\n%d operation(s) in %v, %d error(s)\n", r.Total.Count, r.Elapsed.Round(time.Millisecond), len(r.Errors))
}
