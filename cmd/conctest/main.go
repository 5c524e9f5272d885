// Command conctest hammers the sale and resale workflows from many
// goroutines and checks that capacity is never oversold and that a
// listing is sold at most once.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/ticket-marketplace/internal/database"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/repository"
	"github.com/iliyamo/ticket-marketplace/internal/repository/memstore"
	"github.com/iliyamo/ticket-marketplace/internal/service"
	"github.com/iliyamo/ticket-marketplace/internal/service/ports"
)

type options struct {
	store      string
	capacity   int
	buyers     int
	quantity   int
	parallel   int
	resaleRace int
	verbose    bool
	db         database.Options
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("conctest", pflag.ContinueOnError)
	fs.StringVar(&o.store, "store", "memory", "store driver: memory or mysql")
	fs.IntVar(&o.capacity, "capacity", 100, "event capacity")
	fs.IntVarP(&o.buyers, "buyers", "n", 200, "concurrent purchase attempts")
	fs.IntVarP(&o.quantity, "quantity", "q", 1, "tickets per purchase")
	fs.IntVarP(&o.parallel, "parallel", "p", 32, "maximum goroutines in flight")
	fs.IntVar(&o.resaleRace, "resale-buyers", 20, "buyers racing for one resale listing")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log every workflow outcome")
	fs.StringVar(&o.db.User, "db-user", os.Getenv("DB_USER"), "mysql user")
	fs.StringVar(&o.db.Pass, "db-pass", os.Getenv("DB_PASS"), "mysql password")
	fs.StringVar(&o.db.Host, "db-host", "127.0.0.1", "mysql host")
	fs.StringVar(&o.db.Port, "db-port", "3306", "mysql port")
	fs.StringVar(&o.db.Name, "db-name", os.Getenv("DB_NAME"), "mysql database")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.capacity < 1 || o.buyers < 1 || o.quantity < 1 || o.parallel < 1 {
		return o, fmt.Errorf("capacity, buyers, quantity and parallel must be positive")
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(context.Background(), o); err != nil {
		fmt.Fprintln(os.Stderr, "conctest:", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, o options) (ports.Store, error) {
	if o.store == "memory" {
		return memstore.New(), nil
	}
	db, err := database.Open(o.db)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		return nil, err
	}
	return repository.NewStore(db), nil
}

func run(ctx context.Context, o options) error {
	var w io.Writer = io.Discard
	if o.verbose {
		w = os.Stderr
	}
	log := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := openStore(ctx, o)
	if err != nil {
		return err
	}
	inv := service.NewInventory(store)
	tickets := service.NewTickets(store, log)
	ledger := service.NewLedger(store)
	events := service.NewEventService(store, inv, log)
	sales := service.NewSaleWorkflow(store, inv, tickets, ledger, nil, log)
	resale := service.NewResaleWorkflow(store, tickets, ledger, nil, log)

	organizer := model.Caller{UserID: "conctest-organizer", Role: model.RoleOrganizer}
	ev, err := events.Create(ctx, organizer, model.Event{
		Name:     "conctest " + time.Now().UTC().Format(time.RFC3339),
		Date:     time.Now().Add(24 * time.Hour),
		Place:    "load",
		Price:    decimal.NewFromInt(10),
		Capacity: o.capacity,
	})
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	var sold, refused, failed atomic.Int64
	var firstTicket atomic.Value
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallel)
	for i := 0; i < o.buyers; i++ {
		buyer := model.Caller{UserID: fmt.Sprintf("conctest-buyer-%d", i), Role: model.RoleBuyer}
		g.Go(func() error {
			out, err := sales.Purchase(gctx, buyer, ev.ID, o.quantity)
			switch {
			case err != nil:
				failed.Add(1)
			case out.Success:
				sold.Add(int64(len(out.TicketIDs)))
				firstTicket.CompareAndSwap(nil, [2]string{buyer.UserID, out.TicketIDs[0]})
			default:
				refused.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	took := time.Since(start)

	left, err := inv.Availability(ctx, ev.ID)
	if err != nil {
		return err
	}
	fmt.Printf("primary: capacity=%d attempts=%d sold=%d refused=%d store_errors=%d left=%d in %s\n",
		o.capacity, o.buyers, sold.Load(), refused.Load(), failed.Load(), left, took.Round(time.Millisecond))
	if sold.Load() > int64(o.capacity) || int64(left) != int64(o.capacity)-sold.Load() {
		return fmt.Errorf("oversold: sold %d of %d with %d left", sold.Load(), o.capacity, left)
	}

	first, ok := firstTicket.Load().([2]string)
	if !ok || o.resaleRace < 1 {
		return nil
	}
	seller := model.Caller{UserID: first[0], Role: model.RoleBuyer}
	listed, err := resale.Publish(ctx, seller, first[1], decimal.NewFromInt(15))
	if err != nil || !listed.Success {
		return fmt.Errorf("publish resale: %v %s", err, listed.Message)
	}
	var winners atomic.Int64
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(o.parallel)
	for i := 0; i < o.resaleRace; i++ {
		buyer := model.Caller{UserID: fmt.Sprintf("conctest-reseller-%d", i), Role: model.RoleBuyer}
		g.Go(func() error {
			out, err := resale.Purchase(gctx, buyer, listed.ListingID)
			if err == nil && out.Success {
				winners.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	fmt.Printf("resale: racers=%d winners=%d\n", o.resaleRace, winners.Load())
	if winners.Load() != 1 {
		return fmt.Errorf("listing %s sold %d times", listed.ListingID, winners.Load())
	}
	return nil
}
