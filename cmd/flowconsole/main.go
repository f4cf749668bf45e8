// flowconsole is a headless dispatcher console. It keeps a live board of one
// property in sync from the ticket API and the realtime feed, and applies
// moves typed on stdin:
//
//	move <T-001|ticket id> <resolver id|waitlist>
//	show
//	refresh
//	quit
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/facility-tickets/internal/config"
	"github.com/spec-kit/facility-tickets/internal/console"
	"github.com/spec-kit/facility-tickets/internal/events"
	"github.com/spec-kit/facility-tickets/internal/observability"
	"github.com/spec-kit/facility-tickets/internal/persistence"
	"github.com/spec-kit/facility-tickets/internal/realtime"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flagSet := pflag.NewFlagSet("flowconsole", pflag.ContinueOnError)
	apiURL := flagSet.String("api", cfg.Console.APIURL, "ticket API base URL")
	token := flagSet.String("token", cfg.Console.Token, "bearer token")
	propertyID := flagSet.StringP("property", "p", cfg.Console.PropertyID, "property to watch")
	noFeed := flagSet.Bool("no-feed", false, "do not subscribe to the realtime feed")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if *propertyID == "" {
		return fmt.Errorf("--property is required")
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := console.NewHTTPClient(*apiURL, *token, *propertyID, cfg.Console.RefreshTimeout())
	reconciler := console.NewReconciler(client, client, logger.Named("console"))
	if err := reconciler.Refresh(ctx); err != nil {
		return fmt.Errorf("load board: %w", err)
	}

	if !*noFeed {
		rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer rdb.Close()
		subscriber := realtime.NewSubscriber(rdb.Client(), cfg.Realtime.ChannelPrefix, logger.Named("feed"))
		go func() {
			err := subscriber.Run(ctx, *propertyID, func(event events.Event) {
				reconciler.Notify(console.FromEvent(event))
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn("realtime feed stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-reconciler.Errors():
				fmt.Fprintf(os.Stdout, "! %v\n", err)
			}
		}
	}()

	printBoard(os.Stdout, reconciler.View())
	err = readCommands(ctx, os.Stdin, os.Stdout, reconciler)
	reconciler.Wait()
	return err
}

func readCommands(ctx context.Context, in io.Reader, out io.Writer, r *console.Reconciler) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "show":
			printBoard(out, r.View())
		case "refresh":
			if err := r.Refresh(ctx); err != nil {
				fmt.Fprintf(out, "! refresh: %v\n", err)
				continue
			}
			printBoard(out, r.View())
		case "move":
			if len(fields) != 3 {
				fmt.Fprintln(out, "usage: move <ticket> <resolver|waitlist>")
				continue
			}
			ticketID, ok := resolveTicket(r.View(), fields[1])
			if !ok {
				fmt.Fprintf(out, "! unknown ticket %s\n", fields[1])
				continue
			}
			var to *string
			if fields[2] != "waitlist" {
				resolver := fields[2]
				to = &resolver
			}
			if err := r.Drag(ctx, ticketID, to); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				continue
			}
			printBoard(out, r.View())
		default:
			fmt.Fprintf(out, "unknown command %q\n", fields[0])
		}
	}
	return scanner.Err()
}

func resolveTicket(lanes []console.Lane, ref string) (string, bool) {
	for _, lane := range lanes {
		for _, card := range lane.Cards {
			if card.TicketID == ref || strings.EqualFold(card.Key, ref) {
				return card.TicketID, true
			}
		}
	}
	return "", false
}

func printBoard(out io.Writer, lanes []console.Lane) {
	for _, lane := range lanes {
		name := lane.ResolverID
		if name == "" {
			name = "waitlist"
		}
		fmt.Fprintf(out, "[%s]\n", name)
		for _, card := range lane.Cards {
			marker := ""
			if card.Saving {
				marker = " (saving)"
			}
			fmt.Fprintf(out, "  %s %-11s %-6s %s%s\n", card.Key, card.Status, card.Priority, card.Title, marker)
		}
	}
}
