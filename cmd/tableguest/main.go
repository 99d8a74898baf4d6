// Command tableguest is a terminal guest device: it joins a table, edits its
// own cart and follows the shared order through the polling loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/yeremiapane/restaurant-table-cart/client"
	"github.com/yeremiapane/restaurant-table-cart/services"
	"github.com/yeremiapane/restaurant-table-cart/utils"
)

func main() {
	home, _ := os.UserHomeDir()

	server := pflag.String("server", "http://127.0.0.1:8080", "table cart server base URL")
	table := pflag.String("table", "", "table id or code printed on the table")
	restaurant := pflag.Uint("restaurant", 0, "restaurant id of the table")
	tokenFile := pflag.String("token-file", filepath.Join(home, ".tableguest", "token.json"), "where this device keeps its customer token")
	items := pflag.StringSlice("item", nil, "cart line as product_id:quantity, repeatable; replaces this device's cart")
	place := pflag.Bool("place", false, "place the table order after updating the cart")
	watch := pflag.Duration("watch", 0, "keep polling for this long (0 exits after one pass)")
	autoApprove := pflag.Bool("approve-all", false, "approve every incoming join request while watching")
	logLevel := pflag.String("log-level", "warn", "log level")
	pflag.Parse()

	utils.InitLogger(*logLevel, "text")

	if *table == "" || *restaurant == 0 {
		fmt.Fprintln(os.Stderr, "--table and --restaurant are required")
		pflag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := client.NewSyncLoop(client.NewAPI(*server, 5*time.Second), *table, uint(*restaurant), client.NewTokenStore(*tokenFile))
	loop.OnUpdate = func(s client.Snapshot) {
		render(s)
		if *autoApprove {
			for _, r := range s.Incoming {
				if err := loop.Approve(ctx, r.ID); err != nil {
					fmt.Fprintf(os.Stderr, "approve %s: %v\n", r.ID, err)
				}
			}
		}
	}

	if err := run(ctx, loop, *items, *place, *watch); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, loop *client.SyncLoop, rawItems []string, place bool, watch time.Duration) error {
	if err := loop.Refresh(ctx); err != nil {
		return err
	}

	if len(rawItems) > 0 {
		cart, err := parseItems(rawItems)
		if err != nil {
			return err
		}
		_, err = loop.SetItems(ctx, cart)
		var approval *client.ApprovalError
		switch {
		case errors.As(err, &approval):
			fmt.Printf("Waiting for the other guests to let you join (%ds)\n", approval.TimeLeft)
		case err != nil:
			return err
		}
	}

	if place {
		if err := loop.Place(ctx); err != nil {
			return fmt.Errorf("place order: %w", err)
		}
		fmt.Println("Order placed")
	}

	if watch <= 0 {
		return nil
	}
	watchCtx, cancel := context.WithTimeout(ctx, watch)
	defer cancel()
	err := loop.Run(watchCtx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func parseItems(raw []string) ([]services.ItemInput, error) {
	items := make([]services.ItemInput, 0, len(raw))
	for _, r := range raw {
		id, qty, ok := strings.Cut(r, ":")
		if !ok {
			qty = "1"
		}
		pid, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid product id in %q", r)
		}
		q, err := strconv.Atoi(qty)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity in %q", r)
		}
		items = append(items, services.ItemInput{ProductID: uint(pid), Quantity: q})
	}
	return items, nil
}

func render(s client.Snapshot) {
	switch {
	case s.Closed != nil:
		fmt.Println(s.Closed.Message)
		return
	case s.Approval != nil:
		fmt.Printf("Join request %s: %s (%ds left)\n", s.Approval.RequestID, s.Approval.Status, s.Approval.TimeLeft)
	}
	if s.Order == nil {
		fmt.Println("No order yet at this table")
		return
	}
	fmt.Printf("Order #%d [%s] %d guests\n", s.Order.ID, s.Order.OrderStatus, len(s.Order.CustomerTokens))
	for _, item := range s.Order.OrderItems {
		mark := " "
		if item.Processed {
			mark = "x"
		}
		fmt.Printf("  [%s] %2d x %-20s %8s\n", mark, item.Quantity, item.Name, utils.FormatAmount(item.LineTotal()))
	}
	fmt.Printf("  Total %32s\n", utils.FormatAmount(s.Order.Total))
	for _, r := range s.Incoming {
		fmt.Printf("  Guest %s wants to join (%ds), request %s\n", short(r.RequesterToken), r.TimeLeft, r.ID)
	}
}

func short(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
