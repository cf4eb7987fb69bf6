package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"receiptvault/internal/plans"
	"receiptvault/internal/subscription"
)

// planLabel renders a backend plan string for display, falling back to the
// raw value for anything outside the catalog.
func planLabel(raw string) string {
	plan, err := plans.ByID(plans.ID(raw))
	if err != nil {
		if raw == "" {
			return "free"
		}
		return raw
	}
	return plan.Name
}

func runPlans(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("plans", flag.ContinueOnError)
	fs.SetOutput(stderr)
	id := fs.String("id", "", "Show a single plan by identifier")
	price := fs.Int("price", -1, "Show a single plan by monthly price in pence")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *id != "":
		plan, err := plans.ByID(plans.ID(*id))
		if err != nil {
			return fmt.Errorf("plan %q: %w", *id, err)
		}
		printPlan(stdout, plan)
	case *price >= 0:
		plan, err := plans.ByMonthlyPrice(*price)
		if err != nil {
			return fmt.Errorf("plan at %dp/month: %w", *price, err)
		}
		printPlan(stdout, plan)
	default:
		for i, plan := range plans.All() {
			if i > 0 {
				fmt.Fprintln(stdout)
			}
			printPlan(stdout, plan)
		}
	}
	return nil
}

func printPlan(w io.Writer, p plans.Plan) {
	fmt.Fprintf(w, "%s - £%.2f/month\n", p.Name, float64(p.MonthlyPricePence)/100)
	fmt.Fprintf(w, "  Receipts:        %d/month\n", p.Entitlements.MonthlyReceipts)
	fmt.Fprintf(w, "  Mileage claims:  %d/month\n", p.Entitlements.MonthlyMileageClaims)
	if p.Entitlements.AnalyticsDashboard {
		fmt.Fprintln(w, "  Analytics:       included")
	}
	if len(p.Entitlements.ExportFormats) > 0 {
		fmt.Fprintf(w, "  Exports:         %s\n", strings.Join(p.Entitlements.ExportFormats, ", "))
	}
	fmt.Fprintf(w, "  Support:         %s\n", p.Entitlements.SupportTier)
}

func runStatus(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := newAppEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := context.Background()
	token, _, err := env.authenticate(ctx, stderr)
	if err != nil {
		return err
	}

	status, err := env.client.SubscriptionStatus(ctx, token)
	if err != nil {
		return fmt.Errorf("fetch subscription status: %w", err)
	}

	fmt.Fprintf(stdout, "Plan:   %s\n", planLabel(status.Plan))
	if status.Status != "" {
		fmt.Fprintf(stdout, "Status: %s\n", status.Status)
	}
	if status.CurrentPeriodEnd != nil {
		fmt.Fprintf(stdout, "Renews: %s\n", status.CurrentPeriodEnd.Format("2006-01-02"))
	}
	if status.CancelAtPeriodEnd {
		fmt.Fprintln(stdout, "Cancels at period end.")
	}
	return nil
}

func runUpgrade(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("upgrade", flag.ContinueOnError)
	fs.SetOutput(stderr)
	planFlag := fs.String("plan", "", "Target plan: professional or pro_plus")
	if err := fs.Parse(args); err != nil {
		return err
	}

	target := plans.ID(*planFlag)
	switch target {
	case plans.Professional, plans.ProPlus:
		// Paid tiers only.
	case plans.Free:
		return errors.New("the free plan needs no checkout; manage downgrades from the billing portal")
	default:
		return fmt.Errorf("unknown plan %q (choose professional or pro_plus)", *planFlag)
	}

	env, err := newAppEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := context.Background()
	token, _, err := env.authenticate(ctx, stderr)
	if err != nil {
		return err
	}

	session, err := env.client.CreateCheckoutSession(ctx, token, string(target))
	if err != nil {
		return fmt.Errorf("start checkout: %w", err)
	}

	fmt.Fprintln(stdout, "Open this URL in your browser to complete payment:")
	fmt.Fprintln(stdout, session.URL)
	fmt.Fprintln(stdout, "\nAfter payment, run 'receiptvault checkout-complete -url <return-url>'.")
	return nil
}

func runCheckoutComplete(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("checkout-complete", flag.ContinueOnError)
	fs.SetOutput(stderr)
	returnURL := fs.String("url", "", "Checkout return URL (contains session_id)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := newAppEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := context.Background()
	notifier := subscription.NewNotifier()
	events, cancel := notifier.Subscribe()
	defer cancel()

	syncer := subscription.NewSyncer(env.client, env.store, notifier)
	result := syncer.Complete(ctx, *returnURL)

	switch result.Outcome {
	case subscription.OutcomeSkipped:
		fmt.Fprintln(stdout, "Payment complete. Welcome aboard!")
		return nil
	case subscription.OutcomeSynced:
		fmt.Fprintf(stdout, "Subscription confirmed: %s plan is active.\n", planLabel(result.Plan))
	case subscription.OutcomeAuthRequired, subscription.OutcomeFailed:
		// Non-blocking: report and carry on, the dashboard stays usable.
		fmt.Fprintln(stdout, result.Message)
	}

	// A broadcast follows every attempted sync; refresh the stored plan
	// badge the way a subscribed view would.
	select {
	case <-events:
		if token, err := env.store.Token(); err == nil && token != "" {
			if user, err := env.client.CurrentUser(ctx, token); err == nil {
				if err := env.store.SetIdentity(user.Email, user.SubscriptionPlan); err == nil {
					fmt.Fprintf(stdout, "Current plan: %s\n", planLabel(user.SubscriptionPlan))
				}
			}
		}
	default:
	}
	return nil
}
