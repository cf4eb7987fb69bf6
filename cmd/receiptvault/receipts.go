package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"receiptvault/internal/api"
	"receiptvault/internal/models"
)

func runReceipts(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("receipts", flag.ContinueOnError)
	fs.SetOutput(stderr)

	skip := fs.Int("skip", 0, "Number of receipts to skip")
	limit := fs.Int("limit", 0, "Maximum receipts to return (0 = backend default)")

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

	receipts, err := env.client.ListReceipts(ctx, token, *skip, *limit)
	if err != nil {
		return fmt.Errorf("list receipts: %w", err)
	}
	if len(receipts) == 0 {
		fmt.Fprintln(stdout, "No receipts yet. Upload one with 'receiptvault upload -file <image>'.")
		return nil
	}

	for _, r := range receipts {
		printReceiptLine(stdout, r)
	}
	return nil
}

func runReceipt(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("receipt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	id := fs.Int64("id", 0, "Receipt ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: id")
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

	receipt, err := env.client.GetReceipt(ctx, token, *id)
	if err != nil {
		return err
	}
	printReceiptDetail(stdout, *receipt)
	return nil
}

func runUpload(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("file", "", "Receipt image file (jpg, png, or pdf)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: file")
	}

	file, err := os.Open(*path)
	if err != nil {
		return fmt.Errorf("open %s: %w", *path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", *path, err)
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

	receipt, err := env.client.UploadReceipt(ctx, token, filepath.Base(*path), file, info.Size(),
		func(pct int) {
			fmt.Fprintf(stdout, "\rUploading... %3d%%", pct)
		})
	if err != nil {
		fmt.Fprintln(stdout)
		return fmt.Errorf("upload failed: %w", err)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Receipt %d created (status: %s)\n", receipt.ID, receipt.Status)
	return nil
}

func runUpdate(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(stderr)

	id := fs.Int64("id", 0, "Receipt ID")
	vendor := fs.String("vendor", "", "Vendor name")
	amount := fs.Float64("amount", 0, "Total amount")
	vat := fs.Float64("vat", 0, "Tax amount")
	category := fs.String("category", "", "Expense category")
	notes := fs.String("notes", "", "Free-text notes")
	dateStr := fs.String("date", "", "Receipt date (YYYY-MM-DD)")
	business := fs.Bool("business", true, "Business expense")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: id")
	}

	// Only flags the user actually passed go into the partial update.
	var update api.ReceiptUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "vendor":
			update.Vendor = vendor
		case "amount":
			update.TotalAmount = amount
		case "vat":
			update.TaxAmount = vat
		case "category":
			update.Category = category
		case "notes":
			update.Notes = notes
		case "business":
			flagInt := 0
			if *business {
				flagInt = 1
			}
			update.IsBusiness = &flagInt
		}
	})
	if *dateStr != "" {
		parsed, err := time.Parse("2006-01-02", *dateStr)
		if err != nil {
			return fmt.Errorf("invalid -date: %w", err)
		}
		update.Date = &parsed
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

	receipt, err := env.client.UpdateReceipt(ctx, token, *id, update)
	if err != nil {
		return fmt.Errorf("update receipt: %w", err)
	}
	printReceiptDetail(stdout, *receipt)
	return nil
}

func runApprove(args []string, stdout, stderr io.Writer) error {
	return receiptAction(args, stdout, stderr, "approve",
		func(ctx context.Context, env *appEnv, token string, id int64) (string, error) {
			receipt, err := env.client.ApproveReceipt(ctx, token, id)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Receipt %d approved (status: %s)", receipt.ID, receipt.Status), nil
		})
}

func runDelete(args []string, stdout, stderr io.Writer) error {
	return receiptAction(args, stdout, stderr, "delete",
		func(ctx context.Context, env *appEnv, token string, id int64) (string, error) {
			if err := env.client.DeleteReceipt(ctx, token, id); err != nil {
				return "", err
			}
			return fmt.Sprintf("Receipt %d deleted. Restore it with 'receiptvault restore -id %d'.", id, id), nil
		})
}

func runRestore(args []string, stdout, stderr io.Writer) error {
	return receiptAction(args, stdout, stderr, "restore",
		func(ctx context.Context, env *appEnv, token string, id int64) (string, error) {
			receipt, err := env.client.RestoreReceipt(ctx, token, id)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Receipt %d restored.", receipt.ID), nil
		})
}

// receiptAction handles the shared flag parsing and auth for the
// single-receipt commands.
func receiptAction(args []string, stdout, stderr io.Writer, name string,
	action func(ctx context.Context, env *appEnv, token string, id int64) (string, error)) error {

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	id := fs.Int64("id", 0, "Receipt ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: id")
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

	message, err := action(ctx, env, token, *id)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, message)
	return nil
}

func runDeleted(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("deleted", flag.ContinueOnError)
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

	receipts, err := env.client.ListDeletedReceipts(ctx, token)
	if err != nil {
		return fmt.Errorf("list deleted receipts: %w", err)
	}
	if len(receipts) == 0 {
		fmt.Fprintln(stdout, "No deleted receipts.")
		return nil
	}
	for _, r := range receipts {
		printReceiptLine(stdout, r)
	}
	return nil
}

func runAnalytics(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("analytics", flag.ContinueOnError)
	fs.SetOutput(stderr)
	startStr := fs.String("start", "", "Start date (YYYY-MM-DD, optional)")
	endStr := fs.String("end", "", "End date (YYYY-MM-DD, optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var start, end *time.Time
	if *startStr != "" {
		parsed, err := time.Parse("2006-01-02", *startStr)
		if err != nil {
			return fmt.Errorf("invalid -start: %w", err)
		}
		start = &parsed
	}
	if *endStr != "" {
		parsed, err := time.Parse("2006-01-02", *endStr)
		if err != nil {
			return fmt.Errorf("invalid -end: %w", err)
		}
		end = &parsed
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

	summary, err := env.client.Analytics(ctx, token, start, end)
	if err != nil {
		return fmt.Errorf("fetch analytics: %w", err)
	}

	fmt.Fprintf(stdout, "Total: £%.2f  (VAT £%.2f) across %d receipts\n",
		summary.TotalAmount, summary.TotalVAT, summary.ReceiptCount)
	if len(summary.Categories) > 0 {
		fmt.Fprintln(stdout, "\nBy category:")
		for _, c := range summary.Categories {
			fmt.Fprintf(stdout, "  %-24s £%9.2f  %5.1f%%  (%d)\n", c.Category, c.Total, c.Percentage, c.Count)
		}
	}
	if len(summary.MonthlyBreakdown) > 0 {
		fmt.Fprintln(stdout, "\nBy month:")
		for _, m := range summary.MonthlyBreakdown {
			fmt.Fprintf(stdout, "  %s  £%9.2f  (%d)\n", m.Month, m.Total, m.Count)
		}
	}
	return nil
}

func printReceiptLine(w io.Writer, r models.Receipt) {
	day := "          "
	if r.Date != nil {
		day = r.Date.Format("2006-01-02")
	}
	vendor := r.Vendor
	if vendor == "" {
		vendor = "(unprocessed)"
	}
	fmt.Fprintf(w, "%5d  %s  %-24s £%9.2f  %s\n", r.ID, day, vendor, r.TotalAmount, r.Status)
}

func printReceiptDetail(w io.Writer, r models.Receipt) {
	fmt.Fprintf(w, "Receipt %d (%s)\n", r.ID, r.Status)
	if r.Vendor != "" {
		fmt.Fprintf(w, "  Vendor:    %s\n", r.Vendor)
	}
	if r.Date != nil {
		fmt.Fprintf(w, "  Date:      %s\n", r.Date.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "  Total:     £%.2f\n", r.TotalAmount)
	if r.TaxAmount != 0 {
		fmt.Fprintf(w, "  VAT:       £%.2f\n", r.TaxAmount)
	}
	if r.Category != "" {
		fmt.Fprintf(w, "  Category:  %s\n", r.Category)
	}
	if r.Notes != "" {
		fmt.Fprintf(w, "  Notes:     %s\n", r.Notes)
	}
	business := "personal"
	if r.IsBusiness == 1 {
		business = "business"
	}
	fmt.Fprintf(w, "  Type:      %s\n", business)
	fmt.Fprintf(w, "  Image:     %s\n", r.ImageURL)
}
