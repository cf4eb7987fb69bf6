package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"receiptvault/internal/api"
)

func runRegister(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Email address")
	name := fs.String("name", "", "Full name (optional)")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email")
	}

	password := *passwordFlag
	if password == "" {
		var err error
		password, err = promptPassword(stdin, stdout, "Password: ")
		if err != nil {
			return err
		}
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	env, err := newAppEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	user, err := env.client.Register(context.Background(), api.RegisterRequest{
		Email:    *email,
		Password: password,
		FullName: *name,
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Fprintf(stdout, "Account created for %s\n", user.Email)
	fmt.Fprintf(stdout, "Forward receipts to: %s\n", user.UniqueReceiptEmail)
	fmt.Fprintln(stdout, "Run 'receiptvault login' to sign in.")
	return nil
}

func runLogin(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Email address")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email")
	}

	password := *passwordFlag
	if password == "" {
		var err error
		password, err = promptPassword(stdin, stdout, "Password: ")
		if err != nil {
			return err
		}
	}

	env, err := newAppEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	result, err := env.client.Login(context.Background(), *email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := env.store.SetToken(result.AccessToken); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	if result.User != nil {
		if err := env.store.SetIdentity(result.User.Email, result.User.SubscriptionPlan); err != nil {
			return fmt.Errorf("record identity: %w", err)
		}
	}

	fmt.Fprintf(stdout, "Signed in as %s\n", *email)
	return nil
}

func runLogout(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := newAppEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.store.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	fmt.Fprintln(stdout, "Signed out.")
	return nil
}

func runWhoami(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := newAppEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	_, user, err := env.authenticate(context.Background(), stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Email:          %s\n", user.Email)
	if user.FullName != "" {
		fmt.Fprintf(stdout, "Name:           %s\n", user.FullName)
	}
	fmt.Fprintf(stdout, "Receipt inbox:  %s\n", user.UniqueReceiptEmail)
	fmt.Fprintf(stdout, "Plan:           %s\n", planLabel(user.SubscriptionPlan))
	return nil
}
