package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"mailcheck/internal/credentials"
)

func runAuth(args []string) error {
	if len(args) == 0 {
		printAuthUsage()
		return nil
	}
	switch args[0] {
	case "set-token":
		return runAuthSetToken(args[1:])
	case "clear":
		return runAuthClear(args[1:])
	case "status":
		return runAuthStatus(args[1:])
	case "help", "-h", "--help":
		printAuthUsage()
		return nil
	default:
		printAuthUsage()
		return fmt.Errorf("unknown auth subcommand %q", args[0])
	}
}

func runAuthSetToken(args []string) error {
	fs := flag.NewFlagSet("auth set-token", flag.ContinueOnError)
	common := addCommonFlags(fs)
	token := fs.String("token", "", "bearer token (prompted when omitted)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := common.runtime()
	if err != nil {
		return err
	}
	value := strings.TrimSpace(*token)
	if value == "" {
		value, err = promptToken()
		if err != nil {
			return err
		}
	}
	if err := credentials.SetToken(rt.ServerURL, value); err != nil {
		return err
	}
	fmt.Printf("token stored for %s\n", rt.ServerURL)
	return nil
}

func runAuthClear(args []string) error {
	fs := flag.NewFlagSet("auth clear", flag.ContinueOnError)
	common := addCommonFlags(fs)
	yes := fs.Bool("yes", false, "skip confirmation")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := common.runtime()
	if err != nil {
		return err
	}
	if !*yes {
		ok, err := promptConfirm(fmt.Sprintf("remove stored token for %s? [y/N] ", rt.ServerURL))
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("aborted")
		}
	}
	if err := credentials.ClearToken(rt.ServerURL); err != nil {
		return err
	}
	fmt.Printf("token removed for %s\n", rt.ServerURL)
	return nil
}

func runAuthStatus(args []string) error {
	fs := flag.NewFlagSet("auth status", flag.ContinueOnError)
	common := addCommonFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := common.runtime()
	if err != nil {
		return err
	}
	token, err := credentials.Token(rt.ServerURL)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"server_url": rt.ServerURL,
			"has_token":  token != "",
		})
	}
	fmt.Printf("server_url: %s\n", rt.ServerURL)
	fmt.Printf("token: %s\n", yesNo(token != ""))
	return nil
}

func printAuthUsage() {
	fmt.Println("auth commands:")
	fmt.Println("  auth set-token [--token T] [--server URL]")
	fmt.Println("  auth clear [--yes] [--server URL]")
	fmt.Println("  auth status [--json] [--server URL]")
}
