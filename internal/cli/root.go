package cli

import (
	"fmt"

	"mailcheck/internal/version"
)

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "validate":
		return runValidate(args[1:])
	case "status":
		return runStatus(args[1:])
	case "download":
		return runDownload(args[1:])
	case "history":
		return runHistory(args[1:])
	case "settings":
		return runSettings(args[1:])
	case "auth":
		return runAuth(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "version", "--version":
		fmt.Println("mailcheck " + version.Value)
		return nil
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("mailcheck: validate email columns in CSV files against a validation backend")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  mailcheck settings set --server http://localhost:5000")
	fmt.Println("  mailcheck validate")
	fmt.Println("  mailcheck validate --headless --file contacts.csv --column email --output results.csv")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  validate  pick a CSV, map the email column, submit and watch the task")
	fmt.Println("  status    one-shot status query for a task")
	fmt.Println("  download  save the result CSV of a completed task")
	fmt.Println("  history   list tasks submitted from this machine")
	fmt.Println("  settings  show/update client settings")
	fmt.Println("  auth      manage the backend bearer token in the system keychain")
	fmt.Println("  doctor    check settings, history database and backend reachability")
	fmt.Println("  version   print the client version")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - validate runs headless automatically when stdin is not a terminal")
	fmt.Println("  - Set MAILCHECK_DEBUG=<file> to capture logs while the TUI is running")
}
