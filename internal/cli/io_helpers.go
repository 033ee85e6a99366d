package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptToken asks for a bearer token. A pasted "Bearer " prefix is dropped.
func promptToken() (string, error) {
	if !stdinIsTTY() {
		return "", errors.New("token is required (pass --token in non-interactive mode)")
	}
	line, err := readLine("token: ")
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(strings.TrimPrefix(line, "Bearer "))
	if token == "" {
		return "", errors.New("token is required")
	}
	return token, nil
}

func promptConfirm(prompt string) (bool, error) {
	if !stdinIsTTY() {
		return false, errors.New("confirmation required (rerun with --yes in non-interactive mode)")
	}
	answer, err := readLine(prompt)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

func stdinIsTTY() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// formatBytesIEC renders result file sizes, e.g. "2.0 KiB".
func formatBytesIEC(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(max(n, 0), 10) + " B"
	}
	value, exp := float64(n)/unit, 0
	for value >= unit && exp < 5 {
		value /= unit
		exp++
	}
	return strconv.FormatFloat(value, 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}

// formatPercent prints backend progress with at most one decimal, as the
// backend reports it (no clamping).
func formatPercent(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64) + "%"
}
