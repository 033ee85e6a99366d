package cli

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"mailcheck/internal/credentials"
	"mailcheck/internal/fsio"
	"mailcheck/internal/settings"
)

type doctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type doctorResult struct {
	OK     bool          `json:"ok"`
	Checks []doctorCheck `json:"checks"`
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	common := addCommonFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	res := diagnose(common)
	if *jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		for _, c := range res.Checks {
			mark := "ok  "
			if !c.OK {
				mark = "FAIL"
			}
			fmt.Printf("[%s] %s: %s\n", mark, c.Name, c.Message)
		}
	}
	if !res.OK {
		return fmt.Errorf("doctor found failing checks")
	}
	return nil
}

func diagnose(common commonFlags) doctorResult {
	checks := make([]doctorCheck, 0, 5)
	add := func(name string, err error, okMessage string) {
		c := doctorCheck{Name: name, OK: err == nil, Message: okMessage}
		if err != nil {
			c.Message = err.Error()
		}
		checks = append(checks, c)
	}

	path, err := settings.ResolvePath(*common.config)
	if err == nil {
		err = fsio.EnsureWritableDir(filepath.Dir(path))
	}
	add("directory:config", err, filepath.Dir(path)+" is writable")

	rt, err := common.runtime()
	add("settings", err, "loaded "+path)
	if err != nil {
		return summarize(checks)
	}

	store, err := openHistory(rt)
	if err == nil {
		err = store.Ping()
		_ = store.Close()
	}
	add("database:history", err, defaultIfEmpty(rt.DatabaseURL, "default sqlite")+" reachable")

	code, err := newClient(rt).Ping(context.Background())
	add("backend", err, fmt.Sprintf("%s answered HTTP %d", rt.ServerURL, code))

	// A missing token is fine; only an unreadable keychain is reported.
	token, err := credentials.Token(rt.ServerURL)
	add("auth:token", err, "token stored: "+yesNo(token != ""))

	return summarize(checks)
}

func summarize(checks []doctorCheck) doctorResult {
	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return doctorResult{OK: ok, Checks: checks}
}
