package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"mailcheck/internal/backend"
	"mailcheck/internal/model"
)

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	common := addCommonFlags(fs)
	taskID := fs.String("task", "", "task id returned by the upload")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	id := strings.TrimSpace(*taskID)
	if id == "" {
		return errors.New("--task is required")
	}

	rt, err := common.runtime()
	if err != nil {
		return err
	}
	client := newClient(rt)
	resp, err := client.Status(context.Background(), id)
	if err != nil {
		return err
	}

	task := model.Task{
		ID:          id,
		Status:      model.NormalizeTaskStatus(resp.Status),
		Progress:    resp.Progress,
		ErrorDetail: resp.Error,
	}
	recordStatus(rt, task)

	downloadURL := ""
	if task.Status == model.StatusCompleted {
		downloadURL = client.DownloadURL(id)
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"task":         task,
			"raw_status":   resp.Status,
			"download_url": downloadURL,
		})
	}

	fmt.Printf("task: %s\n", task.ID)
	fmt.Printf("status: %s\n", task.Status)
	fmt.Printf("progress: %s\n", formatPercent(task.Progress))
	if task.ErrorDetail != "" {
		fmt.Printf("error: %s\n", task.ErrorDetail)
	}
	if downloadURL != "" {
		fmt.Printf("download: %s\n", downloadURL)
	}
	return nil
}

func runDownload(args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	common := addCommonFlags(fs)
	taskID := fs.String("task", "", "task id of a completed validation")
	output := fs.String("output", "", "destination file (default: <download_dir>/"+backend.ResultFileName+")")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	id := strings.TrimSpace(*taskID)
	if id == "" {
		return errors.New("--task is required")
	}

	rt, err := common.runtime()
	if err != nil {
		return err
	}
	path := resultPath(*output, rt.DownloadDir)
	n, err := saveResult(context.Background(), newClient(rt), id, path)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"task_id": id,
			"output":  path,
			"bytes":   n,
		})
	}
	fmt.Printf("saved %s to %s\n", formatBytesIEC(int64(n)), path)
	return nil
}

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	common := addCommonFlags(fs)
	limit := fs.Int("limit", 20, "maximum number of tasks to list (0 = all)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit < 0 {
		return errors.New("--limit must be >= 0")
	}

	rt, err := common.runtime()
	if err != nil {
		return err
	}
	store, err := openHistory(rt)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(*limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("no tasks recorded yet")
		return nil
	}
	for _, r := range records {
		fmt.Printf("%s  %-9s %6s  %s  column=%s headers=%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			formatPercent(r.Progress),
			r.FileName,
			defaultIfEmpty(r.EmailColumn, "-"),
			yesNo(r.HasHeaders),
		)
		fmt.Printf("    task %s", r.ID)
		if r.Error != "" {
			fmt.Printf("  error: %s", r.Error)
		}
		fmt.Println()
	}
	return nil
}
