package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"

	"github.com/buildpal-oss/buildpal"
)

// watchAndRescan re-runs a scan every time sourcePath or any of its
// include directories changes on disk, dropping the Content Cache
// before each re-scan so the next run observes the new bytes.
//
// Grounded on standardbeagle-lci/internal/indexing/watcher.go's
// fsnotify.Watcher-plus-debounce shape, trimmed to this command's
// single-scan-path use (no batching, no per-file event-type dispatch —
// any write anywhere in the watched set just triggers one re-scan).
func watchAndRescan(cache *buildpal.Cache, preprocessor *buildpal.Preprocessor, pctx *buildpal.PreprocessingContext, sourcePath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watchSet := map[string]struct{}{filepath.Dir(sourcePath): {}}
	for _, p := range rootConfiguration.includePaths {
		watchSet[p] = struct{}{}
	}
	for _, p := range rootConfiguration.systemIncludePaths {
		watchSet[p] = struct{}{}
	}
	for dir := range watchSet {
		if err := watcher.Add(dir); err != nil {
			fmt.Println(color.YellowString("bpscan:"), "not watching", dir, "-", err)
		}
	}

	const debounce = 150 * time.Millisecond
	var pending *time.Timer
	rescan := func() {
		cache.ClearContentCache()
		started := time.Now()
		result, err := preprocessor.Scan(context.Background(), pctx, sourcePath)
		if err != nil {
			fmt.Println(color.RedString("bpscan:"), "rescan failed:", err)
			return
		}
		printResult(result)
		printStats(cache.Stats(), time.Since(started))
	}

	fmt.Println(color.CyanString("watching for changes, ctrl-c to stop"))
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(debounce, rescan)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Println(color.RedString("bpscan:"), "watch error:", err)
		}
	}
}
