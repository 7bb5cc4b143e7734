/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gotranslator/internal/config"
	"gotranslator/internal/crash"
	applog "gotranslator/internal/log"
	"gotranslator/internal/telemetry"
	"gotranslator/internal/version"
)

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintln(w, "GoTranslator: side-by-side novel translation")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  gotranslator version|-v|--version                  Show version")
	fmt.Fprintln(w, "  gotranslator init <dir> <title> [<url>]            Create a novel workspace at <dir>")
	fmt.Fprintln(w, "  gotranslator progress [<dir>]                      Show per-chapter translation progress")
	fmt.Fprintln(w, "  gotranslator translate <chapter> <n> <text>        Set the translation of paragraph n and save")
	fmt.Fprintln(w, "  gotranslator note <chapter> <n> <note> [<word>...]  Footnote paragraph n, highlighting words")
	fmt.Fprintln(w, "  gotranslator search <dir> <query> [<kind>]         Full-text search (source|translation|note)")
	fmt.Fprintln(w, "  gotranslator export <dir> [pdf|xlsx|epub...]       Write bilingual exports under <dir>/exports")
	fmt.Fprintln(w, "  gotranslator scrape <index-url> [<parent-dir>]     Import chapters from a novel index page")
	fmt.Fprintln(w, "  gotranslator restore <chapter>                     Restore the newest source backup")
	fmt.Fprintln(w, "  gotranslator history <chapter> [latest]            List saved translations or print the newest")
	fmt.Fprintln(w, "  gotranslator recover <chapter> [discard]           Apply or drop an autosaved draft")
	fmt.Fprintln(w, "  gotranslator reindex <dir>                         Check and rebuild the search index")
	fmt.Fprintln(w, "  gotranslator serve [<dir>]                         Run the local HTTP API")
	fmt.Fprintln(w, "  gotranslator token set <value>|clear               Manage the API token in the OS keychain")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes one command and returns the process exit code.
func run(args []string, out io.Writer) int {
	ws := &crash.Workspace{}
	defer crash.Recover(ws)

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}
	cfg, token, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", cfgErr))
	}

	tc := telemetry.FromEnv()
	tc.OptIn = tc.OptIn || cfg.General.TelemetryOptIn
	telemetry.SetDefault(tc)
	tel := telemetry.Default()
	defer func() {
		tel.Summarize()
		tel.Flush(context.Background())
		tel.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, token: token, out: out, ws: ws, tel: tel, log: l}
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage(out)
		return 0
	}
	var err error
	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintln(out, "GoTranslator")
		fmt.Fprintln(out, version.String())
		return 0
	case "help", "-h", "--help":
		usage(out)
		return 0
	case "init":
		err = a.initNovel(args[1:])
	case "progress":
		err = a.progress(args[1:])
	case "translate":
		err = a.translate(ctx, args[1:])
	case "note":
		err = a.note(ctx, args[1:])
	case "search":
		err = a.search(ctx, args[1:])
	case "export":
		err = a.export(args[1:])
	case "scrape":
		err = a.scrape(ctx, args[1:])
	case "restore":
		err = a.restore(args[1:])
	case "history":
		err = a.history(ctx, args[1:])
	case "recover":
		err = a.recoverDraft(ctx, args[1:])
	case "reindex":
		err = a.reindex(ctx, args[1:])
	case "serve":
		err = a.serve(ctx, args[1:])
	case "token":
		err = a.tokenCmd(args[1:])
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	if err == nil {
		return 0
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintln(out, err)
		usage(out)
		return 2
	}
	l.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
	fmt.Fprintln(out, "Error:", err)
	return 1
}
