// Command kartlog-import uploads a karting log export into the session store.
//
// Usage:
//
//	kartlog-import <userID>
//	kartlog-import import <userID>
//	kartlog-import migrate
//
// Use the import form for a user id that equals a subcommand name.
//
// The export and credential file locations come from IMPORT_INPUT_FILE and
// IMPORT_CREDENTIALS_FILE (or the --input and --credentials flags).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/kartlog/internal/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if msg := core.MapError(err); msg.Code != "ERR000" {
			fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		}
		os.Exit(1)
	}
}
