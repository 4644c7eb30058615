package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) prompt() string {
	s := string(a.watcher.Mode())
	if a.currentSite != nil {
		s = a.currentSite.ID + " " + s
	}
	return fmt.Sprintf("sitesync (%s)> ", s)
}

// Root runs the command loop until EOF or "exit".
func (a *App) Root(ctx context.Context) {
	fmt.Println("sitesync CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(a.prompt())
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			fmt.Println("Available commands: sites, site <id>, reqs, capture <req-id> <file>,")
			fmt.Println("  list, delete <artifact-id>, form <name=value ...>, queue,")
			fmt.Println("  sync, reconcile, upload, exit")

		case "sites":
			a.Sites(ctx)

		case "site":
			if len(args) != 1 {
				fmt.Println("usage: site <id>")
				continue
			}
			if err := a.setCurrentSite(ctx, args[0]); err != nil {
				fmt.Printf("error: %v\n", err)
			}

		case "reqs":
			a.Requirements(ctx)

		case "capture":
			if len(args) != 2 {
				fmt.Println("usage: capture <req-id> <file>")
				continue
			}
			a.Capture(ctx, args[0], args[1])

		case "list":
			a.List(ctx)

		case "delete":
			if len(args) != 1 {
				fmt.Println("usage: delete <artifact-id>")
				continue
			}
			a.Delete(ctx, args[0])

		case "form":
			a.Form(ctx, args)

		case "queue":
			a.Queue(ctx)

		case "sync":
			a.Sync(ctx)

		case "reconcile":
			a.Reconcile(ctx)

		case "upload":
			a.Upload(ctx)

		case "exit":
			return

		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}
