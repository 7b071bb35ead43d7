package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface defines the command surface the REPL dispatches to. App
// satisfies it; tests provide a lightweight stub.
type execIface interface {
	Upload(ctx context.Context, args []string) error
	History(ctx context.Context) error
	Delete(ctx context.Context, args []string) error
	Albums(ctx context.Context) error
	Album(ctx context.Context, args []string) error
	WhoAmI(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
}

const helpText = `Available commands:
  upload <url> [origin]  upload an image to Google Photos
  history                list recent uploads
  delete <id>            remove an entry from the history
  albums                 list albums created by photodrop
  album <id|none>        choose the album uploads go to
  whoami                 show the signed-in account
  login                  sign in to Google
  logout                 sign out and clear local data
  status                 show queue and account state
  exit                   leave the program`

// runREPL reads commands from scanner and dispatches them to a until EOF or
// "exit" / "quit". Handler errors are reported by the handlers themselves.
func runREPL(ctx context.Context, a execIface, out io.Writer, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if status := statusFn(); status != "" {
			fmt.Fprintf(out, "photodrop %s> ", status)
		} else {
			fmt.Fprint(out, "photodrop> ")
		}
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "help", "?":
			fmt.Fprintln(out, helpText)
		case "upload", "u":
			_ = a.Upload(ctx, args)
		case "history", "h":
			_ = a.History(ctx)
		case "delete":
			_ = a.Delete(ctx, args)
		case "albums":
			_ = a.Albums(ctx)
		case "album":
			_ = a.Album(ctx, args)
		case "whoami":
			_ = a.WhoAmI(ctx)
		case "login":
			_ = a.Login(ctx)
		case "logout":
			_ = a.Logout(ctx)
		case "status":
			_ = a.Status(ctx)
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}
	}
}
