package app

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/client/analyze"
	"github.com/atinyakov/PicTag/internal/client/generate"
	"github.com/atinyakov/PicTag/internal/client/ui"
)

const helpText = `Account:   signin [email] | signup [email] | google | reset [email] | reset-confirm | signout | close
Analyze:   select <path> | hero <path> | analyze | home
History:   history | view <n> | delete <n> | delete-all | close
Generate:  prompt [text] | generate [-size S] [-quality Q] [-style S] | download | again
Other:     help | exit`

// Run reads commands from scanner until exit or end of input. prompt
// returns the text shown before each command.
func (a *App) Run(ctx context.Context, scanner *bufio.Scanner, prompt func() string) {
	for {
		fmt.Fprint(a.Out, prompt())
		if !scanner.Scan() {
			fmt.Fprintln(a.Out)
			return
		}
		if quit := a.Execute(ctx, scanner.Text()); quit {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// Execute runs one command line and reports whether the shell should stop.
func (a *App) Execute(ctx context.Context, line string) bool {
	args := strings.Fields(strings.TrimSpace(line))
	if len(args) == 0 {
		return false
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(a.Out, helpText)
	case "signin", "login":
		a.signIn(ctx, rest)
	case "signup", "register":
		a.signUp(ctx, rest)
	case "google":
		a.Gateway.SignInWithProvider(ctx, a.View.ActiveModal(), a.askCode)
	case "reset":
		a.reset(ctx, rest)
	case "reset-confirm":
		a.resetConfirm(ctx)
	case "signout", "logout":
		a.Gateway.SignOut(ctx)
	case "close":
		a.View.CloseModal()
	case "select", "open":
		if file, ok := a.loadFile(rest); ok {
			a.Analyze.Select(file)
		}
	case "hero":
		if file, ok := a.loadFile(rest); ok {
			a.Analyze.Hero(ctx, file)
		}
	case "analyze":
		a.Analyze.Submit(ctx)
	case "home":
		a.clear()
		fmt.Fprintln(a.Out, "Cleared.")
	case "history":
		if a.History.Open(ctx) && a.History.Rows() > 0 {
			fmt.Fprintf(a.Out, "%d analyses listed. Use 'view <n>' or 'delete <n>'.\n", a.History.Rows())
		}
	case "view", "delete":
		id, ok := a.row(cmd, rest)
		if !ok {
			return false
		}
		if cmd == "view" {
			a.History.Show(ctx, id)
		} else {
			a.History.Delete(ctx, id)
		}
	case "delete-all":
		_, _ = a.History.DeleteAll(ctx)
	case "prompt":
		a.prompt(rest)
	case "generate":
		a.generate(ctx, rest)
	case "download":
		if path, ok := a.Generate.Download(ctx); ok {
			fmt.Fprintf(a.Out, "Saved to %s\n", path)
		}
	case "again":
		a.Generate.Again()
	case "exit", "quit":
		fmt.Fprintln(a.Out, "Bye")
		return true
	default:
		fmt.Fprintln(a.Out, "Unknown command. Type 'help' for a list of commands.")
	}
	return false
}

// ask reads a line and treats end of input as an empty answer.
func (a *App) ask(label string) string {
	s, err := a.Input.Line(label)
	if err != nil && !errors.Is(err, io.EOF) {
		a.Log.Warn("reading input failed", zap.Error(err))
	}
	return s
}

func (a *App) askPassword(label string) string {
	s, err := a.Input.Password(label)
	if err != nil && !errors.Is(err, io.EOF) {
		a.Log.Warn("reading password failed", zap.Error(err))
	}
	return s
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (a *App) signIn(ctx context.Context, args []string) {
	if a.View.ActiveModal() != ui.ModalSignIn {
		a.View.OpenModal(ui.ModalSignIn)
	}
	email := firstArg(args)
	if email == "" {
		email = a.ask("Email: ")
	}
	password := a.askPassword("Password: ")
	a.Gateway.SignIn(ctx, email, password)
}

func (a *App) signUp(ctx context.Context, args []string) {
	if a.View.ActiveModal() != ui.ModalSignUp {
		a.View.OpenModal(ui.ModalSignUp)
	}
	email := firstArg(args)
	if email == "" {
		email = a.ask("Email: ")
	}
	password := a.askPassword("Password: ")
	confirm := a.askPassword("Confirm password: ")
	a.Gateway.SignUp(ctx, email, password, confirm)
}

// askCode is the terminal rendition of the consent popup.
func (a *App) askCode(authURL string) (string, error) {
	fmt.Fprintf(a.Out, "Open this page to continue with Google:\n  %s\n", authURL)
	code, err := a.Input.Line("Paste the authorization code (empty to cancel): ")
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	return code, err
}

func (a *App) reset(ctx context.Context, args []string) {
	email := firstArg(args)
	if email == "" {
		email = a.ask("Email: ")
	}
	a.Gateway.ResetPassword(ctx, email)
}

func (a *App) resetConfirm(ctx context.Context) {
	token := a.ask("Reset code: ")
	password := a.askPassword("New password: ")
	a.Gateway.ConfirmReset(ctx, token, password)
}

func (a *App) loadFile(args []string) (*analyze.File, bool) {
	if a.State.User() == nil {
		a.View.OpenModal(ui.ModalSignIn)
		return nil, false
	}
	path := strings.Join(args, " ")
	if path == "" {
		a.View.Alert(analyze.MsgChooseFile)
		return nil, false
	}
	file, err := analyze.LoadFile(path)
	if err != nil {
		a.Log.Warn("reading image failed", zap.String("path", path), zap.Error(err))
		a.View.Notify("Cannot read "+path+": "+err.Error(), ui.KindError)
		return nil, false
	}
	return file, true
}

func (a *App) row(cmd string, args []string) (string, bool) {
	if len(args) == 0 {
		fmt.Fprintf(a.Out, "Usage: %s <n>\n", cmd)
		return "", false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(a.Out, "Usage: %s <n>\n", cmd)
		return "", false
	}
	id, ok := a.History.RowID(n)
	if !ok {
		fmt.Fprintf(a.Out, "No row %d. Run 'history' to list your analyses.\n", n)
		return "", false
	}
	return id, true
}

func (a *App) prompt(args []string) {
	if len(args) > 0 {
		a.State.SetPrompt(strings.Join(args, " "))
	}
	if p := a.State.Prompt(); p != "" {
		a.View.ShowPrompt(p)
		return
	}
	fmt.Fprintln(a.Out, "The prompt is empty. Analyze an image or set one with 'prompt <text>'.")
}

// Options returns the generation options used when generate has no flags.
func (a *App) Options() generate.Options {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.options
}

func (a *App) generate(ctx context.Context, args []string) {
	opts := a.Options()
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	fs.StringVar(&opts.Size, "size", opts.Size, "image size, e.g. 1024x1024")
	fs.StringVar(&opts.Quality, "quality", opts.Quality, "standard | hd")
	fs.StringVar(&opts.Style, "style", opts.Style, "vivid | natural")
	if err := fs.Parse(args); err != nil {
		return
	}
	if fs.NArg() > 0 {
		a.State.SetPrompt(strings.Join(fs.Args(), " "))
	}

	a.mu.Lock()
	a.options = opts
	a.mu.Unlock()

	a.Generate.Submit(ctx, a.State.Prompt(), opts)
}
