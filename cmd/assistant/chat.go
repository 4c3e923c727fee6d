// In file: cmd/assistant/chat.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dileep-u-k/notion-assistant/internal/knowledge"
	"github.com/dileep-u-k/notion-assistant/internal/memory"
	"github.com/dileep-u-k/notion-assistant/internal/orchestrator"
	"github.com/dileep-u-k/notion-assistant/internal/tools"
)

const (
	memoryPreviewCount  = 5
	memoryPreviewLength = 150
	pageTitleLength     = 50
	contentPreviewChars = 500
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	failStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

const chatLongDesc string = `Chat with your Notion workspace in the terminal.

Commands:
  quit, exit, bye   Leave the chat
  memory            Show your most recent stored conversation turns
  clear             Forget everything stored for you
  tools             List the Notion operations the assistant can use
  reload            Choose Notion pages (and databases) to load into memory
  content           Show what was loaded from Notion

At startup you are asked which pages to load, unless --no-load is given.
Pages are chosen by number: "1,3,5", a range such as "1-5", "all" or "none".`

func newChatCmd() *cobra.Command {
	var userName string
	var plain, noLoad bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with your Notion workspace in the terminal",
		Long:  chatLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			r := &repl{
				in:        bufio.NewScanner(os.Stdin),
				out:       cmd.OutOrStdout(),
				chat:      a.orch,
				memory:    a.memory,
				registry:  a.registry,
				loader:    a.knowledge,
				render:    renderMarkdown,
				loadFirst: !noLoad,
			}
			if plain {
				r.render = nil
			}
			return r.run(ctx, userName)
		},
	}
	cmd.Flags().StringVarP(&userName, "user", "u", "", "Your name; memories are kept per name")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print replies without markdown rendering")
	cmd.Flags().BoolVar(&noLoad, "no-load", false, "Skip choosing Notion content to load at startup")
	return cmd
}

// ContentLoader lists Notion pages and loads chosen content into a conversation's memory.
type ContentLoader interface {
	Pages(ctx context.Context) ([]knowledge.PageRef, error)
	Load(ctx context.Context, conversationID string, pages []knowledge.PageRef, includeDatabases bool) (*knowledge.Snapshot, error)
}

// repl is the interactive chat loop.
type repl struct {
	in        *bufio.Scanner
	out       io.Writer
	chat      Chatter
	memory    MemoryStore
	registry  interface{ ListDescriptors() []tools.Tool }
	loader    ContentLoader
	render    func(string) (string, error)
	loadFirst bool

	loaded *knowledge.Snapshot
}

type inputLine struct {
	text string
	err  error
}

// readLine returns the next input line, io.EOF at the end of input, or the context's
// error once it is done. Only the reading goroutine touches the scanner.
func (r *repl) readLine(ctx context.Context) (string, error) {
	ch := make(chan inputLine, 1)
	go func() {
		if r.in.Scan() {
			ch <- inputLine{text: r.in.Text()}
			return
		}
		err := r.in.Err()
		if err == nil {
			err = io.EOF
		}
		ch <- inputLine{err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l := <-ch:
		return l.text, l.err
	}
}

// endOfInput turns the end of stdin or an interrupt into a clean exit.
func endOfInput(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (r *repl) run(ctx context.Context, userName string) error {
	for strings.TrimSpace(userName) == "" {
		fmt.Fprint(r.out, "\nPlease enter your name: ")
		text, err := r.readLine(ctx)
		if err != nil {
			return endOfInput(err)
		}
		userName = text
	}
	conversationID := memory.ConversationID(userName)
	display := strings.TrimPrefix(conversationID, "user_")

	fmt.Fprintf(r.out, "\nNotion Assistant ready! %s\n", dimStyle.Render("(user: "+conversationID+")"))
	fmt.Fprintln(r.out, dimStyle.Render("Commands: quit, memory, clear, tools, reload, content"))

	if r.loadFirst {
		if err := r.reload(ctx, conversationID); err != nil {
			return endOfInput(err)
		}
	}

	for {
		fmt.Fprint(r.out, "\n"+userStyle.Render(display+"> "))
		text, err := r.readLine(ctx)
		if err != nil {
			return endOfInput(err)
		}
		input := strings.TrimSpace(text)
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "quit", "exit", "bye":
			fmt.Fprintln(r.out, "Goodbye! Your conversation has been saved.")
			return nil
		case "memory":
			r.showMemories(ctx, conversationID)
			continue
		case "clear":
			r.clearMemories(ctx, conversationID)
			continue
		case "tools":
			r.showTools()
			continue
		case "reload":
			if err := r.reload(ctx, conversationID); err != nil {
				return endOfInput(err)
			}
			continue
		case "content":
			r.showContent()
			continue
		}

		out := r.chat.Handle(ctx, conversationID, input)
		r.printReply(out)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *repl) printReply(out *orchestrator.Outcome) {
	fmt.Fprintln(r.out, assistantStyle.Render("assistant>"))
	if out.State == orchestrator.StateFailed {
		fmt.Fprintln(r.out, failStyle.Render(out.Reply))
		return
	}
	text := out.Reply
	if r.render != nil {
		if rendered, err := r.render(text); err == nil {
			text = rendered
		}
	}
	fmt.Fprintln(r.out, strings.TrimRight(text, "\n"))
	if len(out.ToolCalls) > 0 {
		fmt.Fprintln(r.out, dimStyle.Render("used: "+strings.Join(out.ToolCalls, ", ")))
	}
}

// showMemories prints the most recent stored turns, newest first.
func (r *repl) showMemories(ctx context.Context, conversationID string) {
	turns, err := r.memory.All(ctx, conversationID)
	if err != nil {
		fmt.Fprintln(r.out, failStyle.Render("Could not read your memories. Check MEM0AI_API_KEY and your network connection."))
		return
	}
	if len(turns) == 0 {
		fmt.Fprintln(r.out, "No memories stored for you yet.")
		return
	}

	fmt.Fprintf(r.out, "Your conversation memories (%d total):\n", len(turns))
	shown := 0
	for i := len(turns) - 1; i >= 0 && shown < memoryPreviewCount; i-- {
		t := turns[i]
		shown++
		fmt.Fprintf(r.out, "%d. [%s] %s\n", shown, t.Role, preview(t.Content, memoryPreviewLength))
	}
}

func (r *repl) clearMemories(ctx context.Context, conversationID string) {
	if err := r.memory.Clear(ctx, conversationID); err != nil {
		fmt.Fprintln(r.out, failStyle.Render("Could not clear your memories. Please try again."))
		return
	}
	fmt.Fprintln(r.out, "Memory cleared.")
}

func (r *repl) showTools() {
	for _, d := range r.registry.ListDescriptors() {
		fmt.Fprintf(r.out, "- %s: %s\n", d.Function.Name, d.Function.Description)
	}
}

// reload asks which Notion content to load and stores it in the conversation's memory.
// It only returns an error when input ends or the context is done.
func (r *repl) reload(ctx context.Context, conversationID string) error {
	if r.loader == nil {
		fmt.Fprintln(r.out, "Loading Notion content is not available.")
		return nil
	}

	fmt.Fprint(r.out, "\nLoad database content? (y/n): ")
	answer, err := r.readLine(ctx)
	if err != nil {
		return err
	}
	includeDatabases := strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y")

	pages, err := r.loader.Pages(ctx)
	if err != nil {
		fmt.Fprintln(r.out, failStyle.Render("Could not list your Notion pages. Check NOTION_API_KEY and that pages are shared with the integration."))
		return nil
	}

	var chosen []knowledge.PageRef
	if len(pages) == 0 {
		fmt.Fprintln(r.out, "No pages are shared with the integration.")
	} else {
		fmt.Fprintf(r.out, "\nAvailable pages (%d):\n", len(pages))
		for i, p := range pages {
			fmt.Fprintf(r.out, "%3d. %s\n", i+1, preview(p.Title, pageTitleLength))
		}
		fmt.Fprintln(r.out, dimStyle.Render(`Select pages by number ("1,3,5"), range ("1-5"), "all" or "none".`))
		fmt.Fprint(r.out, "Pages to load: ")
		selection, err := r.readLine(ctx)
		if err != nil {
			return err
		}
		picked, err := knowledge.ParseSelection(selection, len(pages))
		if err != nil {
			fmt.Fprintln(r.out, failStyle.Render(fmt.Sprintf("%v. Nothing was loaded; type reload to try again.", err)))
			return nil
		}
		for _, i := range picked {
			chosen = append(chosen, pages[i])
		}
	}

	if !includeDatabases && len(chosen) == 0 {
		fmt.Fprintln(r.out, "Nothing selected, no content loaded.")
		return nil
	}

	fmt.Fprintln(r.out, dimStyle.Render("Loading Notion content..."))
	snap, err := r.loader.Load(ctx, conversationID, chosen, includeDatabases)
	if err != nil {
		fmt.Fprintln(r.out, failStyle.Render("Could not load Notion content: "+err.Error()))
		return nil
	}
	r.loaded = snap
	if snap.Empty() {
		fmt.Fprintln(r.out, "No content could be loaded.")
	} else {
		fmt.Fprintf(r.out, "Loaded %d characters of Notion content, %d entries stored in memory.\n",
			utf8.RuneCountInString(snap.Content()), snap.Stored)
	}
	r.printSources(snap)
	return nil
}

// showContent summarizes the most recent load.
func (r *repl) showContent() {
	if r.loaded.Empty() {
		fmt.Fprintln(r.out, "No Notion content is currently loaded.")
		return
	}
	content := r.loaded.Content()
	fmt.Fprintf(r.out, "Notion content loaded at %s: %d databases, %d pages, %d characters.\n",
		r.loaded.LoadedAt.Local().Format("15:04:05"),
		len(r.loaded.Loaded(knowledge.KindDatabase)),
		len(r.loaded.Loaded(knowledge.KindPage)),
		utf8.RuneCountInString(content))
	r.printSources(r.loaded)
	fmt.Fprintln(r.out, dimStyle.Render(preview(content, contentPreviewChars)))
}

func (r *repl) printSources(snap *knowledge.Snapshot) {
	for _, group := range []struct {
		label   string
		sources []knowledge.Source
	}{
		{"Databases", snap.Loaded(knowledge.KindDatabase)},
		{"Pages", snap.Loaded(knowledge.KindPage)},
	} {
		if len(group.sources) == 0 {
			continue
		}
		fmt.Fprintf(r.out, "%s (%d):\n", group.label, len(group.sources))
		for _, src := range group.sources {
			fmt.Fprintf(r.out, "  - %s\n", preview(src.Title, pageTitleLength))
		}
	}
	if failed := snap.Failed(); len(failed) > 0 {
		fmt.Fprintln(r.out, failStyle.Render(fmt.Sprintf("Could not load (%d):", len(failed))))
		for _, src := range failed {
			fmt.Fprintf(r.out, "  - %s: %v\n", src.Title, src.Err)
		}
	}
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// renderMarkdown renders a reply for terminal display using glamour.
func renderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}
	return r.Render(content)
}
