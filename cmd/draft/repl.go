package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/client"
	"github.com/THoguet/random-lol/internal/session"
)

const helpText = `commands:
  roll                 roll every active lane
  reroll <lane> [!]    reroll one lane (! forces it in solo mode)
  toggle <lane>        disable or enable a lane
  select <lane>        claim a lane in the room
  pool <lane>          champions still available for a lane
  fearless on|off      fearless draft
  reset                clear the fearless blacklist
  create | join <code> | leave
  show | copy | help | quit`

var errQuit = errors.New("quit")

type repl struct {
	state  *session.State
	client *client.Client
	name   string
	out    io.Writer
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(r.out, helpText)
	r.show()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		err := r.exec(ctx, strings.Fields(scanner.Text()))
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *repl) exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}
	lane := func() (champion.Lane, error) {
		if len(args) < 2 {
			return "", fmt.Errorf("%s needs a lane", args[0])
		}
		return champion.ParseLane(args[1])
	}

	switch strings.ToLower(args[0]) {
	case "roll":
		return r.after(r.state.RollAssignments(ctx))
	case "reroll":
		l, err := lane()
		if err != nil {
			return err
		}
		force := len(args) > 2 && args[2] == "!"
		return r.after(r.state.ChangeChampion(ctx, l, force))
	case "toggle":
		l, err := lane()
		if err != nil {
			return err
		}
		return r.after(r.state.ToggleLane(ctx, l))
	case "select":
		l, err := lane()
		if err != nil {
			return err
		}
		return r.after(r.state.SelectLane(ctx, l))
	case "pool":
		l, err := lane()
		if err != nil {
			return err
		}
		names := []string{}
		for _, c := range r.state.NotUsed(l) {
			names = append(names, c.Name)
		}
		fmt.Fprintf(r.out, "%s: %s\n", l.Label(), strings.Join(names, ", "))
		return nil
	case "fearless":
		if len(args) < 2 || (args[1] != "on" && args[1] != "off") {
			return errors.New("fearless takes on or off")
		}
		return r.after(r.state.SetFearlessDraft(ctx, args[1] == "on"))
	case "reset":
		return r.after(r.state.ResetBlacklist(ctx))
	case "create":
		if r.client == nil {
			return errNoServer
		}
		id, err := r.client.CreateRoom(ctx, r.name)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "room %s\n", id)
		return nil
	case "join":
		if r.client == nil {
			return errNoServer
		}
		if len(args) < 2 {
			return errors.New("join needs a room code")
		}
		return r.client.JoinRoom(ctx, args[1], r.name)
	case "leave":
		if r.client == nil {
			return errNoServer
		}
		return r.after(r.client.LeaveRoom(ctx))
	case "show":
		r.show()
		return nil
	case "copy":
		v := r.state.View()
		if !v.CanCopyDraft() {
			return errors.New("nothing to copy yet")
		}
		fmt.Fprintln(r.out, v.DraftText())
		return nil
	case "help":
		fmt.Fprintln(r.out, helpText)
		return nil
	case "quit", "exit":
		return errQuit
	}
	return fmt.Errorf("unknown command %q, try help", args[0])
}

var errNoServer = errors.New("start with -server to play in rooms")

// after prints the draft once a solo change succeeded. Room changes are
// shown when the server's state arrives instead.
func (r *repl) after(err error) error {
	if err != nil {
		return err
	}
	if !r.state.View().Multiplayer {
		r.show()
	}
	return nil
}

func (r *repl) show() {
	v := r.state.View()
	if v.Multiplayer {
		fmt.Fprintf(r.out, "room %s, %d player(s)\n", v.RoomID, len(v.Players))
	}
	for _, lv := range v.Lanes() {
		switch {
		case lv.Disabled:
			fmt.Fprintf(r.out, "  %-10s (disabled)\n", lv.Label)
		case lv.Champion == nil:
			fmt.Fprintf(r.out, "  %-10s -\n", lv.Label)
		default:
			fmt.Fprintf(r.out, "  %-10s %s [%s]\n", lv.Label, lv.Champion.Name, lv.RolesText)
		}
	}
	fmt.Fprintf(r.out, "rerolls %d/%d (%.0f%%)", v.RerollBank, v.RerollBankMax, v.RerollPercentage())
	if v.Fearless {
		fmt.Fprintf(r.out, ", fearless, %d blacklisted", len(v.Blacklist))
	}
	fmt.Fprintln(r.out)
}
