package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vedran77/relay/internal/client"
	"github.com/vedran77/relay/internal/domain"
)

var errQuit = errors.New("quit")

const help = `Commands:
  /register <email> <name> <password>   create an account
  /login <email> <password>             sign in
  /logout                               sign out
  /search <email>                       find a user by email
  /with <n>                             chat with search result n
  /open <n>                             open conversation n
  /back                                 leave the open conversation
  /photo <file> [text]                  send a photo
  /edit <n> | /cancel                   edit message n
  /delete <n>                           delete message n
  /pin <n> | /unpin                     pin message n
  /name <name>                          change your display name
  /avatar <file>                        change your avatar
  /quit
Anything else is sent to the open conversation.`

// commands turns input lines into client actions. Actions flash their own
// failures, so only errQuit is returned.
type commands struct {
	term *terminal
	auth *client.Authenticator
}

func (c *commands) run(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return c.send(ctx, client.Draft{Text: line})
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	args := strings.Fields(rest)

	switch name {
	case "help":
		c.term.printf("%s", help)
		return nil
	case "quit", "exit":
		return errQuit
	case "register":
		if len(args) != 3 {
			return c.usage("/register <email> <name> <password>")
		}
		c.auth.Register(ctx, domain.RegisterInput{Email: args[0], Username: args[1], Password: args[2]})
		return nil
	case "login":
		if len(args) != 2 {
			return c.usage("/login <email> <password>")
		}
		c.auth.Login(ctx, args[0], args[1])
		return nil
	}

	s := c.term.current()
	if s == nil {
		c.term.printf("! Sign in first")
		return nil
	}

	switch name {
	case "logout":
		s.SignOut(ctx)
	case "search":
		s.Directory.Search(ctx, rest)
	case "with":
		user, ok := c.term.result(number(args))
		if !ok {
			return c.usage("/with <n>")
		}
		s.StartConversation(ctx, user.ID)
	case "open":
		item, ok := c.term.item(number(args))
		if !ok {
			return c.usage("/open <n>")
		}
		s.Open(ctx, item.ID)
	case "back":
		s.Active.Back()
	case "photo":
		if len(args) == 0 {
			return c.usage("/photo <file> [text]")
		}
		att, err := readAttachment(args[0])
		if err != nil {
			c.term.printf("! %v", err)
			return nil
		}
		return c.send(ctx, client.Draft{Text: strings.Join(args[1:], " "), Attachment: att})
	case "edit":
		entry, ok := c.term.entry(number(args))
		if !ok {
			return c.usage("/edit <n>")
		}
		s.Composer.BeginEdit(entry.ID)
	case "cancel":
		s.Composer.CancelEdit()
	case "delete":
		entry, ok := c.term.entry(number(args))
		if !ok {
			return c.usage("/delete <n>")
		}
		s.Composer.Delete(ctx, entry.ID)
	case "pin":
		entry, ok := c.term.entry(number(args))
		if !ok {
			return c.usage("/pin <n>")
		}
		s.Composer.Pin(ctx, entry.ID)
	case "unpin":
		s.Composer.Unpin(ctx)
	case "name":
		if rest == "" {
			return c.usage("/name <name>")
		}
		if _, err := s.UpdateProfile(ctx, rest, nil); err == nil {
			c.term.printf("i Profile updated")
		}
	case "avatar":
		if len(args) != 1 {
			return c.usage("/avatar <file>")
		}
		att, err := readAttachment(args[0])
		if err != nil {
			c.term.printf("! %v", err)
			return nil
		}
		if _, err := s.UpdateProfile(ctx, "", att); err == nil {
			c.term.printf("i Profile updated")
		}
	default:
		c.term.printf("! Unknown command /%s", name)
	}
	return nil
}

func (c *commands) send(ctx context.Context, draft client.Draft) error {
	s := c.term.current()
	if s == nil {
		c.term.printf("! Sign in first")
		return nil
	}
	_, err := s.Composer.Submit(ctx, draft)
	if errors.Is(err, client.ErrEmptyMessage) {
		c.term.printf("! %s", client.UserMessage(err))
		return nil
	}
	err
}

func (c *commands) usage(text string) error {
	c.term.printf("usage: %s", text)
	return nil
}

func number(args []string) int {
	if len(args) == 0 {
		return 0
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0
	}
	return n
}

func readAttachment(path string) (*client.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &client.Attachment{Name: filepath.Base(path), Data: data}, nil
}
