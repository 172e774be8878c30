// Copyright (c) 2017-2018 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"testing"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
)

// drive the server with a real client library instead of raw sockets
func TestClientLibraryRoundTrip(t *testing.T) {
	server := startTestServer(t)

	welcome := make(chan string, 1)
	joined := make(chan string, 1)
	messaged := make(chan string, 1)

	conn := &ircevent.Connection{
		Server:   server.Addr().String(),
		Nick:     "evbot",
		User:     "evbot",
		RealName: "event bot",
		Password: "secret",
	}
	conn.AddCallback("001", func(e ircmsg.Message) {
		welcome <- e.Params[0]
	})
	conn.AddCallback("JOIN", func(e ircmsg.Message) {
		if len(e.Params) > 0 {
			joined <- e.Params[0]
		}
	})
	conn.AddCallback("PRIVMSG", func(e ircmsg.Message) {
		if len(e.Params) > 1 {
			messaged <- e.Params[1]
		}
	})

	if err := conn.Connect(); err != nil {
		t.Fatal(err)
	}
	defer conn.Quit()
	go conn.Loop()

	select {
	case nick := <-welcome:
		if nick != "evbot" {
			t.Errorf("welcome addressed to %q, expected evbot", nick)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for RPL_WELCOME")
	}

	conn.Send("JOIN", "#ev")
	select {
	case channel := <-joined:
		if channel != "#ev" {
			t.Errorf("join echo for %q, expected #ev", channel)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for JOIN echo")
	}

	// a second session talks to the bot through the channel
	other := dialTestServer(t, server)
	other.register("otheruser")
	other.sendLine("JOIN #ev")
	other.expectLine(" 366 ")
	other.sendLine("PRIVMSG #ev :hello bot")

	select {
	case text := <-messaged:
		if text != "hello bot" {
			t.Errorf("received %q, expected %q", text, "hello bot")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for channel message")
	}
}
