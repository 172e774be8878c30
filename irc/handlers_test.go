// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2017-2018 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"strings"
	"testing"

	"github.com/ergochat/ircserv/irc/logger"
)

// newTestServer builds a server whose handlers can be driven
// synchronously, without running the event loop.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	config, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	config.Port = 0
	config.Password = "secret"
	logman, err := logger.NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	server, err := NewServer(config, logman)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { server.listener.Close() })
	return server
}

func newTestClient(server *Server) *Client {
	client := NewClient(server, nil)
	server.clients[client] = true
	return client
}

// send runs raw lines through the parser and dispatcher, the way the
// event loop would.
func send(server *Server, client *Client, lines ...string) {
	for _, line := range lines {
		server.dispatch(client, ParseLine(line))
	}
}

// collect drains every queued reply for a client.
func collect(client *Client) (replies []string) {
	for {
		select {
		case line, ok := <-client.sendq:
			if !ok {
				return
			}
			replies = append(replies, line)
		default:
			return
		}
	}
}

func registered(t *testing.T, server *Server, nick string) *Client {
	t.Helper()
	client := newTestClient(server)
	send(server, client,
		"PASS secret",
		"NICK "+nick,
		"USER "+nick+" 0 * :"+nick,
	)
	if !client.registered {
		t.Fatalf("test client %s failed to register", nick)
	}
	collect(client)
	return client
}

func assertReply(t *testing.T, replies []string, substr string) {
	t.Helper()
	for _, line := range replies {
		if strings.Contains(line, substr) {
			return
		}
	}
	t.Errorf("expected a reply containing %q, got %v", substr, replies)
}

func assertNoReply(t *testing.T, replies []string, substr string) {
	t.Helper()
	for _, line := range replies {
		if strings.Contains(line, substr) {
			t.Errorf("expected no reply containing %q, got %q", substr, line)
		}
	}
}

//
// registration
//

func TestRegistrationHappyPath(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(server)

	send(server, client, "PASS secret", "NICK alice", "USER alice 0 * :Alice")

	if !client.registered {
		t.Fatal("client should be registered after PASS/NICK/USER")
	}
	replies := collect(client)
	assertReply(t, replies, ":localhost 001 alice :Welcome to the Internet Relay Network alice!alice")
	assertReply(t, replies, ":localhost 422 alice :MOTD File is missing")
}

func TestRegistrationUserBeforeNick(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(server)

	send(server, client, "PASS secret", "USER alice 0 * :Alice", "NICK alice")

	if !client.registered {
		t.Fatal("USER before NICK must also complete registration")
	}
	assertReply(t, collect(client), " 001 alice ")
}

func TestRegistrationGate(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(server)

	send(server, client, "JOIN #chan")
	assertReply(t, collect(client), " 451 ")

	send(server, client, "NICK alice")
	assertReply(t, collect(client), " 464 ")
	if client.hasNick() {
		t.Error("NICK before PASS must not set a nickname")
	}
}

func TestBadPassword(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(server)

	send(server, client, "PASS wrong")
	assertReply(t, collect(client), " 464 ")
	if client.passAccepted {
		t.Error("wrong password must not pass the gate")
	}
}

func TestPassAfterRegistration(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")

	send(server, alice, "PASS secret")
	assertReply(t, collect(alice), " 462 ")

	send(server, alice, "USER other 0 * :Other")
	assertReply(t, collect(alice), " 462 ")
}

func TestNickCollision(t *testing.T) {
	server := newTestServer(t)
	registered(t, server, "alice")

	second := newTestClient(server)
	send(server, second, "PASS secret", "NICK alice")
	assertReply(t, collect(second), " 433 alice :Nickname is already in use.")
	if second.hasNick() {
		t.Error("colliding nickname must not be assigned")
	}
}

func TestErroneousNickname(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(server)

	send(server, client, "PASS secret", "NICK bad#nick")
	assertReply(t, collect(client), " 432 * bad#nick :Erroneous nickname")
}

//
// channels
//

func TestJoinCreatesChannel(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")

	send(server, alice, "JOIN #chan")
	replies := collect(alice)
	assertReply(t, replies, ":alice!alice JOIN :#chan")
	assertReply(t, replies, ":localhost MODE #chan +t")
	assertReply(t, replies, " 353 alice @ #chan :@alice")
	assertReply(t, replies, " 366 alice #chan :End of /NAMES list.")

	channel := server.channels["#chan"]
	if channel == nil || !channel.IsOperator("alice") {
		t.Fatal("creator must be sole operator of the new channel")
	}
}

func TestJoinExistingChannel(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan")
	collect(alice)
	send(server, bob, "JOIN #chan")

	assertReply(t, collect(alice), ":bob!bob JOIN :#chan")
	replies := collect(bob)
	assertReply(t, replies, ":bob!bob JOIN :#chan")
	assertNoReply(t, replies, ":localhost MODE")
	assertReply(t, replies, " 353 bob @ #chan :@alice bob")

	send(server, bob, "JOIN #chan")
	assertReply(t, collect(bob), " 443 bob #chan :Is already on channel")
}

func TestChannelKey(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan", "MODE #chan +k hunter2")
	replies := collect(alice)
	assertReply(t, replies, " 324 alice #chan +kt *******")

	send(server, bob, "JOIN #chan wrong")
	assertReply(t, collect(bob), " 475 bob #chan :Cannot join channel (+k)")

	send(server, bob, "JOIN #chan hunter2")
	assertReply(t, collect(bob), ":bob!bob JOIN :#chan")
	assertReply(t, collect(alice), ":bob!bob JOIN :#chan")
}

func TestChannelLimit(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan", "MODE #chan +l 1")
	collect(alice)

	send(server, bob, "JOIN #chan")
	assertReply(t, collect(bob), " 471 bob #chan :Cannot join channel (+l)")

	// an invitation bypasses the limit
	send(server, alice, "INVITE bob #chan")
	collect(alice)
	collect(bob)
	send(server, bob, "JOIN #chan")
	assertReply(t, collect(bob), ":bob!bob JOIN :#chan")
}

func TestInviteOnly(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan", "MODE #chan +i")
	collect(alice)

	send(server, bob, "JOIN #chan")
	assertReply(t, collect(bob), " 473 bob #chan :Cannot join channel (+i)")

	send(server, alice, "INVITE bob #chan")
	assertReply(t, collect(alice), ":alice!alice 341 alice bob #chan")
	assertReply(t, collect(bob), ":alice!alice INVITE bob :#chan")

	send(server, bob, "JOIN #chan")
	assertReply(t, collect(bob), ":bob!bob JOIN :#chan")
	if server.channels["#chan"].IsInvited("bob") {
		t.Error("joining must consume the invitation")
	}
}

func TestInviteRequiresMembership(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan")
	collect(alice)

	send(server, bob, "INVITE alice #chan")
	assertReply(t, collect(bob), " 442 bob #chan ")

	send(server, alice, "INVITE bob #chan")
	collect(alice)
	send(server, alice, "INVITE bob #chan")
	// bob is invited, not yet a member, so a second invite is fine
	assertReply(t, collect(alice), " 341 ")

	send(server, bob, "JOIN #chan")
	collect(bob)
	send(server, alice, "INVITE bob #chan")
	assertReply(t, collect(alice), " 443 alice bob #chan ")
}

func TestOperatorPromotionOnPart(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan")
	send(server, bob, "JOIN #chan")
	collect(alice)
	collect(bob)

	send(server, alice, "PART #chan")
	assertReply(t, collect(bob), ":alice!alice PART #chan :.")

	channel := server.channels["#chan"]
	if channel == nil {
		t.Fatal("channel must survive while bob remains")
	}
	if !channel.IsOperator("bob") {
		t.Fatal("bob must inherit operator status")
	}

	send(server, bob, "MODE #chan")
	replies := collect(bob)
	assertReply(t, replies, " 324 bob #chan :+")
	assertReply(t, replies, "t")
}

func TestPartDestroysEmptyChannel(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")

	send(server, alice, "JOIN #chan", "PART #chan")
	if _, exists := server.channels["#chan"]; exists {
		t.Error("empty channel must be destroyed synchronously")
	}
}

func TestSelfKickRejected(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")

	send(server, alice, "JOIN #chan")
	collect(alice)

	send(server, alice, "KICK #chan alice :bye")
	assertReply(t, collect(alice), " 482 alice #chan :You can't kick yourself")
	if !server.channels["#chan"].IsMember("alice") {
		t.Error("alice must remain a member after a rejected self-kick")
	}
}

func TestKick(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan")
	send(server, bob, "JOIN #chan")
	collect(alice)
	collect(bob)

	// non-operators cannot kick
	send(server, bob, "KICK #chan alice :no")
	assertReply(t, collect(bob), " 482 bob #chan :You're not channel operator")

	send(server, alice, "KICK #chan bob :flooding")
	assertReply(t, collect(bob), ":alice!alice KICK #chan bob :flooding")
	if server.channels["#chan"].IsMember("bob") {
		t.Error("bob must be gone after the kick")
	}
}

func TestKickLastMemberDestroysChannel(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan")
	send(server, bob, "JOIN #chan")
	send(server, alice, "KICK #chan bob :out", "PART #chan")
	if _, exists := server.channels["#chan"]; exists {
		t.Error("channel must be destroyed once everyone is gone")
	}
}

//
// topic
//

func TestTopic(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan")
	send(server, bob, "JOIN #chan")
	collect(alice)
	collect(bob)

	send(server, alice, "TOPIC #chan")
	assertReply(t, collect(alice), " 331 alice #chan :No topic is set")

	// +t is on by default; bob is not an operator
	send(server, bob, "TOPIC #chan :bob was here")
	assertReply(t, collect(bob), " 482 bob #chan :You're not channel operator")

	send(server, alice, "TOPIC #chan :release day")
	assertReply(t, collect(alice), ":alice!alice TOPIC #chan :release day")
	assertReply(t, collect(bob), ":alice!alice TOPIC #chan :release day")

	send(server, bob, "TOPIC #chan")
	assertReply(t, collect(bob), " 332 bob #chan :release day")

	// with -t anyone may set the topic
	send(server, alice, "MODE #chan -t")
	collect(alice)
	collect(bob)
	send(server, bob, "TOPIC #chan :bob was here")
	assertReply(t, collect(bob), ":bob!bob TOPIC #chan :bob was here")
}

func TestTopicRequiresMembership(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan")
	collect(alice)

	send(server, bob, "TOPIC #chan")
	assertReply(t, collect(bob), " 442 bob #chan ")
}

//
// modes
//

func TestModeIdempotence(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")

	send(server, alice, "JOIN #chan")
	collect(alice)

	send(server, alice, "MODE #chan +i")
	assertReply(t, collect(alice), ":alice!alice MODE #chan +i")

	// the second application emits no broadcast
	send(server, alice, "MODE #chan +i")
	assertNoReply(t, collect(alice), "MODE #chan +i")
}

func TestModeAggregateBroadcast(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")

	send(server, alice, "JOIN #chan")
	collect(alice)

	send(server, alice, "MODE #chan +i-t")
	assertReply(t, collect(alice), ":alice!alice MODE #chan +i-t")

	send(server, alice, "MODE #chan +it")
	// +i is already set: only the +t transition broadcasts
	assertReply(t, collect(alice), ":alice!alice MODE #chan +t")
}

func TestModeRequiresOperator(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan")
	send(server, bob, "JOIN #chan")
	collect(alice)
	collect(bob)

	send(server, bob, "MODE #chan +i")
	assertReply(t, collect(bob), " 482 bob #chan :You're not channel operator")

	// a bare query is fine for any member
	send(server, bob, "MODE #chan")
	assertReply(t, collect(bob), " 324 bob #chan :+t")
}

func TestModeInvalidParams(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")

	send(server, alice, "JOIN #chan")
	collect(alice)

	send(server, alice, "MODE #chan +k bad*key")
	assertReply(t, collect(alice), " 696 alice #chan k bad*key :Invalid mode parameter")
	if server.channels["#chan"].CheckMode('k') {
		t.Error("a rejected key must not be stored")
	}

	send(server, alice, "MODE #chan +l zero")
	assertReply(t, collect(alice), " 696 alice #chan l zero :Invalid mode parameter")

	send(server, alice, "MODE #chan +l -3")
	assertReply(t, collect(alice), " 696 alice #chan l -3 :Invalid mode parameter")

	send(server, alice, "MODE #chan +k")
	assertReply(t, collect(alice), " 461 alice MODE +k :Not enough parameters.")

	send(server, alice, "MODE #chan +x")
	assertReply(t, collect(alice), " 472 alice x :is unknown mode char to me")

	// +b is accepted but does nothing
	send(server, alice, "MODE #chan +b")
	replies := collect(alice)
	assertNoReply(t, replies, " 472 ")
	assertNoReply(t, replies, "MODE #chan +b")
}

func TestModeOperatorGrant(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan")
	send(server, bob, "JOIN #chan")
	collect(alice)
	collect(bob)

	send(server, alice, "MODE #chan +o carol")
	assertReply(t, collect(alice), " 441 alice carol #chan :They aren't on that channel")

	send(server, alice, "MODE #chan +o bob")
	assertReply(t, collect(bob), ":alice!alice MODE #chan +o")
	if !server.channels["#chan"].IsOperator("bob") {
		t.Fatal("bob must be an operator after +o")
	}

	// removing the last operator promotes the lexicographically
	// first remaining member
	send(server, alice, "MODE #chan -o bob")
	collect(alice)
	send(server, alice, "MODE #chan -o alice")
	collect(alice)
	channel := server.channels["#chan"]
	if len(channel.operators) == 0 {
		t.Error("operator set may not empty out")
	}
}

//
// messaging
//

func TestPrivMsgToChannel(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan")
	send(server, bob, "JOIN #chan")
	collect(alice)
	collect(bob)

	send(server, alice, "PRIVMSG #chan :hello there")
	assertReply(t, collect(bob), ":alice!alice PRIVMSG #chan :hello there")
	// the sender does not hear their own message
	assertNoReply(t, collect(alice), "PRIVMSG #chan :hello there")
}

func TestPrivMsgToNick(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "PRIVMSG bob :psst")
	assertReply(t, collect(bob), ":alice!alice PRIVMSG bob :psst")

	send(server, alice, "PRIVMSG carol :anyone home")
	assertReply(t, collect(alice), " 401 alice carol :No such nick/channel")
}

func TestPrivMsgErrors(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "PRIVMSG")
	assertReply(t, collect(alice), " 411 alice :No recipient given PRIVMSG")

	send(server, alice, "PRIVMSG bob")
	assertReply(t, collect(alice), " 412 alice :No text to send")

	// not a member of the channel
	send(server, bob, "JOIN #chan")
	collect(bob)
	send(server, alice, "PRIVMSG #chan :hi")
	assertReply(t, collect(alice), " 404 alice #chan :Cannot send to channel")
}

func TestNoticeIsSilentOnFailure(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "NOTICE carol :hello", "NOTICE", "NOTICE #nochan :hi")
	if replies := collect(alice); replies != nil {
		t.Errorf("NOTICE must never produce error numerics, got %v", replies)
	}

	send(server, alice, "NOTICE bob :ding")
	assertReply(t, collect(bob), ":alice!alice NOTICE bob :ding")
}

//
// nick changes
//

func TestNickChangePropagates(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan")
	send(server, bob, "JOIN #chan")
	collect(alice)
	collect(bob)

	send(server, bob, "NICK bobby")
	assertReply(t, collect(bob), ":bob!bob NICK :bobby")

	channel := server.channels["#chan"]
	if channel.IsMember("bob") || !channel.IsMember("bobby") {
		t.Fatal("membership must follow the rename")
	}
	if _, held := server.nicknames["bob"]; held {
		t.Error("the old nickname must be released")
	}

	send(server, alice, "PRIVMSG #chan :hi")
	assertReply(t, collect(bob), ":alice!alice PRIVMSG #chan :hi")

	send(server, alice, "PRIVMSG bobby :direct")
	assertReply(t, collect(bob), ":alice!alice PRIVMSG bobby :direct")
}

func TestNickChangeInviteFollows(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan", "MODE #chan +i", "INVITE bob #chan")
	collect(alice)
	collect(bob)

	send(server, bob, "NICK bobby")
	collect(bob)
	send(server, bob, "JOIN #chan")
	assertReply(t, collect(bob), ":bobby!bob JOIN :#chan")
}

//
// lifecycle
//

func TestQuit(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")
	bob := registered(t, server, "bob")

	send(server, alice, "JOIN #chan")
	send(server, bob, "JOIN #chan")
	collect(alice)
	collect(bob)

	send(server, bob, "QUIT :gone fishing")
	assertReply(t, collect(alice), ":bob!bob QUIT :Quit: gone fishing")

	if !bob.destroyed {
		t.Fatal("bob's session must be destroyed")
	}
	if server.channels["#chan"].IsMember("bob") {
		t.Error("bob must be purged from the channel")
	}
	if _, held := server.nicknames["bob"]; held {
		t.Error("bob's nickname must be released")
	}

	// sole remaining member leaving destroys the channel
	send(server, alice, "QUIT")
	if len(server.channels) != 0 {
		t.Error("channel state must be released")
	}
}

func TestPing(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")

	send(server, alice, "PING 12345")
	assertReply(t, collect(alice), ":alice!alice PONG 12345")
}

func TestUnknownCommandIgnored(t *testing.T) {
	server := newTestServer(t)
	alice := registered(t, server, "alice")

	send(server, alice, "WALLOPS :hi", "")
	if replies := collect(alice); replies != nil {
		t.Errorf("unknown commands must be silently ignored, got %v", replies)
	}
}

//
// invariants
//

func TestInvariantsHold(t *testing.T) {
	server := newTestServer(t)

	clients := map[string]*Client{
		"alice": registered(t, server, "alice"),
		"bob":   registered(t, server, "bob"),
		"carol": registered(t, server, "carol"),
	}

	script := []struct {
		who  string
		line string
	}{
		{"alice", "JOIN #a"},
		{"bob", "JOIN #a,#b"},
		{"carol", "JOIN #b"},
		{"bob", "MODE #b +o carol"},
		{"alice", "PART #a"},
		{"bob", "NICK bobby"},
		{"bob", "KICK #b carol :bye"},
		{"carol", "JOIN #b"},
		{"bob", "QUIT"},
	}

	for _, step := range script {
		send(server, clients[step.who], step.line)

		nicked := 0
		for client := range server.clients {
			if client.hasNick() {
				nicked++
			}
		}
		if nicked != len(server.nicknames) {
			t.Fatalf("after %q: %d sessions with nicks but %d nicknames", step.line, nicked, len(server.nicknames))
		}

		for name, channel := range server.channels {
			if channel.IsEmpty() {
				t.Fatalf("after %q: channel %s is empty but still exists", step.line, name)
			}
			if len(channel.operators) == 0 {
				t.Fatalf("after %q: channel %s has no operators", step.line, name)
			}
			for nick := range channel.operators {
				if !channel.IsMember(nick) {
					t.Fatalf("after %q: operator %s of %s is not a member", step.line, nick, name)
				}
			}
			for nick := range channel.members {
				if server.nicknames[nick] == nil {
					t.Fatalf("after %q: member %s of %s has no session", step.line, nick, name)
				}
			}
		}
	}
}
