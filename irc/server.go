// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2017-2018 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okzk/sdnotify"

	"github.com/ergochat/ircserv/irc/logger"
	"github.com/ergochat/ircserv/irc/passwd"
)

var (
	// ServerExitSignals are the signals the server will exit on.
	ServerExitSignals = []os.Signal{
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		syscall.SIGTSTP,
	}
)

// clientEvent is one unit of work handed to the server goroutine by a
// session's reader or writer goroutine.
type clientEvent struct {
	client     *Client
	data       []byte
	readError  bool
	writeError bool
}

// Server is the whole server state: sessions, nicknames, channels and
// the listener. Everything is owned by the single goroutine running
// Run; handlers mutate it freely without synchronization.
type Server struct {
	config   *Config
	logger   *logger.Manager
	listener net.Listener

	clients   map[*Client]bool
	nicknames map[string]*Client
	channels  map[string]*Channel

	newConns chan net.Conn
	events   chan clientEvent
	signals  chan os.Signal

	// clients to disconnect once the current handler finishes
	pendingQuits map[*Client]string

	password      string
	passwordHash  []byte
	maxSendQBytes uint64
	maxReadQBytes int
	motdLines     []string
	ctime         time.Time
}

// NewServer binds the listening socket and returns a runnable server.
func NewServer(config *Config, logman *logger.Manager) (*Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", config.Port))
	if err != nil {
		return nil, err
	}

	server := &Server{
		config:        config,
		logger:        logman,
		listener:      listener,
		clients:       make(map[*Client]bool),
		nicknames:     make(map[string]*Client),
		channels:      make(map[string]*Channel),
		newConns:      make(chan net.Conn),
		events:        make(chan clientEvent, 1024),
		signals:       make(chan os.Signal, len(ServerExitSignals)),
		pendingQuits:  make(map[*Client]string),
		password:      config.Password,
		maxSendQBytes: config.maxSendQBytes,
		maxReadQBytes: int(config.maxReadQBytes),
		motdLines:     config.motdLines,
		ctime:         time.Now().UTC(),
	}
	if config.Server.PasswordHash != "" {
		server.passwordHash = []byte(config.Server.PasswordHash)
	}

	// Attempt to clean up when receiving these signals.
	signal.Notify(server.signals, ServerExitSignals...)

	return server, nil
}

// Addr returns the address the server is listening on.
func (server *Server) Addr() net.Addr {
	return server.listener.Addr()
}

// Run is the server's main loop: it owns all state, accepting new
// connections, applying client events in arrival order and watching
// for exit signals. It returns after a graceful shutdown.
func (server *Server) Run() {
	defer server.listener.Close()

	go server.acceptLoop()

	server.logger.Info("server", fmt.Sprintf("%s listening on %s", Ver, server.listener.Addr()))
	sdnotify.Ready()

	for {
		select {
		case sig := <-server.signals:
			server.logger.Info("server", fmt.Sprintf("Shutting down on %v", sig))
			server.shutdown()
			sdnotify.Stopping()
			return

		case conn := <-server.newConns:
			client := NewClient(server, conn)
			server.clients[client] = true
			go client.readLoop()
			go client.writeLoop()
			server.logger.Debug("connect", fmt.Sprintf("Client connecting from %v", conn.RemoteAddr()))

		case event := <-server.events:
			server.handleEvent(event)
			server.processPendingQuits()
		}
	}
}

// acceptLoop hands accepted connections to the server goroutine. It
// ends when the listener is closed during shutdown.
func (server *Server) acceptLoop() {
	for {
		conn, err := server.listener.Accept()
		if err != nil {
			return
		}
		server.newConns <- conn
	}
}

// handleEvent services one reader/writer notification: buffer the new
// bytes, then parse and dispatch every complete line they finished.
func (server *Server) handleEvent(event clientEvent) {
	client := event.client
	if client.destroyed {
		// a stale notification from a session torn down earlier
		return
	}

	if event.readError || event.writeError {
		server.quitClient(client, "Connection closed")
		return
	}

	client.appendInbound(event.data)
	if client.pendingOverflow(server.maxReadQBytes) {
		server.logger.Info("connect", fmt.Sprintf("Disconnecting %s (readq exceeded)", client.Nick()))
		server.quitClient(client, "Max line length exceeded")
		return
	}

	for _, line := range client.extractCompleteMessages() {
		if client.destroyed {
			break
		}
		server.dispatch(client, ParseLine(line))
	}
}

// markForQuit schedules a disconnect that cannot be performed
// mid-handler (for instance while broadcasting to a channel that is
// still being iterated).
func (server *Server) markForQuit(client *Client, reason string) {
	if _, present := server.pendingQuits[client]; !present {
		server.pendingQuits[client] = reason
	}
}

func (server *Server) processPendingQuits() {
	for client, reason := range server.pendingQuits {
		delete(server.pendingQuits, client)
		server.quitClient(client, reason)
	}
}

// quitClient tears a session down: a QUIT notice goes to every
// channel the session occupied, membership is purged (applying the
// empty-channel and operator-promotion rules), the nickname is
// released, and the connection is closed. Pending outbound replies
// for the session are dropped with it.
func (server *Server) quitClient(client *Client, reason string) {
	if client.destroyed {
		return
	}

	if client.hasNick() {
		quitLine := rplQuit(client.Id(), reason)
		for name, channel := range server.channels {
			if channel.IsMember(client.nick) {
				channel.BroadcastExcept(client, quitLine)
				channel.RemoveMember(client.nick)
				server.removeChannelIfEmpty(name)
			} else {
				channel.RemoveInvite(client.nick)
			}
		}
		delete(server.nicknames, client.nick)
	}

	client.destroyed = true
	close(client.sendq)
	if client.conn != nil {
		client.conn.Close()
	}
	delete(server.clients, client)
	server.logger.Debug("connect", fmt.Sprintf("Client %s disconnected (%s)", client.Nick(), reason))
}

func (server *Server) removeChannelIfEmpty(name string) {
	if channel, exists := server.channels[name]; exists && channel.IsEmpty() {
		delete(server.channels, name)
		server.logger.Debug("channel", fmt.Sprintf("Channel %s destroyed", name))
	}
}

// shutdown closes every session and releases channel state.
func (server *Server) shutdown() {
	for client := range server.clients {
		client.enqueueReply(sourcedReply(serverName, RPL_NOTICE, client.Nick()+" :Server shutting down"))
		client.destroyed = true
		close(client.sendq)
		client.conn.Close()
	}
	server.clients = make(map[*Client]bool)
	server.nicknames = make(map[string]*Client)
	server.channels = make(map[string]*Channel)
}

// checkPassword verifies the shared connection password, against the
// configured bcrypt hash when one is set.
func (server *Server) checkPassword(password string) bool {
	if server.passwordHash != nil {
		return passwd.CompareHashAndPassword(server.passwordHash, []byte(password)) == nil
	}
	return password == server.password
}

// tryRegister promotes a session to registered once all three gates
// (PASS, NICK, USER) have been passed, and sends the welcome burst.
func (server *Server) tryRegister(client *Client) {
	if client.registered || !client.passAccepted || !client.hasNick() || !client.userSet {
		return
	}
	client.registered = true

	server.logger.Debug("connect", fmt.Sprintf("Client registered [%s] [u:%s] [r:%s]", client.nick, client.username, client.realname))

	client.enqueueReply(rplWelcome(client.nick, client.Id()))
	client.enqueueReply(rplYourHost(client.nick))
	client.enqueueReply(rplCreated(client.nick, server.ctime.Format(time.RFC1123)))
	client.enqueueReply(rplMyInfo(client.nick))
	server.MOTD(client)
}

// MOTD serves the Message of the Day.
func (server *Server) MOTD(client *Client) {
	if len(server.motdLines) == 0 {
		client.enqueueReply(errNoMotd(client.Nick()))
		return
	}

	client.enqueueReply(rplMotdStart(client.Nick()))
	for _, line := range server.motdLines {
		client.enqueueReply(rplMotdLine(client.Nick(), line))
	}
	client.enqueueReply(rplEndOfMotd(client.Nick()))
}

// greetJoinedUser sends the join burst to a client that just entered
// a channel: the JOIN echo, the mode announcement when the client
// created the channel, the topic when one is set, and the NAMES list.
func (server *Server) greetJoinedUser(client *Client, channel *Channel) {
	client.enqueueReply(rplJoin(client.Id(), channel.Name()))
	if channel.Size() == 1 {
		client.enqueueReply(modeChannelMsg(channel.Name(), channel.ModeString()))
	}
	if channel.Topic() != "" {
		client.enqueueReply(rplTopic(client.Nick(), channel.Name(), channel.Topic()))
	}
	client.enqueueReply(rplNamReply(client.Nick(), channel.Name(), channel.MemberList()))
	client.enqueueReply(rplEndOfNames(client.Nick(), channel.Name()))
}
