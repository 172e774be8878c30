// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2017-2018 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"bufio"
	"bytes"
	"net"
)

// Client is the server-side session for one connection. The server
// goroutine owns every field except sendq, which is drained by the
// session's writer goroutine; the reader goroutine never touches the
// struct, it only forwards raw chunks back to the server loop.
type Client struct {
	server *Server
	conn   net.Conn

	// outbound reply queue, in enqueue order
	sendq chan string

	// inbound bytes not yet forming a complete line
	recvBuffer []byte

	// registration gates
	passAccepted bool
	userSet      bool

	nick     string
	username string
	realname string

	registered bool
	destroyed  bool
}

// NewClient wraps an accepted connection in a session. The reader and
// writer goroutines are started separately by the server so that tests
// can drive a session synchronously.
func NewClient(server *Server, conn net.Conn) *Client {
	sendqLines := 64
	if server != nil && server.maxSendQBytes > 0 {
		sendqLines = int(server.maxSendQBytes / sendQueueLineLen)
		if sendqLines < 1 {
			sendqLines = 1
		}
	}
	return &Client{
		server: server,
		conn:   conn,
		sendq:  make(chan string, sendqLines),
	}
}

// Id returns the nick!user source used in broadcast prefixes.
func (client *Client) Id() string {
	return userID(client.nick, client.username)
}

// Nick returns the current nickname, or "*" before NICK is accepted.
func (client *Client) Nick() string {
	if client.nick == "" {
		return "*"
	}
	return client.nick
}

func (client *Client) hasNick() bool {
	return client.nick != ""
}

// appendInbound adds raw received bytes to the session buffer.
func (client *Client) appendInbound(data []byte) {
	client.recvBuffer = append(client.recvBuffer, data...)
}

// pendingOverflow reports whether the buffered partial line has
// outgrown the given limit; such sessions are disconnected.
func (client *Client) pendingOverflow(limit int) bool {
	return limit > 0 && len(client.recvBuffer) > limit
}

// extractCompleteMessages removes and returns every complete line
// (terminated by '\n') from the session buffer. A trailing partial
// line stays buffered for the next read.
func (client *Client) extractCompleteMessages() (lines []string) {
	for {
		idx := bytes.IndexByte(client.recvBuffer, '\n')
		if idx == -1 {
			return
		}
		lines = append(lines, string(client.recvBuffer[:idx+1]))
		client.recvBuffer = client.recvBuffer[idx+1:]
	}
}

// enqueueReply appends a formatted line to the outbound queue. If the
// queue is full the client is not keeping up; it is marked for
// disconnection rather than blocking the server loop.
func (client *Client) enqueueReply(line string) {
	if client.destroyed {
		return
	}
	select {
	case client.sendq <- line:
	default:
		client.server.markForQuit(client, "SendQ exceeded")
	}
}

// readLoop runs in its own goroutine, forwarding raw chunks from the
// connection to the server loop until the connection dies.
func (client *Client) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := client.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			client.server.events <- clientEvent{client: client, data: chunk}
		}
		if err != nil {
			client.server.events <- clientEvent{client: client, readError: true}
			return
		}
	}
}

// writeLoop runs in its own goroutine, draining the outbound queue in
// enqueue order. A send error is fatal for the session: the server is
// told to disconnect it, and remaining queued replies are discarded.
func (client *Client) writeLoop() {
	writer := bufio.NewWriter(client.conn)
	broken := false
	for line := range client.sendq {
		if broken {
			continue
		}
		if _, err := writer.WriteString(line); err != nil {
			broken = true
		} else if err := writer.Flush(); err != nil {
			broken = true
		}
		if broken {
			client.server.events <- clientEvent{client: client, writeError: true}
		}
	}
}
