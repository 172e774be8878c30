// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/docopt/docopt-go"
	"golang.org/x/term"

	"github.com/ergochat/ircserv/irc"
	"github.com/ergochat/ircserv/irc/flock"
	"github.com/ergochat/ircserv/irc/logger"
	"github.com/ergochat/ircserv/irc/passwd"
)

// get a password from stdin from the user
func getPasswordFromTerminal() string {
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		log.Fatal("Error reading password:", err.Error())
	}
	return string(bytePassword)
}

// implements the `ircserv genpasswd` command
func doGenPasswd() {
	var password string
	if term.IsTerminal(int(syscall.Stdin)) {
		fmt.Print("Enter Password: ")
		password = getPasswordFromTerminal()
		fmt.Print("\n")
		fmt.Print("Reenter Password: ")
		confirm := getPasswordFromTerminal()
		fmt.Print("\n")
		if confirm != password {
			log.Fatal("passwords do not match")
		}
	} else {
		reader := bufio.NewReader(os.Stdin)
		text, _ := reader.ReadString('\n')
		password = strings.TrimSpace(text)
	}
	if password == "" {
		log.Fatal("password cannot be empty")
	}
	hash, err := passwd.GenerateFromPassword([]byte(password), passwd.DefaultCost)
	if err != nil {
		log.Fatal("encoding error:", err.Error())
	}
	fmt.Println(string(hash))
}

func main() {
	usage := `ircserv.
Usage:
	ircserv <port> <password> [--conf <filename>] [--quiet]
	ircserv genpasswd
	ircserv -h | --help
	ircserv --version
Options:
	--conf <filename>  Configuration file to use.
	--quiet            Don't show the startup line (listen/shutdown lines still show).
	-h --help          Show this screen.
	--version          Show version.`

	arguments, _ := docopt.ParseArgs(usage, nil, irc.Ver)

	if arguments["genpasswd"].(bool) {
		doGenPasswd()
		return
	}

	port, err := strconv.Atoi(arguments["<port>"].(string))
	if err != nil || port < 1 || port > 65535 {
		fmt.Fprintf(os.Stderr, "Invalid port: %s\n", arguments["<port>"].(string))
		os.Exit(1)
	}
	password := arguments["<password>"].(string)
	if password == "" {
		fmt.Fprintln(os.Stderr, "Password may not be empty")
		os.Exit(1)
	}

	configfile := ""
	if conf, ok := arguments["--conf"].(string); ok {
		configfile = conf
	}
	config, err := irc.LoadConfig(configfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config file did not load successfully: %s\n", err.Error())
		os.Exit(1)
	}
	config.Port = port
	config.Password = password

	logman, err := logger.NewManager(config.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger did not load successfully: %s\n", err.Error())
		os.Exit(1)
	}

	if config.Server.PIDFile != "" {
		lock, err := flock.TryAcquireFlock(config.Server.PIDFile + ".lock")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not acquire pidfile lock: %s\n", err.Error())
			os.Exit(1)
		}
		defer lock.Unlock()
		if err := os.WriteFile(config.Server.PIDFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
			logman.Warning("server", fmt.Sprintf("Could not write PID file: %v", err))
		}
	}

	if !arguments["--quiet"].(bool) {
		logman.Info("server", fmt.Sprintf("%s starting", irc.Ver))
	}

	server, err := irc.NewServer(config, logman)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not listen on port %d: %s\n", port, err.Error())
		os.Exit(1)
	}
	server.Run()
}
