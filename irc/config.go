// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v2"

	"github.com/ergochat/ircserv/irc/logger"
)

// here's how this works: exported (capitalized) members of the config
// structs are defined in the YAML file and deserialized directly from
// there. They may be postprocessed and overwritten by LoadConfig.
// Unexported (lowercase) members are derived from the exported
// members in LoadConfig.

// ServerConfig defines the listening server.
type ServerConfig struct {
	MOTD           string `yaml:"motd"`
	MaxSendQString string `yaml:"max-sendq"`
	MaxReadQString string `yaml:"max-readq"`
	PasswordHash   string `yaml:"password-hash"`
	PIDFile        string `yaml:"pid-file"`
}

// Config defines the overall configuration.
type Config struct {
	Server  ServerConfig
	Logging []logger.LoggingConfig

	// set from the command line, not the config file
	Port     int    `yaml:"-"`
	Password string `yaml:"-"`

	maxSendQBytes uint64
	maxReadQBytes uint64
	motdLines     []string
}

const (
	defaultMaxSendQ = "96k"
	defaultMaxReadQ = "8k"
)

// LoadConfig loads the given YAML configuration file, or defaults
// when the filename is empty.
func LoadConfig(filename string) (config *Config, err error) {
	config = &Config{}

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		if err = yaml.Unmarshal(data, config); err != nil {
			return nil, err
		}
	}

	if config.Server.MaxSendQString == "" {
		config.Server.MaxSendQString = defaultMaxSendQ
	}
	if config.Server.MaxReadQString == "" {
		config.Server.MaxReadQString = defaultMaxReadQ
	}

	config.maxSendQBytes, err = bytefmt.ToBytes(config.Server.MaxSendQString)
	if err != nil {
		return nil, fmt.Errorf("Invalid max-sendq: %s", err.Error())
	}
	config.maxReadQBytes, err = bytefmt.ToBytes(config.Server.MaxReadQString)
	if err != nil {
		return nil, fmt.Errorf("Invalid max-readq: %s", err.Error())
	}

	if len(config.Logging) == 0 {
		config.Logging = []logger.LoggingConfig{{
			Method:      "stderr",
			LevelString: "info",
			Types:       []string{"*"},
		}}
	}
	for i, logConfig := range config.Logging {
		for _, method := range strings.Fields(logConfig.Method) {
			switch method {
			case "stdout":
				config.Logging[i].MethodStdout = true
			case "stderr":
				config.Logging[i].MethodStderr = true
			case "file":
				config.Logging[i].MethodFile = true
			default:
				return nil, fmt.Errorf("Unknown logging method: %s", method)
			}
		}
		if config.Logging[i].MethodFile && logConfig.Filename == "" {
			return nil, fmt.Errorf("Logging configuration specifies 'file' method but no filename")
		}
		level, ok := logger.LogLevelNames[strings.ToLower(logConfig.LevelString)]
		if logConfig.LevelString == "" {
			level, ok = logger.LogInfo, true
		}
		if !ok {
			return nil, fmt.Errorf("Unknown log level: %s", logConfig.LevelString)
		}
		config.Logging[i].Level = level
		if len(logConfig.Types) == 0 {
			config.Logging[i].Types = []string{"*"}
		}
	}

	if config.Server.MOTD != "" {
		config.motdLines, err = loadMOTDLines(config.Server.MOTD)
		if err != nil {
			return nil, fmt.Errorf("Could not load MOTD file: %s", err.Error())
		}
	}

	return config, nil
}

func loadMOTDLines(filename string) (lines []string, err error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if len(line) > 0 || err == nil {
			lines = append(lines, line)
		}
		if err != nil {
			break
		}
	}
	return lines, nil
}
