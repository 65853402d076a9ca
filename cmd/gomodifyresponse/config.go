package main

import (
	"flag"
	"os"

	"github.com/retutils/gomodifyresponse/internal/helper"
	log "github.com/sirupsen/logrus"
)

func loadConfigFromFile(filename string) (*Config, error) {
	var config Config
	if err := helper.NewStructFromFile(filename, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func defineFlags(fs *flag.FlagSet, config *Config) {
	fs.BoolVar(&config.version, "version", config.version, "show gomodifyresponse version")
	fs.StringVar(&config.Addr, "addr", config.Addr, "proxy listen addr")
	if config.Addr == "" {
		config.Addr = ":9080"
	}
	fs.StringVar(&config.Target, "target", config.Target, "upstream base url, e.g. http://localhost:8000")
	fs.BoolVar(&config.SslInsecure, "ssl_insecure", config.SslInsecure, "not verify upstream server SSL/TLS certificates.")
	fs.IntVar(&config.Debug, "debug", config.Debug, "debug mode: 1 - print debug log, 2 - show debug from")
	fs.StringVar(&config.LogFile, "log_file", config.LogFile, "log file path")
	fs.StringVar(&config.InstanceName, "name", config.InstanceName, "instance name used in logs")
	fs.StringVar(&config.Rules, "rules", config.Rules, "rewrite rules config filename")
	fs.BoolVar(&config.LogBody, "log_body", config.LogBody, "log decoded text bodies at debug level")
	fs.StringVar(&config.filename, "f", config.filename, "read config from the filename")
}

func mergeConfigs(fileConfig, cliConfig *Config) *Config {
	config := new(Config)
	*config = *fileConfig
	if cliConfig.Addr != "" {
		config.Addr = cliConfig.Addr
	}
	if cliConfig.Target != "" {
		config.Target = cliConfig.Target
	}
	if cliConfig.SslInsecure {
		config.SslInsecure = cliConfig.SslInsecure
	}
	if cliConfig.Debug != 0 {
		config.Debug = cliConfig.Debug
	}
	if cliConfig.LogFile != "" {
		config.LogFile = cliConfig.LogFile
	}
	if cliConfig.InstanceName != "" {
		config.InstanceName = cliConfig.InstanceName
	}
	if cliConfig.Rules != "" {
		config.Rules = cliConfig.Rules
	}
	if cliConfig.LogBody {
		config.LogBody = cliConfig.LogBody
	}
	return config
}

func loadConfig(args []string) *Config {
	// find the config file first, flags override it
	filename := ""
	for i, arg := range args {
		if arg == "-f" && i+1 < len(args) {
			filename = args[i+1]
			break
		}
	}

	config := new(Config)
	if filename != "" {
		fileConfig, err := loadConfigFromFile(filename)
		if err != nil {
			log.Warnf("read config from %v error %v", filename, err)
		} else {
			config = fileConfig
			log.Infof("Loaded config from file %v: %+v", filename, config)
		}
	}

	fs := flag.NewFlagSet("gomodifyresponse", flag.ExitOnError)
	defineFlags(fs, config)
	fs.Parse(args)

	return config
}

func setupLogging(config *Config) {
	if config.Debug > 0 {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	if config.Debug == 2 {
		log.SetReportCaller(true)
	}
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}
