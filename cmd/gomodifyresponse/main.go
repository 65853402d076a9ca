package main

import (
	"fmt"
	"os"

	"github.com/retutils/gomodifyresponse/addon"
	"github.com/retutils/gomodifyresponse/proxy"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	version bool // show gomodifyresponse version

	Addr         string // proxy listen addr
	Target       string // upstream base url
	SslInsecure  bool   // not verify upstream server SSL/TLS certificates.
	Debug        int    // debug mode: 1 - print debug log, 2 - show debug from
	LogFile      string // log file path
	InstanceName string // instance name used in logs
	Rules        string // rewrite rules config filename
	LogBody      bool   // log decoded text bodies

	filename string // read config from the filename
}

func main() {
	config := loadConfig(os.Args[1:])
	setupLogging(config)
	if err := Run(config); err != nil {
		log.Fatal(err)
	}
}

// Run builds the proxy from config and serves until it fails.
func Run(config *Config) error {
	if config.version {
		fmt.Println("gomodifyresponse: " + proxy.Version)
		return nil
	}
	p, err := newProxy(config)
	if err != nil {
		return err
	}

	log.Infof("gomodifyresponse version %v\n", p.Version)
	return p.Start()
}

func newProxy(config *Config) (*proxy.Proxy, error) {
	opts := &proxy.Options{
		Debug:        config.Debug,
		Addr:         config.Addr,
		Target:       config.Target,
		SslInsecure:  config.SslInsecure,
		LogFilePath:  config.LogFile,
		InstanceName: config.InstanceName,
	}
	p, err := proxy.NewProxy(opts)
	if err != nil {
		return nil, err
	}

	p.AddAddon(&proxy.LogAddon{})

	if config.Rules != "" {
		rewrite, err := addon.NewRewriteFromFile(config.Rules)
		if err != nil {
			return nil, fmt.Errorf("load rewrite rules: %w", err)
		}
		p.AddAddon(rewrite)
		log.Infof("Loaded %d rewrite rules from %v", len(rewrite.Items), config.Rules)
	}

	if config.LogBody {
		p.AddAddon(&addon.Decoder{})
		p.AddAddon(&bodyLogAddon{})
	}

	return p, nil
}

type bodyLogAddon struct {
	proxy.BaseAddon
}

func (a *bodyLogAddon) Response(f *proxy.Flow) {
	if body, ok := f.Metadata[addon.DecodedBodyKey].(string); ok {
		log.Debugf("%v %v body:\n%v", f.Request.Method, f.Request.URL, body)
	}
}
