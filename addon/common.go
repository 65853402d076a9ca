package addon

import (
	"fmt"
	"strings"

	"github.com/retutils/gomodifyresponse/proxy"
	"github.com/samber/lo"
	"github.com/tidwall/match"
)

// MapFrom selects the flows a rule applies to. Empty fields match anything;
// Host and Path accept * and ? wildcards.
type MapFrom struct {
	Protocol string   `json:"protocol"`
	Host     string   `json:"host"`
	Method   []string `json:"method"`
	Path     string   `json:"path"`
}

func (mf *MapFrom) Match(req *proxy.Request) bool {
	if mf.Protocol != "" && mf.Protocol != req.URL.Scheme {
		return false
	}
	if mf.Host != "" && !match.Match(strings.ToLower(req.URL.Host), strings.ToLower(mf.Host)) {
		return false
	}
	if len(mf.Method) > 0 && !lo.ContainsBy(mf.Method, func(m string) bool {
		return strings.EqualFold(m, req.Method)
	}) {
		return false
	}
	if mf.Path != "" && !match.Match(req.URL.Path, mf.Path) {
		return false
	}
	return true
}

func (mf *MapFrom) Validate() error {
	if mf.Protocol != "" && mf.Protocol != "http" && mf.Protocol != "https" {
		return fmt.Errorf("invalid protocol %v", mf.Protocol)
	}
	return nil
}
