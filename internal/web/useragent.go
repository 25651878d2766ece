package web

import (
	"math/rand"
	"net/http"
	"sync/atomic"
)

var userAgents = []string{
	// Desktop Chrome
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",

	// Desktop Safari and Firefox
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:131.0) Gecko/20100101 Firefox/131.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:131.0) Gecko/20100101 Firefox/131.0",

	// Mobile
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_6_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Mobile Safari/537.36",
}

// agentPool hands out user agents mostly round-robin, with one pick in
// five at random.
type agentPool struct {
	agents []string
	next   atomic.Uint64
}

var defaultAgents = &agentPool{agents: userAgents}

func (p *agentPool) pick() string {
	if rand.Float64() < 0.2 {
		return p.agents[rand.Intn(len(p.agents))]
	}
	return p.agents[int(p.next.Add(1))%len(p.agents)]
}

// setBrowserHeaders makes a request look like it came from a browser.
func setBrowserHeaders(h http.Header) {
	h.Set("User-Agent", defaultAgents.pick())
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
}
