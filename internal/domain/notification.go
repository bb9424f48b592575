package domain

import "net/url"

// Notification is a gateway's inbound server-to-server call, normalized away
// from the HTTP layer: merged query and form parameters, the raw body for
// adapters that parse XML/JSON envelopes, and the caller's address for
// adapters that authenticate by source IP.
type Notification struct {
	URI          string
	Params       url.Values
	Body         []byte
	ClientIP     string
	LanguageCode string
}

func (n Notification) Get(key string) string {
	return n.Params.Get(key)
}

func (n Notification) Has(key string) bool {
	return n.Params.Has(key)
}
