// Package nimbusclient is the entry point for creating Nimbus API clients.
//
// A single client is created with New:
//
//	client, err := nimbusclient.New(&nimbus.Config{
//		APIEndpoint: "https://api.nimbus.example.com",
//		APIToken:    "token",
//	})
//
// Applications that talk to several tenants or endpoints use a Factory, which
// caches one fully wired client per logical name so that resilience state
// (breaker, limiter, throttle) is shared by everything using that name:
//
//	factory := nimbusclient.NewFactory(map[string]*nimbus.Config{
//		"tenant-a": {APIEndpoint: "https://a.example.com", APIToken: "ta"},
//		"tenant-b": {APIEndpoint: "https://b.example.com", APIToken: "tb"},
//	})
//	defer factory.Close()
//
//	clientA, err := factory.Client("tenant-a")
package nimbusclient
