// Package nimbus provides types, interfaces, and helpers for working with the
// Nimbus multi-tenant cloud API.
//
// # Overview
//
// The nimbus package defines the domain types (e.g., Zone, Record) and the
// interfaces for resource-oriented clients (ZonesClient, RecordsClient). A
// concrete implementation is provided by the nimbusclient package, which wires
// configuration, transport, and the outbound-request resilience pipeline.
// Most consumers should import nimbusclient to construct a client and then
// interact with the resource client interfaces exposed here.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/nimbus-io/nimbus-client/pkg/nimbus"
//	  "github.com/nimbus-io/nimbus-client/pkg/nimbusclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := nimbusclient.New(&nimbus.Config{APIEndpoint: "https://api.example.com"})
//	  if err != nil { log.Fatal(err) }
//
//	  zones, err := cli.Zones().List(ctx, nimbus.NewQueryParams().WithPerPage(50))
//	  if err != nil { log.Fatal(err) }
//	  _ = zones
//	}
//
// Applications that talk to several accounts should use nimbusclient.Factory,
// which validates configuration once and caches one pipeline per logical
// client name.
//
// # Queries and pagination
//
// Use QueryParams to express common list options (page, per_page, filters).
// Paginated collections can be drained lazily:
//
//	it := nimbus.NewPaginationIterator[nimbus.Zone](ctx, cli.Zones(), "/v1/zones", nil)
//	for it.HasNext() {
//	  zone, err := it.Next()
//	  if err != nil { break }
//	  _ = zone
//	}
//
// Cursor-based collections use NewCursorIterator with a fetch function that
// receives the opaque continuation token from the previous page.
//
// # Resilience
//
// Every request issued through a client passes through a fixed pipeline:
// concurrency limiter, proactive rate-limit throttle, total timeout, retry
// with exponential backoff, circuit breaker, and per-attempt timeout. The
// pipeline is configured via Config and is shared by all operations on one
// logical client.
//
// # Errors
//
// API errors are represented by APIError and ResponseError. Helpers such as
// IsNotFound, IsOverload, and IsCircuitOpen make it easy to branch on common
// failure cases. Overload rejections from the concurrency limiter are a
// distinct error kind and are never retried.
package nimbus
