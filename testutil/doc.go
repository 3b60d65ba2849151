// Package testutil provides test doubles for the relay: a scripted streaming
// upstream that runs as a component, and helpers to start components for the
// duration of a test.
//
//	up := testutil.NewSSEUpstream("data: {\"text\":\"hi\"}\n\n", "data: [DONE]\n\n")
//	testutil.Setup(t, up)
//	client := upstream.New(upstream.Config{URL: up.URL()}, nil)
package testutil
