// Package metrics collects selection and personalization-fetch activity and
// keeps a realtime history of it.
package metrics

// FetchOutcome classifies a personalization fetch.
type FetchOutcome string

const (
	FetchOK     FetchOutcome = "ok"
	FetchFailed FetchOutcome = "failed"
)

// ReloadEvent reports one registry reload.
type ReloadEvent struct {
	Blocks int
	Failed bool
}
