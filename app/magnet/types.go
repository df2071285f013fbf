package magnet

import (
	"context"

	"github.com/lysyi3m/mikan-comb/app/detail"
)

type State uint8

const (
	Unresolved State = iota
	Pending
	Resolved
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	default:
		return "unresolved"
	}
}

// Magnet is the per-key resolution state. URI is meaningful only when
// Resolved; Resolved with an empty URI means the page is known to carry no
// magnet link and is never fetched again for it.
type Magnet struct {
	State State
	URI   string
}

func (m Magnet) Found() bool {
	return m.State == Resolved && m.URI != ""
}

// Entry is the cached view of one detail page.
type Entry struct {
	CoverURL  string
	FileSize  string
	HasDetail bool // cover/size were captured from a successful fetch
	Magnet    Magnet
}

// Settled reports whether the page needs no further fetch.
func (e Entry) Settled() bool {
	return e.Magnet.State == Resolved
}

type Fetcher interface {
	Run(ctx context.Context, url string) (detail.Record, error)
}

var _ Fetcher = (*detail.Fetcher)(nil)
