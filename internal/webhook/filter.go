package webhook

import (
	"sort"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
)

const wildcard = "*"

// Matcher decides whether one event field is accepted. It is either MatchAll or MatchSet.
type Matcher interface {
	Match(value string) bool
	Values() []string
}

type MatchAll struct{}

func (MatchAll) Match(string) bool {
	return true
}

func (MatchAll) Values() []string {
	return []string{wildcard}
}

type MatchSet map[string]struct{}

func (m MatchSet) Match(value string) bool {
	_, ok := m[value]

	return ok
}

func (m MatchSet) Values() []string {
	ret := make([]string, 0, len(m))
	for value := range m {
		ret = append(ret, value)
	}

	sort.Strings(ret)

	return ret
}

// NewMatcher resolves a configured list once: empty or containing "*" accepts everything.
func NewMatcher(values []string) Matcher {
	if len(values) == 0 {
		return MatchAll{}
	}

	set := make(MatchSet, len(values))

	for _, value := range values {
		if value == wildcard {
			return MatchAll{}
		}

		set[value] = struct{}{}
	}

	return set
}

// Filter accepts an event when both its exchange and its queue match.
type Filter struct {
	Exchanges Matcher
	Queues    Matcher
}

func NewFilter(exchanges []string, queues []string) Filter {
	return Filter{
		Exchanges: NewMatcher(exchanges),
		Queues:    NewMatcher(queues),
	}
}

func (f Filter) Match(event entity.LifecycleEvent) bool {
	return f.Exchanges.Match(event.Exchange) && f.Queues.Match(event.Queue)
}
