package triage

// FilterEngine decides, per inbound message, whether to forward it.
//
// Transports subscribe with Subscription so only pattern-matching messages are delivered at all;
// OnMessage then re-checks channel scope because the subscription carries no channel filter.
type FilterEngine struct {
	auth     *ChannelAuthorizer
	patterns *PatternSet
}

// NewFilterEngine creates a filter over the given scope and pattern set.
func NewFilterEngine(auth *ChannelAuthorizer, patterns *PatternSet) *FilterEngine {
	return &FilterEngine{
		auth:     auth,
		patterns: patterns,
	}
}

// OnMessage classifies msg. It never fails.
func (f *FilterEngine) OnMessage(msg InboundMessage) Action {
	if !f.auth.IsSourceChannel(msg.Channel) {
		return Action{Decision: Ignore, Reason: IgnoreUnauthorizedChannel, Message: msg}
	}

	if !f.patterns.Matches(msg.Text) {
		return Action{Decision: Ignore, Reason: IgnoreNoMatch, Message: msg}
	}

	return Action{Decision: Forward, Reason: IgnoreNone, Message: msg}
}

// Subscription returns the predicate a transport applies before delivering message events.
func (f *FilterEngine) Subscription() func(text string) bool {
	return f.patterns.Matches
}
