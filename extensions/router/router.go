// Package router dispatches delivered MQTT messages to handlers by topic
// filter, QoS, retain flag and topic pattern.
package router

import (
	"regexp"
	"slices"
	"sync"

	"github.com/vitalvas/mqtt3"
)

// Handler processes an MQTT message.
type Handler func(msg *mqtt3.Message)

// Condition defines filtering criteria for message routing.
type Condition struct {
	topicFilter  *string
	qos          *mqtt3.QoS
	retain       *bool
	duplicate    *bool
	topicRegexp  *regexp.Regexp
	payloadRegex *regexp.Regexp
}

// ConditionOption configures a Condition.
type ConditionOption func(*Condition)

// WithTopic sets the topic filter for message matching.
// Supports MQTT wildcards: + (single level) and # (multi level).
func WithTopic(filter string) ConditionOption {
	return func(c *Condition) {
		c.topicFilter = &filter
	}
}

// WithQoS filters messages by the QoS the broker delivered them with.
func WithQoS(qos mqtt3.QoS) ConditionOption {
	return func(c *Condition) {
		c.qos = &qos
	}
}

// WithRetain filters messages by the retain flag.
func WithRetain(retain bool) ConditionOption {
	return func(c *Condition) {
		c.retain = &retain
	}
}

// WithDuplicate filters messages by the DUP flag.
func WithDuplicate(dup bool) ConditionOption {
	return func(c *Condition) {
		c.duplicate = &dup
	}
}

// WithTopicRegexp filters messages by a topic name pattern.
func WithTopicRegexp(pattern *regexp.Regexp) ConditionOption {
	return func(c *Condition) {
		c.topicRegexp = pattern
	}
}

// WithPayloadRegexp filters messages by a payload pattern.
func WithPayloadRegexp(pattern *regexp.Regexp) ConditionOption {
	return func(c *Condition) {
		c.payloadRegex = pattern
	}
}

type registration struct {
	handler   Handler
	condition Condition
}

// Router dispatches messages to handlers based on conditions.
type Router struct {
	mu       sync.RWMutex
	handlers []registration
}

// New creates a new Router.
func New() *Router {
	return &Router{
		handlers: make([]registration, 0),
	}
}

// Handle registers a handler with optional conditions.
//
// Examples:
//
//	r.Handle(handler, WithTopic("sensors/#"))
//	r.Handle(handler, WithTopic("sensors/#"), WithQoS(mqtt3.QoS1))
//	r.Handle(handler, WithTopic("config/#"), WithRetain(true))
//	r.Handle(handler, WithTopicRegexp(regexp.MustCompile(`^sensors/[0-9]+/temp$`)))
func (r *Router) Handle(handler Handler, opts ...ConditionOption) {
	var cond Condition
	for _, opt := range opts {
		opt(&cond)
	}

	r.mu.Lock()
	r.handlers = append(r.handlers, registration{
		handler:   handler,
		condition: cond,
	})
	r.mu.Unlock()
}

func (c *Condition) matches(msg *mqtt3.Message) bool {
	if c.topicFilter != nil && !mqtt3.TopicMatch(*c.topicFilter, msg.Topic) {
		return false
	}
	if c.qos != nil && *c.qos != msg.QoS {
		return false
	}
	if c.retain != nil && *c.retain != msg.Retain {
		return false
	}
	if c.duplicate != nil && *c.duplicate != msg.Duplicate {
		return false
	}
	if c.topicRegexp != nil && !c.topicRegexp.MatchString(msg.Topic) {
		return false
	}
	if c.payloadRegex != nil && !c.payloadRegex.Match(msg.Payload) {
		return false
	}
	return true
}

// Route dispatches a message to all matching handlers.
// Multiple handlers may be called if multiple conditions match.
func (r *Router) Route(msg *mqtt3.Message) {
	if msg == nil {
		return
	}

	r.mu.RLock()
	var matched []Handler
	for _, reg := range r.handlers {
		if reg.condition.matches(msg) {
			matched = append(matched, reg.handler)
		}
	}
	r.mu.RUnlock()

	for _, handler := range matched {
		handler(msg)
	}
}

// Filters returns the unique registered topic filters, sorted.
func (r *Router) Filters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var filters []string
	for _, reg := range r.handlers {
		if f := reg.condition.topicFilter; f != nil && !slices.Contains(filters, *f) {
			filters = append(filters, *f)
		}
	}
	slices.Sort(filters)
	return filters
}

// TopicFilters returns the registered topic filters at qos, ready for
// Client.Subscribe.
func (r *Router) TopicFilters(qos mqtt3.QoS) []mqtt3.TopicFilter {
	filters := r.Filters()
	out := make([]mqtt3.TopicFilter, len(filters))
	for i, f := range filters {
		out[i] = mqtt3.TopicFilter{Filter: f, QoS: qos}
	}
	return out
}

// Len returns the number of registered handlers.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Clear removes all handlers.
func (r *Router) Clear() {
	r.mu.Lock()
	r.handlers = r.handlers[:0]
	r.mu.Unlock()
}

// Listener returns a client listener that routes every delivered message.
// Other events are forwarded to next when it is not nil.
func (r *Router) Listener(next mqtt3.Listener) mqtt3.Listener {
	if next == nil {
		next = &mqtt3.ListenerFuncs{}
	}
	return &routingListener{Listener: next, router: r}
}

type routingListener struct {
	mqtt3.Listener
	router *Router
}

func (l *routingListener) OnMessage(msg *mqtt3.Message) {
	l.router.Route(msg)
	l.Listener.OnMessage(msg)
}
