package mqtt3

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Topic errors.
var (
	ErrInvalidTopicName   = fmt.Errorf("%w: invalid topic name", ErrProtocolViolation)
	ErrInvalidTopicFilter = fmt.Errorf("%w: invalid topic filter", ErrProtocolViolation)
	ErrEmptyTopic         = fmt.Errorf("%w: topic cannot be empty", ErrProtocolViolation)
)

const (
	topicSeparator      = '/'
	singleLevelWildcard = '+'
	multiLevelWildcard  = '#'
)

// ValidateTopicName validates a topic name used for publishing.
// Topic names cannot contain wildcards and must be valid UTF-8.
// MQTT v3.1.1 spec: Section 4.7.1
func ValidateTopicName(topic string) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	if len(topic) > maxUint16 || !utf8.ValidString(topic) {
		return ErrInvalidTopicName
	}

	for _, r := range topic {
		if r == 0 || r == singleLevelWildcard || r == multiLevelWildcard {
			return ErrInvalidTopicName
		}
	}

	return nil
}

// ValidateTopicFilter validates a topic filter used for subscribing.
// MQTT v3.1.1 spec: Section 4.7.1
func ValidateTopicFilter(filter string) error {
	if filter == "" {
		return ErrEmptyTopic
	}

	if len(filter) > maxUint16 || !utf8.ValidString(filter) || strings.ContainsRune(filter, 0) {
		return ErrInvalidTopicFilter
	}

	levels := strings.Split(filter, string(topicSeparator))

	for i, level := range levels {
		// Single-level wildcard must occupy entire level
		if strings.ContainsRune(level, singleLevelWildcard) && level != string(singleLevelWildcard) {
			return ErrInvalidTopicFilter
		}

		// Multi-level wildcard must be last level and occupy entire level
		if strings.ContainsRune(level, multiLevelWildcard) {
			if level != string(multiLevelWildcard) || i != len(levels)-1 {
				return ErrInvalidTopicFilter
			}
		}
	}

	return nil
}

// TopicMatch reports whether topic matches filter. Empty levels are levels:
// "sport/+" matches "sport/" and "+/+" matches "/finance". Topics starting
// with '$' are not matched by a leading wildcard.
// MQTT v3.1.1 spec: Section 4.7
func TopicMatch(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}

	if topic[0] == '$' && (filter[0] == singleLevelWildcard || filter[0] == multiLevelWildcard) {
		return false
	}

	return matchLevels(filter, topic)
}

// matchLevels walks filter and topic one level at a time without allocating.
func matchLevels(filter, topic string) bool {
	for {
		flevel, frest, fmore := strings.Cut(filter, string(topicSeparator))
		if flevel == string(multiLevelWildcard) {
			return true
		}

		tlevel, trest, tmore := strings.Cut(topic, string(topicSeparator))
		if flevel != string(singleLevelWildcard) && flevel != tlevel {
			return false
		}

		if !fmore || !tmore {
			// "a/#" also matches its parent "a"
			return fmore == tmore || (fmore && frest == string(multiLevelWildcard))
		}
		filter, topic = frest, trest
	}
}
