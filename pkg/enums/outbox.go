package enums

import "slices"

// OutboxAggregateType names the entity an outbox event describes. Values mirror
// the aggregate_type_enum Postgres type.
type OutboxAggregateType string

const (
	AggregateUserCart      OutboxAggregateType = "user_cart"
	AggregateCartRetention OutboxAggregateType = "cart_retention"
)

var aggregateTypes = []OutboxAggregateType{AggregateUserCart, AggregateCartRetention}

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", value, aggregateTypes)
}

// OutboxEventType is the published event name and the Pub/Sub event_type
// attribute.
type OutboxEventType string

const (
	EventCartMerged          OutboxEventType = "cart_merged"
	EventCartRetentionPurged OutboxEventType = "cart_retention_purged"
)

var eventTypes = []OutboxEventType{EventCartMerged, EventCartRetentionPurged}

func (e OutboxEventType) IsValid() bool { return slices.Contains(eventTypes, e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, eventTypes)
}

// OutboxDLQErrorReason records why an event was parked in outbox_dlq.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonUnresolvable: envelope or event type maps to no topic.
	OutboxDLQReasonUnresolvable OutboxDLQErrorReason = "unresolvable"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)

var dlqReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonUnresolvable,
	OutboxDLQReasonNonRetryable,
	OutboxDLQReasonMaxAttempts,
}

func (r OutboxDLQErrorReason) IsValid() bool { return slices.Contains(dlqReasons, r) }
