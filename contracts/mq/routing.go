package mq

// Routing keys on the marketplace.events exchange.
const (
	RoutingKeyProjectCreated = "project.created"
	RoutingKeyProcessorEvent = "processor.event"
)
