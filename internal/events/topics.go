package events

// Kafka topics and CloudEvent types owned by the booking service.
const (
	TopicBookingEvents    = "booking.events"
	TopicPaymentEvents    = "payment.events"
	TopicGatewayCallbacks = "payment.gateway.callbacks"

	// GatewayNotificationType is the CloudEvent type relayed gateway notifications carry.
	GatewayNotificationType = "payment.gateway.notification"

	EventSource = "service-booking"
)
